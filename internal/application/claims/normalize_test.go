package claims

import (
	"errors"
	"math"
	"testing"

	domai "github.com/clearlane/claims-intake/internal/domain/ai"
	domain "github.com/clearlane/claims-intake/internal/domain/claims"
)

func fcost(v float64) *float64 { return &v }

func TestUpgradeToEnhanced_CostDefaultsAndPenalty(t *testing.T) {
	basic := domain.BasicAnalysis{
		DamageItems: []domain.DamageItem{
			{Part: "rear bumper", Severity: domain.SeveritySevere},             // no estimate -> 2000
			{Part: "tail light", Severity: domain.SeverityMinor, EstimatedCost: fcost(150)}, // explicit
		},
		Summary:    "rear impact damage",
		Confidence: 0.85,
	}

	up := UpgradeToEnhanced(basic)

	if up.Financial.EstimatedTotal != 2150 {
		t.Fatalf("total = %v, want 2150", up.Financial.EstimatedTotal)
	}
	if !up.InvestigationNeeded {
		t.Fatal("upgraded result must flag investigation")
	}
	if math.Abs(up.Confidence-0.65) > 1e-9 {
		t.Fatalf("confidence = %v, want 0.65 (0.85 - 0.2)", up.Confidence)
	}
	if up.Verification.Status != domain.VerificationNeedsInvestigation {
		t.Fatalf("verification = %s, want needs_investigation", up.Verification.Status)
	}
	if up.Coverage.Status != domain.CoverageNeedsInvestigation {
		t.Fatalf("coverage = %s, want needs_investigation", up.Coverage.Status)
	}
	if up.Reasoning == "" {
		t.Fatal("upgrade must note the missing policy cross-reference")
	}
}

func TestUpgradeToEnhanced_ConfidenceFloor(t *testing.T) {
	up := UpgradeToEnhanced(domain.BasicAnalysis{
		DamageItems: []domain.DamageItem{{Part: "door", Severity: domain.SeverityModerate}},
		Summary:     "minor scrape",
		Confidence:  0.1,
	})
	if up.Confidence != 0 {
		t.Fatalf("confidence = %v, want floor at 0", up.Confidence)
	}
	if up.Financial.EstimatedTotal != 800 {
		t.Fatalf("moderate default = %v, want 800", up.Financial.EstimatedTotal)
	}
}

func TestDecodeAnalysis_BasicPayloadIsUpgraded(t *testing.T) {
	raw := []byte(`{
		"summary": "front end collision",
		"confidence": 0.9,
		"damage_items": [{"part": "hood", "severity": "severe"}]
	}`)

	got, err := DecodeAnalysis(raw, false)
	if err != nil {
		t.Fatalf("DecodeAnalysis: %v", err)
	}
	if !got.InvestigationNeeded {
		t.Fatal("basic payload must be upgraded with investigation flag")
	}
	if got.Financial.EstimatedTotal != 2000 {
		t.Fatalf("total = %v, want severe default 2000", got.Financial.EstimatedTotal)
	}
}

func TestDecodeAnalysis_EnhancedPayloadPassesThrough(t *testing.T) {
	raw := []byte(`{
		"summary": "side panel damage",
		"confidence": 0.8,
		"damage_items": [{"part": "left door", "severity": "moderate", "estimated_cost": 650}],
		"vehicle_verification": {"status": "verified", "policy_vehicle": "2021 Honda Civic", "observed_vehicle": "2021 Honda Civic"},
		"coverage": {"status": "covered", "policy_number": "POL-9912", "deductible": 500},
		"financial": {"estimated_total": 650, "deductible": 500, "payout_estimate": 150}
	}`)

	got, err := DecodeAnalysis(raw, true)
	if err != nil {
		t.Fatalf("DecodeAnalysis: %v", err)
	}
	if got.InvestigationNeeded {
		t.Fatal("verified enhanced payload should not need investigation")
	}
	if got.Confidence != 0.8 {
		t.Fatalf("confidence = %v, want unchanged 0.8", got.Confidence)
	}
	if got.Coverage.Status != domain.CoverageCovered {
		t.Fatalf("coverage = %s, want covered", got.Coverage.Status)
	}
	if got.Financial.Currency != "USD" {
		t.Fatalf("currency = %q, want USD default", got.Financial.Currency)
	}
}

func TestDecodeAnalysis_MalformedPayload(t *testing.T) {
	for _, raw := range []string{"not json at all", `{"unrelated": true}`} {
		_, err := DecodeAnalysis([]byte(raw), false)
		if !errors.Is(err, domai.ErrMalformedResponse) {
			t.Fatalf("payload %q: err = %v, want ErrMalformedResponse", raw, err)
		}
	}
}
