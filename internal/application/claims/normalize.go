package claims

import (
	"encoding/json"
	"fmt"
	"strings"

	domai "github.com/clearlane/claims-intake/internal/domain/ai"
	domain "github.com/clearlane/claims-intake/internal/domain/claims"
)

// Cost defaults applied when a damage item carries no explicit estimate.
// These figures are a documented business rule shared with the reporting
// side; changing them breaks output compatibility.
const (
	defaultCostMinor    = 300
	defaultCostModerate = 800
	defaultCostSevere   = 2000

	// missingPolicyPenalty is subtracted from confidence when an Enhanced
	// shape had to be synthesized without a policy cross-reference.
	missingPolicyPenalty = 0.2
)

// analysisPayload mirrors the JSON contract the prompts ask the model for.
// Enhanced-only sections are pointers so a Basic payload decodes cleanly.
type analysisPayload struct {
	Summary     string  `json:"summary"`
	Confidence  float64 `json:"confidence"`
	Reasoning   string  `json:"reasoning"`
	DamageItems []struct {
		Part          string   `json:"part"`
		Description   string   `json:"description"`
		Severity      string   `json:"severity"`
		EstimatedCost *float64 `json:"estimated_cost"`
	} `json:"damage_items"`
	Verification *struct {
		Status          string `json:"status"`
		PolicyVehicle   string `json:"policy_vehicle"`
		ObservedVehicle string `json:"observed_vehicle"`
		Notes           string `json:"notes"`
	} `json:"vehicle_verification"`
	Coverage *struct {
		Status       string  `json:"status"`
		PolicyNumber string  `json:"policy_number"`
		Deductible   float64 `json:"deductible"`
		Notes        string  `json:"notes"`
	} `json:"coverage"`
	Financial *struct {
		EstimatedTotal float64 `json:"estimated_total"`
		Currency       string  `json:"currency"`
		Deductible     float64 `json:"deductible"`
		PayoutEstimate float64 `json:"payout_estimate"`
	} `json:"financial"`
}

// DecodeAnalysis turns raw model output into the single Enhanced shape
// persistence expects. A payload without the enhanced sections is decoded as
// Basic and upgraded.
func DecodeAnalysis(raw []byte, enhanced bool) (domain.EnhancedAnalysis, error) {
	var p analysisPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.EnhancedAnalysis{}, fmt.Errorf("%w: %v", domai.ErrMalformedResponse, err)
	}
	if p.Summary == "" && len(p.DamageItems) == 0 {
		return domain.EnhancedAnalysis{}, fmt.Errorf("%w: payload carries no findings", domai.ErrMalformedResponse)
	}

	basic := domain.BasicAnalysis{
		Summary:    p.Summary,
		Confidence: clampConfidence(p.Confidence),
		Reasoning:  p.Reasoning,
	}
	for _, it := range p.DamageItems {
		basic.DamageItems = append(basic.DamageItems, domain.DamageItem{
			Part:          it.Part,
			Description:   it.Description,
			Severity:      parseSeverity(it.Severity),
			EstimatedCost: it.EstimatedCost,
		})
	}

	if !enhanced || p.Verification == nil || p.Coverage == nil || p.Financial == nil {
		return UpgradeToEnhanced(basic), nil
	}

	return domain.EnhancedAnalysis{
		DamageItems: basic.DamageItems,
		Summary:     basic.Summary,
		Confidence:  basic.Confidence,
		Reasoning:   basic.Reasoning,
		Verification: domain.VehicleVerification{
			Status:          parseVerification(p.Verification.Status),
			PolicyVehicle:   p.Verification.PolicyVehicle,
			ObservedVehicle: p.Verification.ObservedVehicle,
			Notes:           p.Verification.Notes,
		},
		Coverage: domain.CoverageAssessment{
			Status:       parseCoverage(p.Coverage.Status),
			PolicyNumber: p.Coverage.PolicyNumber,
			Deductible:   p.Coverage.Deductible,
			Notes:        p.Coverage.Notes,
		},
		Financial: domain.FinancialAssessment{
			EstimatedTotal: p.Financial.EstimatedTotal,
			Currency:       defaultCurrency(p.Financial.Currency),
			Deductible:     p.Financial.Deductible,
			PayoutEstimate: p.Financial.PayoutEstimate,
		},
		InvestigationNeeded: parseVerification(p.Verification.Status) != domain.VerificationVerified,
	}, nil
}

// UpgradeToEnhanced fills a Basic result out to the Enhanced shape with
// explicit insufficient-data placeholders: per-part costs fall back to
// severity-bucketed defaults, verification and coverage are marked
// needs_investigation, and confidence takes a fixed penalty.
func UpgradeToEnhanced(b domain.BasicAnalysis) domain.EnhancedAnalysis {
	total := 0.0
	for _, it := range b.DamageItems {
		if it.EstimatedCost != nil {
			total += *it.EstimatedCost
		} else {
			total += defaultCostFor(it.Severity)
		}
	}

	confidence := b.Confidence - missingPolicyPenalty
	if confidence < 0 {
		confidence = 0
	}

	reasoning := strings.TrimSpace(b.Reasoning)
	note := "no policy document was available for cross-reference; coverage and vehicle verification need investigation"
	if reasoning == "" {
		reasoning = note
	} else {
		reasoning = reasoning + "; " + note
	}

	return domain.EnhancedAnalysis{
		DamageItems: b.DamageItems,
		Summary:     b.Summary,
		Confidence:  confidence,
		Reasoning:   reasoning,
		Verification: domain.VehicleVerification{
			Status: domain.VerificationNeedsInvestigation,
			Notes:  "insufficient data: no policy document provided",
		},
		Coverage: domain.CoverageAssessment{
			Status: domain.CoverageNeedsInvestigation,
			Notes:  "insufficient data: no policy document provided",
		},
		Financial: domain.FinancialAssessment{
			EstimatedTotal: total,
			Currency:       "USD",
		},
		InvestigationNeeded: true,
	}
}

func defaultCostFor(s domain.Severity) float64 {
	switch s {
	case domain.SeveritySevere:
		return defaultCostSevere
	case domain.SeverityModerate:
		return defaultCostModerate
	default:
		return defaultCostMinor
	}
}

func parseSeverity(s string) domain.Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "severe", "critical", "major":
		return domain.SeveritySevere
	case "moderate", "medium":
		return domain.SeverityModerate
	default:
		return domain.SeverityMinor
	}
}

func parseVerification(s string) domain.VerificationStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "verified", "match":
		return domain.VerificationVerified
	case "mismatch":
		return domain.VerificationMismatch
	default:
		return domain.VerificationNeedsInvestigation
	}
}

func parseCoverage(s string) domain.CoverageStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "covered":
		return domain.CoverageCovered
	case "partial", "partially_covered":
		return domain.CoveragePartial
	case "not_covered", "denied":
		return domain.CoverageNotCovered
	default:
		return domain.CoverageNeedsInvestigation
	}
}

func defaultCurrency(c string) string {
	if strings.TrimSpace(c) == "" {
		return "USD"
	}
	return c
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
