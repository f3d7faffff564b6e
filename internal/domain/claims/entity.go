package claims

import (
	"time"
)

// ID tipe for Claim
type ClaimID string

// Severity of a single damaged part
type Severity string

const (
	SeverityMinor    Severity = "minor"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Status enum for the persisted claim record
type Status string

const (
	StatusAnalyzed Status = "analyzed"
	StatusPending  Status = "pending_persist"
	StatusFailed   Status = "failed"
)

// VerificationStatus for the vehicle cross-reference
type VerificationStatus string

const (
	VerificationVerified           VerificationStatus = "verified"
	VerificationMismatch           VerificationStatus = "mismatch"
	VerificationNeedsInvestigation VerificationStatus = "needs_investigation"
)

// CoverageStatus for the policy coverage assessment
type CoverageStatus string

const (
	CoverageCovered            CoverageStatus = "covered"
	CoveragePartial            CoverageStatus = "partial"
	CoverageNotCovered         CoverageStatus = "not_covered"
	CoverageNeedsInvestigation CoverageStatus = "needs_investigation"
)

// DamageItem is one damaged part found by the analysis.
// EstimatedCost is nil when the model gave no explicit estimate.
type DamageItem struct {
	Part          string   `json:"part"`
	Description   string   `json:"description,omitempty"`
	Severity      Severity `json:"severity"`
	EstimatedCost *float64 `json:"estimated_cost,omitempty"`
}

// VehicleVerification cross-references the observed vehicle against the policy
type VehicleVerification struct {
	Status          VerificationStatus `json:"status"`
	PolicyVehicle   string             `json:"policy_vehicle,omitempty"`
	ObservedVehicle string             `json:"observed_vehicle,omitempty"`
	Notes           string             `json:"notes,omitempty"`
}

// CoverageAssessment value object
type CoverageAssessment struct {
	Status       CoverageStatus `json:"status"`
	PolicyNumber string         `json:"policy_number,omitempty"`
	Deductible   float64        `json:"deductible"`
	Notes        string         `json:"notes,omitempty"`
}

// FinancialAssessment value object
type FinancialAssessment struct {
	EstimatedTotal float64 `json:"estimated_total"`
	Currency       string  `json:"currency"`
	Deductible     float64 `json:"deductible"`
	PayoutEstimate float64 `json:"payout_estimate"`
}

// BasicAnalysis is the damage-only result shape returned when the model had
// no policy document to cross-reference.
type BasicAnalysis struct {
	DamageItems []DamageItem `json:"damage_items"`
	Summary     string       `json:"summary"`
	Confidence  float64      `json:"confidence"`
	Reasoning   string       `json:"reasoning,omitempty"`
}

// EnhancedAnalysis is the full result shape. Persistence only ever sees this
// shape; a BasicAnalysis is upgraded before it leaves the pipeline.
type EnhancedAnalysis struct {
	DamageItems         []DamageItem        `json:"damage_items"`
	Summary             string              `json:"summary"`
	Confidence          float64             `json:"confidence"`
	Reasoning           string              `json:"reasoning,omitempty"`
	Verification        VehicleVerification `json:"verification"`
	Coverage            CoverageAssessment  `json:"coverage"`
	Financial           FinancialAssessment `json:"financial"`
	InvestigationNeeded bool                `json:"investigation_needed"`
}

// Aggregate Root: Claim
type Claim struct {
	ID                ClaimID          `json:"id"`
	Number            string           `json:"claim_number"`
	RequesterID       string           `json:"requester_id"`
	SubmittedAt       time.Time        `json:"submitted_at"`
	Status            Status           `json:"status"`
	ModelUsed         string           `json:"model_used,omitempty"`
	MediaKeys         []string         `json:"media_keys,omitempty"`
	PolicyDocumentKey string           `json:"policy_document_key,omitempty"`
	Analysis          EnhancedAnalysis `json:"analysis"`
	Warnings          []string         `json:"warnings,omitempty"`
	DurationMS        int64            `json:"duration_ms"`
}
