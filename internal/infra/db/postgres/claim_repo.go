package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/clearlane/claims-intake/internal/domain/claims"
)

type ClaimRepository struct {
	db *sql.DB
}

func NewClaimRepository(db *sql.DB) *ClaimRepository {
	return &ClaimRepository{db: db}
}

func (r *ClaimRepository) CreateRecord(ctx context.Context, c *domain.Claim) error {
	const q = `
INSERT INTO claims
(id, claim_number, requester_id, submitted_at, status, model_used,
 media_keys, policy_document_key, summary, confidence, reasoning,
 investigation_needed, warnings, duration_ms)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
 status=EXCLUDED.status, summary=EXCLUDED.summary, confidence=EXCLUDED.confidence,
 reasoning=EXCLUDED.reasoning, investigation_needed=EXCLUDED.investigation_needed,
 warnings=EXCLUDED.warnings, duration_ms=EXCLUDED.duration_ms;`

	submitted := c.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now()
	}
	mediaKeys, err := json.Marshal(c.MediaKeys)
	if err != nil {
		return fmt.Errorf("encoding media keys: %w", err)
	}
	warnings, err := json.Marshal(c.Warnings)
	if err != nil {
		return fmt.Errorf("encoding warnings: %w", err)
	}

	_, err = r.db.ExecContext(ctx, q,
		c.ID, c.Number, c.RequesterID, submitted, c.Status, c.ModelUsed,
		string(mediaKeys), c.PolicyDocumentKey,
		c.Analysis.Summary, c.Analysis.Confidence, c.Analysis.Reasoning,
		c.Analysis.InvestigationNeeded, string(warnings), c.DurationMS,
	)
	return err
}

func (r *ClaimRepository) CreateChildRecords(ctx context.Context, id domain.ClaimID, a domain.EnhancedAnalysis) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"claim_damage_items", "claim_vehicle_verifications", "claim_financial_assessments"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE claim_id=$1", id); err != nil {
			return err
		}
	}

	const itemQ = `
INSERT INTO claim_damage_items (claim_id, part, description, severity, estimated_cost)
VALUES ($1,$2,$3,$4,$5);`
	for _, it := range a.DamageItems {
		var cost sql.NullFloat64
		if it.EstimatedCost != nil {
			cost = sql.NullFloat64{Float64: *it.EstimatedCost, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, itemQ, id, it.Part, it.Description, it.Severity, cost); err != nil {
			return err
		}
	}

	const verQ = `
INSERT INTO claim_vehicle_verifications (claim_id, status, policy_vehicle, observed_vehicle, notes)
VALUES ($1,$2,$3,$4,$5);`
	if _, err := tx.ExecContext(ctx, verQ, id,
		a.Verification.Status, a.Verification.PolicyVehicle,
		a.Verification.ObservedVehicle, a.Verification.Notes,
	); err != nil {
		return err
	}

	const finQ = `
INSERT INTO claim_financial_assessments
(claim_id, estimated_total, currency, deductible, payout_estimate,
 coverage_status, policy_number, coverage_notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	if _, err := tx.ExecContext(ctx, finQ, id,
		a.Financial.EstimatedTotal, a.Financial.Currency,
		a.Financial.Deductible, a.Financial.PayoutEstimate,
		a.Coverage.Status, a.Coverage.PolicyNumber, a.Coverage.Notes,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *ClaimRepository) Get(ctx context.Context, requester string, id domain.ClaimID) (*domain.Claim, error) {
	const q = `
SELECT id, claim_number, requester_id, submitted_at, status, model_used,
       media_keys, policy_document_key, summary, confidence, reasoning,
       investigation_needed, warnings, duration_ms
FROM claims
WHERE requester_id=$1 AND id=$2 LIMIT 1;`

	c, err := scanClaim(r.db.QueryRowContext(ctx, q, requester, id))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *ClaimRepository) Latest(ctx context.Context, requester string, limit int) ([]*domain.Claim, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, claim_number, requester_id, submitted_at, status, model_used,
       media_keys, policy_document_key, summary, confidence, reasoning,
       investigation_needed, warnings, duration_ms
FROM claims
WHERE requester_id=$1 ORDER BY submitted_at DESC LIMIT $2;`

	rows, err := r.db.QueryContext(ctx, q, requester, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, c := range out {
		if err := r.loadChildren(ctx, c); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *ClaimRepository) loadChildren(ctx context.Context, c *domain.Claim) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT part, description, severity, estimated_cost
FROM claim_damage_items WHERE claim_id=$1 ORDER BY id;`, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.DamageItem
		var cost sql.NullFloat64
		if err := rows.Scan(&it.Part, &it.Description, &it.Severity, &cost); err != nil {
			return err
		}
		if cost.Valid {
			v := cost.Float64
			it.EstimatedCost = &v
		}
		c.Analysis.DamageItems = append(c.Analysis.DamageItems, it)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	err = r.db.QueryRowContext(ctx, `
SELECT status, policy_vehicle, observed_vehicle, notes
FROM claim_vehicle_verifications WHERE claim_id=$1 LIMIT 1;`, c.ID).Scan(
		&c.Analysis.Verification.Status, &c.Analysis.Verification.PolicyVehicle,
		&c.Analysis.Verification.ObservedVehicle, &c.Analysis.Verification.Notes,
	)
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	err = r.db.QueryRowContext(ctx, `
SELECT estimated_total, currency, deductible, payout_estimate,
       coverage_status, policy_number, coverage_notes
FROM claim_financial_assessments WHERE claim_id=$1 LIMIT 1;`, c.ID).Scan(
		&c.Analysis.Financial.EstimatedTotal, &c.Analysis.Financial.Currency,
		&c.Analysis.Financial.Deductible, &c.Analysis.Financial.PayoutEstimate,
		&c.Analysis.Coverage.Status, &c.Analysis.Coverage.PolicyNumber,
		&c.Analysis.Coverage.Notes,
	)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*domain.Claim, error) {
	var c domain.Claim
	var mediaKeys, warnings string
	if err := row.Scan(
		&c.ID, &c.Number, &c.RequesterID, &c.SubmittedAt, &c.Status, &c.ModelUsed,
		&mediaKeys, &c.PolicyDocumentKey,
		&c.Analysis.Summary, &c.Analysis.Confidence, &c.Analysis.Reasoning,
		&c.Analysis.InvestigationNeeded, &warnings, &c.DurationMS,
	); err != nil {
		return nil, err
	}
	if mediaKeys != "" {
		if err := json.Unmarshal([]byte(mediaKeys), &c.MediaKeys); err != nil {
			return nil, fmt.Errorf("decoding media keys: %w", err)
		}
	}
	if warnings != "" {
		if err := json.Unmarshal([]byte(warnings), &c.Warnings); err != nil {
			return nil, fmt.Errorf("decoding warnings: %w", err)
		}
	}
	return &c, nil
}
