package claims

import "context"

// Repository port (interface for persistence)
type Repository interface {
	// CreateRecord writes the parent claim row.
	CreateRecord(ctx context.Context, c *Claim) error
	// CreateChildRecords writes the dependent rows (damage line items,
	// vehicle verification, financial assessment) for an existing parent.
	CreateChildRecords(ctx context.Context, id ClaimID, a EnhancedAnalysis) error
	Get(ctx context.Context, requester string, id ClaimID) (*Claim, error)
	Latest(ctx context.Context, requester string, limit int) ([]*Claim, error)
}

// ArtifactStore port (interface for object storage).
// Delete must be idempotent: deleting a missing key is not an error, the
// compensating cleanup in the orchestrator depends on that.
type ArtifactStore interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, string, error)
	Delete(ctx context.Context, key string) error
}
