package claims

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/clearlane/claims-intake/internal/application"
	domai "github.com/clearlane/claims-intake/internal/domain/ai"
	domain "github.com/clearlane/claims-intake/internal/domain/claims"
	"github.com/clearlane/claims-intake/internal/ratelimit"
	"github.com/clearlane/claims-intake/internal/security"
)

// DefaultAnalysisTimeout is the hard wall-clock budget for one model call.
const DefaultAnalysisTimeout = 60 * time.Second

// Token cost heuristics for the pre-call estimate. Actual usage reported by
// the model is recorded as a correction afterwards.
const (
	estimateBase     = 500
	estimatePerImage = 800
)

// Service implements the submission pipeline:
// validate -> convert -> scan -> select model -> analyze -> upload -> persist.
//
// Cleanup is asymmetric on purpose: failures before upload clean nothing
// (nothing written yet), an upload-step failure deletes that step's artifacts,
// and a persist failure retains them so the caller can retry persistence
// without paying for the uploads again.
type Service struct {
	Repo      domain.Repository
	Artifacts domain.ArtifactStore
	Analyzer  domai.Analyzer
	Scanner   *security.Scanner
	Selector  *ratelimit.Selector
	Docs      security.DocumentTextExtractor
	Clock     application.Clock
	Logger    *zap.Logger

	// AnalysisTimeout defaults to DefaultAnalysisTimeout when zero.
	AnalysisTimeout time.Duration

	mu      sync.Mutex
	pending map[string]*domain.Claim
	seq     uint64
}

// Submit runs the whole pipeline for one request and always returns a value;
// every terminal state is a SubmissionResult, never a propagated error.
func (s *Service) Submit(ctx context.Context, req domain.SubmissionRequest) domain.SubmissionResult {
	started := s.Clock.Now()

	// Validating
	if len(req.Media) == 0 {
		return domain.Rejected("at least one media file is required")
	}
	if req.WantsEnhancedAnalysis && !req.HasPolicyDocument() {
		return domain.Rejected("enhanced analysis requires a policy document, new or previously uploaded")
	}

	// ConvertingToTransferFormat
	var (
		images     []domai.Media
		imageBytes [][]byte
		hasVideo   bool
	)
	for _, m := range req.Media {
		switch {
		case strings.HasPrefix(m.ContentType, "image/"):
			images = append(images, domai.Media{ContentType: m.ContentType, Data: m.Data})
			imageBytes = append(imageBytes, m.Data)
		case strings.HasPrefix(m.ContentType, "video/"):
			hasVideo = true
		}
	}

	policyBytes, policyKey, err := s.resolvePolicyDocument(ctx, req)
	if err != nil {
		s.Logger.Warn("policy document fetch failed", zap.Error(err))
		return domain.Failed(fmt.Sprintf("could not load referenced policy document: %v", err))
	}

	policyText := ""
	if len(policyBytes) > 0 {
		if text, err := s.Docs.ExtractText(ctx, policyBytes); err != nil {
			s.Logger.Debug("policy text extraction failed", zap.Error(err))
		} else {
			policyText = text
		}
	}

	// SecurityScanning: informational only, never halts the pipeline. The
	// policy text extracted above is reused; the document is parsed once.
	scan := s.Scanner.Scan(ctx, imageBytes, policyText)
	warnings := scan.Warnings()
	if scan.IsSuspicious {
		s.Logger.Warn("submission content flagged",
			zap.String("requester", req.RequesterID),
			zap.String("risk", string(scan.RiskLevel)),
		)
	}

	// SelectingModel
	estimate := estimateTokens(len(images), policyText)
	model, err := s.Selector.Pick(estimate)
	if err != nil {
		var rl *ratelimit.ErrRateLimited
		if errors.As(err, &rl) {
			return domain.RateLimited(rl.RetryAfter,
				fmt.Sprintf("all analysis models are at capacity; please retry in %d seconds", rl.RetryAfter))
		}
		return domain.Failed(err.Error())
	}

	// Analyzing
	inv := domai.Invocation{
		Images:     images,
		HasVideo:   hasVideo,
		PolicyText: policyText,
		Enhanced:   req.WantsEnhancedAnalysis,
	}
	raw, res := s.analyzeWithTimeout(ctx, model, inv, hasVideo)
	if raw == nil {
		return res
	}
	s.Selector.RecordActualUsage(model, raw.TokensUsed, estimate)

	analysis, err := DecodeAnalysis(raw.JSON, req.WantsEnhancedAnalysis)
	if err != nil {
		s.Logger.Warn("analysis decode failed", zap.String("model", model), zap.Error(err))
		return domain.Failed(fmt.Sprintf("model returned an unusable result: %v", err))
	}

	// UploadingArtifacts: only after a successful analysis, so a failed or
	// rate-limited call never leaves orphaned media in storage.
	mediaKeys, newPolicyKey, upErr := s.uploadArtifacts(ctx, req)
	if upErr != nil {
		return domain.Failed(fmt.Sprintf("artifact upload failed: %v", upErr))
	}
	if newPolicyKey != "" {
		policyKey = newPolicyKey
	}

	// PersistingRecord
	claim := &domain.Claim{
		ID:                domain.ClaimID(uuid.New().String()),
		Number:            s.nextNumber(started),
		RequesterID:       req.RequesterID,
		SubmittedAt:       started,
		Status:            domain.StatusAnalyzed,
		ModelUsed:         model,
		MediaKeys:         mediaKeys,
		PolicyDocumentKey: policyKey,
		Analysis:          analysis,
		Warnings:          warnings,
		DurationMS:        s.Clock.Now().Sub(started).Milliseconds(),
	}

	if err := s.persist(ctx, claim); err != nil {
		// Artifacts are retained intentionally: persistence is retryable via
		// RetryPersist without re-uploading.
		s.park(claim)
		s.Logger.Error("claim persistence failed, record parked for retry",
			zap.String("record_id", string(claim.ID)), zap.Error(err))
		out := domain.Failed(fmt.Sprintf("record persistence failed: %v; uploaded artifacts were kept, retry persistence for this record", err))
		out.RecordID = string(claim.ID)
		return out
	}

	return domain.Success(claim.ID, claim.Number, analysis, warnings)
}

// RetryPersist re-runs only the persistence step for a record parked by a
// previous persist failure. Artifacts are reused as-is.
func (s *Service) RetryPersist(ctx context.Context, requester, recordID string) domain.SubmissionResult {
	s.mu.Lock()
	claim, ok := s.pending[recordID]
	s.mu.Unlock()

	if !ok || claim.RequesterID != requester {
		return domain.Rejected("no pending record to retry for this id")
	}

	// The park marked the record pending_persist; a successful retry must
	// store it as analyzed, same as the first-attempt path.
	claim.Status = domain.StatusAnalyzed
	if err := s.persist(ctx, claim); err != nil {
		claim.Status = domain.StatusPending
		out := domain.Failed(fmt.Sprintf("record persistence failed again: %v", err))
		out.RecordID = recordID
		return out
	}

	s.mu.Lock()
	delete(s.pending, recordID)
	s.mu.Unlock()

	return domain.Success(claim.ID, claim.Number, claim.Analysis, claim.Warnings)
}

// Get returns one claim for the requester.
func (s *Service) Get(ctx context.Context, requester string, id domain.ClaimID) (*domain.Claim, error) {
	return s.Repo.Get(ctx, requester, id)
}

// Latest returns the requester's most recent claims.
func (s *Service) Latest(ctx context.Context, requester string, limit int) ([]*domain.Claim, error) {
	return s.Repo.Latest(ctx, requester, limit)
}

func (s *Service) resolvePolicyDocument(ctx context.Context, req domain.SubmissionRequest) (data []byte, key string, err error) {
	if req.PolicyDocument != nil {
		return req.PolicyDocument.Data, "", nil
	}
	if req.PolicyDocumentKey == "" {
		return nil, "", nil
	}
	data, _, err = s.Artifacts.Get(ctx, req.PolicyDocumentKey)
	if err != nil {
		return nil, "", err
	}
	return data, req.PolicyDocumentKey, nil
}

// analyzeWithTimeout runs the model call under a hard wall-clock budget. On
// timeout the in-flight call is abandoned, not cancelled: the goroutine keeps
// the detached context so the provider side may still complete (and bill).
func (s *Service) analyzeWithTimeout(ctx context.Context, model string, inv domai.Invocation, hasVideo bool) (*domai.RawResult, domain.SubmissionResult) {
	timeout := s.AnalysisTimeout
	if timeout <= 0 {
		timeout = DefaultAnalysisTimeout
	}

	type outcome struct {
		raw *domai.RawResult
		err error
	}
	ch := make(chan outcome, 1)
	detached := context.WithoutCancel(ctx)
	go func() {
		raw, err := s.Analyzer.Analyze(detached, model, inv)
		ch <- outcome{raw, err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		if out.err != nil {
			s.Logger.Warn("model analysis failed", zap.String("model", model), zap.Error(out.err))
			return nil, domain.Failed(fmt.Sprintf("analysis failed: %v", out.err))
		}
		return out.raw, domain.SubmissionResult{}
	case <-timer.C:
		s.Logger.Warn("model analysis timed out", zap.String("model", model), zap.Duration("timeout", timeout))
		return nil, domain.TimedOut(timeoutMessage(hasVideo))
	case <-ctx.Done():
		return nil, domain.Failed("request cancelled before analysis completed")
	}
}

// uploadArtifacts writes every media blob, plus a newly uploaded policy
// document, to object storage. On any failure it deletes everything this
// step already wrote (best effort) and reports the error.
func (s *Service) uploadArtifacts(ctx context.Context, req domain.SubmissionRequest) (mediaKeys []string, policyKey string, err error) {
	var uploaded []string
	rollback := func() {
		for _, key := range uploaded {
			if derr := s.Artifacts.Delete(ctx, key); derr != nil {
				s.Logger.Warn("artifact cleanup failed", zap.String("key", key), zap.Error(derr))
			}
		}
	}

	for _, m := range req.Media {
		key, perr := s.Artifacts.Put(ctx, m.Data, m.ContentType)
		if perr != nil {
			rollback()
			return nil, "", perr
		}
		uploaded = append(uploaded, key)
		mediaKeys = append(mediaKeys, key)
	}

	if req.PolicyDocument != nil {
		key, perr := s.Artifacts.Put(ctx, req.PolicyDocument.Data, req.PolicyDocument.ContentType)
		if perr != nil {
			rollback()
			return nil, "", perr
		}
		policyKey = key
	}

	return mediaKeys, policyKey, nil
}

// persist writes the parent record and its children as a logical unit.
func (s *Service) persist(ctx context.Context, c *domain.Claim) error {
	if err := s.Repo.CreateRecord(ctx, c); err != nil {
		return err
	}
	return s.Repo.CreateChildRecords(ctx, c.ID, c.Analysis)
}

func (s *Service) park(c *domain.Claim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		s.pending = make(map[string]*domain.Claim)
	}
	c.Status = domain.StatusPending
	s.pending[string(c.ID)] = c
}

// nextNumber builds the display claim number. Uniqueness across restarts
// comes from the record ID; the number is human-facing only.
func (s *Service) nextNumber(now time.Time) string {
	s.mu.Lock()
	s.seq++
	n := s.seq
	s.mu.Unlock()
	return fmt.Sprintf("CLM-%d-%06d", now.UTC().Year(), n)
}

func estimateTokens(imageCount int, policyText string) int {
	return estimateBase + imageCount*estimatePerImage + len(policyText)/4
}

func timeoutMessage(hasVideo bool) string {
	if hasVideo {
		return "analysis timed out; please retry with a shorter video or fewer files"
	}
	return "analysis timed out; please retry with fewer or smaller images"
}
