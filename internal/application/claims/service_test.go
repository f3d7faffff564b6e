package claims

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	domai "github.com/clearlane/claims-intake/internal/domain/ai"
	domain "github.com/clearlane/claims-intake/internal/domain/claims"
	"github.com/clearlane/claims-intake/internal/ratelimit"
	"github.com/clearlane/claims-intake/internal/security"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type fakeRepo struct {
	mu           sync.Mutex
	parents      []*domain.Claim
	children     []domain.ClaimID
	parentErr    error
	childrenErr  error
	parentCalls  int
	childrenCall int
}

func (r *fakeRepo) CreateRecord(_ context.Context, c *domain.Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parentCalls++
	if r.parentErr != nil {
		return r.parentErr
	}
	r.parents = append(r.parents, c)
	return nil
}

func (r *fakeRepo) CreateChildRecords(_ context.Context, id domain.ClaimID, _ domain.EnhancedAnalysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.childrenCall++
	if r.childrenErr != nil {
		return r.childrenErr
	}
	r.children = append(r.children, id)
	return nil
}

func (r *fakeRepo) Get(_ context.Context, _ string, _ domain.ClaimID) (*domain.Claim, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeRepo) Latest(_ context.Context, _ string, _ int) ([]*domain.Claim, error) {
	return nil, errors.New("not implemented")
}

type fakeArtifacts struct {
	mu       sync.Mutex
	puts     int
	failAt   int // fail the Nth Put (1-based), 0 = never
	uploaded []string
	deleted  []string
	objects  map[string][]byte
}

func (a *fakeArtifacts) Put(_ context.Context, _ []byte, contentType string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.puts++
	if a.failAt > 0 && a.puts == a.failAt {
		return "", errors.New("storage write refused")
	}
	key := fmt.Sprintf("artifact-%d", a.puts)
	a.uploaded = append(a.uploaded, key)
	return key, nil
}

func (a *fakeArtifacts) Get(_ context.Context, key string) ([]byte, string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.objects[key]
	if !ok {
		return nil, "", errors.New("no such key")
	}
	return data, "application/pdf", nil
}

func (a *fakeArtifacts) Delete(_ context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.deleted = append(a.deleted, key)
	return nil
}

type fakeAnalyzer struct {
	mu    sync.Mutex
	raw   string
	err   error
	delay time.Duration
	calls int
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, model string, _ domai.Invocation) (*domai.RawResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &domai.RawResult{JSON: []byte(f.raw), TokensUsed: 900, Model: model}, nil
}

func (f *fakeAnalyzer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type nopExtractor struct{}

func (nopExtractor) ExtractText(_ context.Context, _ []byte) (string, error) { return "", nil }

const basicPayload = `{
	"summary": "rear bumper dented",
	"confidence": 0.9,
	"damage_items": [{"part": "rear bumper", "severity": "moderate", "estimated_cost": 450}]
}`

func newTestService(repo *fakeRepo, store *fakeArtifacts, an *fakeAnalyzer) *Service {
	rlStore := ratelimit.NewStore(nil)
	sel := ratelimit.NewSelector(rlStore, []ratelimit.Candidate{
		{Name: "gpt-4o-mini", Limits: ratelimit.Limits{RequestsPerMinute: 100, TokensPerMinute: 1000000, RequestsPerDay: 10000}},
	})
	return &Service{
		Repo:      repo,
		Artifacts: store,
		Analyzer:  an,
		Scanner:   security.NewScanner(nopExtractor{}, zap.NewNop()),
		Selector:  sel,
		Docs:      nopExtractor{},
		Clock:     fixedClock{now: time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)},
		Logger:    zap.NewNop(),
	}
}

func jpeg(name string) domain.MediaFile {
	return domain.MediaFile{Name: name, ContentType: "image/jpeg", Data: []byte{0xff, 0xd8, 0xff}}
}

func TestSubmit_RejectsEmptyMedia(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeArtifacts{}, &fakeAnalyzer{raw: basicPayload})

	res := svc.Submit(context.Background(), domain.SubmissionRequest{RequesterID: "u1"})
	if res.Status != domain.ResultRejected {
		t.Fatalf("status = %s, want rejected", res.Status)
	}
}

func TestSubmit_RejectsEnhancedWithoutPolicyBeforeAnyIO(t *testing.T) {
	repo := &fakeRepo{}
	store := &fakeArtifacts{}
	an := &fakeAnalyzer{raw: basicPayload}
	svc := newTestService(repo, store, an)

	res := svc.Submit(context.Background(), domain.SubmissionRequest{
		RequesterID:           "u1",
		Media:                 []domain.MediaFile{jpeg("a.jpg")},
		WantsEnhancedAnalysis: true,
	})

	if res.Status != domain.ResultRejected {
		t.Fatalf("status = %s, want rejected", res.Status)
	}
	if an.callCount() != 0 || store.puts > 0 || repo.parentCalls > 0 {
		t.Fatal("rejected request must not reach any collaborator")
	}
}

func TestSubmit_SuccessfulBasicFlow(t *testing.T) {
	repo := &fakeRepo{}
	store := &fakeArtifacts{}
	svc := newTestService(repo, store, &fakeAnalyzer{raw: basicPayload})

	res := svc.Submit(context.Background(), domain.SubmissionRequest{
		RequesterID: "u1",
		Media:       []domain.MediaFile{jpeg("a.jpg"), jpeg("b.jpg")},
	})

	if res.Status != domain.ResultSuccess {
		t.Fatalf("status = %s (%s), want success", res.Status, res.Reason)
	}
	if res.RecordID == "" || res.RecordNumber == "" {
		t.Fatal("success result must carry record id and number")
	}
	if res.Analysis == nil || !res.Analysis.InvestigationNeeded {
		t.Fatal("basic analysis must come back upgraded")
	}
	if len(store.uploaded) != 2 {
		t.Fatalf("uploaded %d artifacts, want 2", len(store.uploaded))
	}
	if repo.parentCalls != 1 || repo.childrenCall != 1 {
		t.Fatalf("repo calls parent=%d children=%d, want 1/1", repo.parentCalls, repo.childrenCall)
	}
	if !strings.HasPrefix(res.RecordNumber, "CLM-2025-") {
		t.Fatalf("record number %q has wrong shape", res.RecordNumber)
	}
}

func TestSubmit_RateLimitedCarriesRetryAfter(t *testing.T) {
	repo := &fakeRepo{}
	store := &fakeArtifacts{}
	svc := newTestService(repo, store, &fakeAnalyzer{raw: basicPayload})
	svc.Selector = ratelimit.NewSelector(ratelimit.NewStore(nil), []ratelimit.Candidate{
		{Name: "gpt-4o-mini", Limits: ratelimit.Limits{RequestsPerMinute: 0, TokensPerMinute: 0, RequestsPerDay: 0}},
	})

	res := svc.Submit(context.Background(), domain.SubmissionRequest{
		RequesterID: "u1",
		Media:       []domain.MediaFile{jpeg("a.jpg")},
	})

	if res.Status != domain.ResultRateLimited {
		t.Fatalf("status = %s, want rate_limited", res.Status)
	}
	if res.RetryAfterSeconds < 1 || res.RetryAfterSeconds > 60 {
		t.Fatalf("retry after %d out of [1, 60]", res.RetryAfterSeconds)
	}
	if store.puts > 0 {
		t.Fatal("rate-limited submission must not upload anything")
	}
}

func TestSubmit_TimeoutBeforeUpload(t *testing.T) {
	store := &fakeArtifacts{}
	svc := newTestService(&fakeRepo{}, store, &fakeAnalyzer{raw: basicPayload, delay: 200 * time.Millisecond})
	svc.AnalysisTimeout = 20 * time.Millisecond

	res := svc.Submit(context.Background(), domain.SubmissionRequest{
		RequesterID: "u1",
		Media:       []domain.MediaFile{jpeg("a.jpg")},
	})

	if res.Status != domain.ResultTimedOut {
		t.Fatalf("status = %s, want timed_out", res.Status)
	}
	if !strings.Contains(res.Message, "images") {
		t.Fatalf("timeout message %q should mention images for an image-only request", res.Message)
	}
	if store.puts > 0 {
		t.Fatal("timed-out submission must not upload anything")
	}
}

func TestSubmit_TimeoutMessageMentionsVideo(t *testing.T) {
	svc := newTestService(&fakeRepo{}, &fakeArtifacts{}, &fakeAnalyzer{raw: basicPayload, delay: 200 * time.Millisecond})
	svc.AnalysisTimeout = 20 * time.Millisecond

	res := svc.Submit(context.Background(), domain.SubmissionRequest{
		RequesterID: "u1",
		Media: []domain.MediaFile{
			jpeg("a.jpg"),
			{Name: "crash.mp4", ContentType: "video/mp4", Data: []byte{0x00}},
		},
	})

	if res.Status != domain.ResultTimedOut || !strings.Contains(res.Message, "video") {
		t.Fatalf("got status=%s message=%q, want timeout mentioning video", res.Status, res.Message)
	}
}

func TestSubmit_UploadFailureCleansUpThatStep(t *testing.T) {
	repo := &fakeRepo{}
	store := &fakeArtifacts{failAt: 3}
	svc := newTestService(repo, store, &fakeAnalyzer{raw: basicPayload})

	res := svc.Submit(context.Background(), domain.SubmissionRequest{
		RequesterID: "u1",
		Media:       []domain.MediaFile{jpeg("a.jpg"), jpeg("b.jpg"), jpeg("c.jpg")},
	})

	if res.Status != domain.ResultFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if len(store.deleted) != 2 {
		t.Fatalf("deleted %d artifacts, want the 2 that were uploaded", len(store.deleted))
	}
	if repo.parentCalls != 0 {
		t.Fatal("nothing may be persisted after an upload failure")
	}

	// A retry of the same request starts uploads from zero.
	store.failAt = 0
	res = svc.Submit(context.Background(), domain.SubmissionRequest{
		RequesterID: "u1",
		Media:       []domain.MediaFile{jpeg("a.jpg"), jpeg("b.jpg"), jpeg("c.jpg")},
	})
	if res.Status != domain.ResultSuccess {
		t.Fatalf("retry status = %s (%s), want success", res.Status, res.Reason)
	}
}

func TestSubmit_PersistFailureRetainsArtifactsAndIsRetryable(t *testing.T) {
	repo := &fakeRepo{parentErr: errors.New("db down")}
	store := &fakeArtifacts{}
	svc := newTestService(repo, store, &fakeAnalyzer{raw: basicPayload})

	res := svc.Submit(context.Background(), domain.SubmissionRequest{
		RequesterID: "u1",
		Media:       []domain.MediaFile{jpeg("a.jpg")},
	})

	if res.Status != domain.ResultFailed {
		t.Fatalf("status = %s, want failed", res.Status)
	}
	if res.RecordID == "" {
		t.Fatal("persist failure must expose the record id for retry")
	}
	if len(store.deleted) != 0 {
		t.Fatal("persist failure must retain uploaded artifacts")
	}

	putsBefore := store.puts
	repo.parentErr = nil

	retry := svc.RetryPersist(context.Background(), "u1", res.RecordID)
	if retry.Status != domain.ResultSuccess {
		t.Fatalf("retry status = %s (%s), want success", retry.Status, retry.Reason)
	}
	if store.puts != putsBefore {
		t.Fatal("persistence retry must not re-upload artifacts")
	}
	if len(repo.parents) != 1 {
		t.Fatalf("persisted %d parent rows, want 1", len(repo.parents))
	}
	if got := repo.parents[0].Status; got != domain.StatusAnalyzed {
		t.Fatalf("persisted status after successful retry = %s, want %s", got, domain.StatusAnalyzed)
	}

	// Parked record is released after a successful retry.
	again := svc.RetryPersist(context.Background(), "u1", res.RecordID)
	if again.Status != domain.ResultRejected {
		t.Fatalf("second retry status = %s, want rejected", again.Status)
	}
}

func TestRetryPersist_WrongRequesterIsRejected(t *testing.T) {
	repo := &fakeRepo{parentErr: errors.New("db down")}
	store := &fakeArtifacts{}
	svc := newTestService(repo, store, &fakeAnalyzer{raw: basicPayload})

	res := svc.Submit(context.Background(), domain.SubmissionRequest{
		RequesterID: "u1",
		Media:       []domain.MediaFile{jpeg("a.jpg")},
	})
	if res.Status != domain.ResultFailed {
		t.Fatalf("setup: status = %s, want failed", res.Status)
	}

	retry := svc.RetryPersist(context.Background(), "someone-else", res.RecordID)
	if retry.Status != domain.ResultRejected {
		t.Fatalf("status = %s, want rejected for foreign requester", retry.Status)
	}
}

func TestSubmit_ReferencedPolicyDocumentIsFetched(t *testing.T) {
	repo := &fakeRepo{}
	store := &fakeArtifacts{objects: map[string][]byte{"policy-1": []byte("%PDF-1.4 policy text")}}
	svc := newTestService(repo, store, &fakeAnalyzer{raw: basicPayload})

	res := svc.Submit(context.Background(), domain.SubmissionRequest{
		RequesterID:           "u1",
		Media:                 []domain.MediaFile{jpeg("a.jpg")},
		PolicyDocumentKey:     "policy-1",
		WantsEnhancedAnalysis: true,
	})

	if res.Status != domain.ResultSuccess {
		t.Fatalf("status = %s (%s), want success", res.Status, res.Reason)
	}
	if len(repo.parents) != 1 || repo.parents[0].PolicyDocumentKey != "policy-1" {
		t.Fatal("reused policy key must be recorded on the claim")
	}

	// A dangling reference fails before any upload.
	res = svc.Submit(context.Background(), domain.SubmissionRequest{
		RequesterID:           "u1",
		Media:                 []domain.MediaFile{jpeg("a.jpg")},
		PolicyDocumentKey:     "missing-key",
		WantsEnhancedAnalysis: true,
	})
	if res.Status != domain.ResultFailed {
		t.Fatalf("dangling reference status = %s, want failed", res.Status)
	}
}
