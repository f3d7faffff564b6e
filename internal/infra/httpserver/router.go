package httpserver

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appclaims "github.com/clearlane/claims-intake/internal/application/claims"
	domain "github.com/clearlane/claims-intake/internal/domain/claims"
	"github.com/clearlane/claims-intake/internal/middleware"
)

type Router struct {
	svc *appclaims.Service
}

func NewRouter(svc *appclaims.Service) http.Handler {
	r := &Router{svc: svc}
	mux := chi.NewRouter()

	mux.Route("/v1/claims", func(rt chi.Router) {
		rt.Post("/", r.wrap(r.handleSubmit))
		rt.Get("/latest", r.wrap(r.handleLatest))
		rt.Get("/{id}", r.wrap(r.handleGet))
		rt.Post("/{id}/retry-persist", r.wrap(r.handleRetryPersist))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// POST /v1/claims
// Multipart form: media (repeated files), policy_document (optional file),
// policy_document_id (optional key of a stored document), enhanced (bool).
func (r *Router) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	requester := middleware.GetRequesterFromContext(req.Context())
	if err := middleware.ValidateRequesterID(requester); err != nil {
		return writeStatus(w, http.StatusUnauthorized, map[string]any{"error": err.Error()})
	}

	req.Body = http.MaxBytesReader(w, req.Body, middleware.MaxSubmissionBytes)
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		return writeStatus(w, http.StatusBadRequest, map[string]any{"error": "invalid multipart form: " + err.Error()})
	}

	sub := domain.SubmissionRequest{
		RequesterID:           requester,
		PolicyDocumentKey:     req.FormValue("policy_document_id"),
		WantsEnhancedAnalysis: req.FormValue("enhanced") == "true",
	}
	if err := middleware.ValidateArtifactKey(sub.PolicyDocumentKey); err != nil {
		return writeStatus(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	}

	var mediaTypes []string
	for _, fh := range req.MultipartForm.File["media"] {
		mf, err := readUpload(fh)
		if err != nil {
			return writeStatus(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		}
		if err := middleware.ValidateMediaType(mf.ContentType); err != nil {
			return writeStatus(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		}
		mediaTypes = append(mediaTypes, mf.ContentType)
		sub.Media = append(sub.Media, *mf)
	}
	if err := middleware.ValidateMediaSet(mediaTypes); err != nil {
		return writeStatus(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	}

	if fhs := req.MultipartForm.File["policy_document"]; len(fhs) > 0 {
		doc, err := readUpload(fhs[0])
		if err != nil {
			return writeStatus(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		}
		if err := middleware.ValidateDocumentType(doc.ContentType); err != nil {
			return writeStatus(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		}
		sub.PolicyDocument = doc
	}

	result := r.svc.Submit(req.Context(), sub)
	middleware.IncrementSubmission(string(result.Status))
	return writeResult(w, result)
}

// POST /v1/claims/{id}/retry-persist
func (r *Router) handleRetryPersist(w http.ResponseWriter, req *http.Request) error {
	requester := middleware.GetRequesterFromContext(req.Context())
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateClaimID(id); err != nil {
		return writeStatus(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	}

	result := r.svc.RetryPersist(req.Context(), requester, id)
	middleware.IncrementSubmission(string(result.Status))
	return writeResult(w, result)
}

// GET /v1/claims/{id}
func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	requester := middleware.GetRequesterFromContext(req.Context())
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateClaimID(id); err != nil {
		return writeStatus(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
	}

	claim, err := r.svc.Get(req.Context(), requester, domain.ClaimID(id))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(claim)
}

// GET /v1/claims/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	requester := middleware.GetRequesterFromContext(req.Context())
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.svc.Latest(req.Context(), requester, middleware.ValidateLimit(limit))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// writeResult maps a pipeline result onto an HTTP status. Every terminal
// state is a value; nothing here is an exception path.
func writeResult(w http.ResponseWriter, res domain.SubmissionResult) error {
	status := http.StatusOK
	switch res.Status {
	case domain.ResultSuccess:
		status = http.StatusCreated
	case domain.ResultRejected:
		status = http.StatusBadRequest
	case domain.ResultRateLimited:
		status = http.StatusTooManyRequests
		w.Header().Set("Retry-After", strconv.Itoa(res.RetryAfterSeconds))
	case domain.ResultTimedOut:
		status = http.StatusGatewayTimeout
	case domain.ResultFailed:
		status = http.StatusBadGateway
	}
	return writeStatus(w, status, res)
}

func writeStatus(w http.ResponseWriter, status int, body any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(body)
}

func readUpload(fh *multipart.FileHeader) (*domain.MediaFile, error) {
	if fh.Size > middleware.MaxFileBytes {
		return nil, fmt.Errorf("file %s exceeds the %d byte limit", fh.Filename, middleware.MaxFileBytes)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, middleware.MaxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload %s: %w", fh.Filename, err)
	}
	if int64(len(data)) > middleware.MaxFileBytes {
		return nil, fmt.Errorf("file %s exceeds the %d byte limit", fh.Filename, middleware.MaxFileBytes)
	}

	return &domain.MediaFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
