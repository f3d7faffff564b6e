package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrProviderUnavailable indicates the provider failed with a 5xx or transport error.
var ErrProviderUnavailable = errors.New("ai provider unavailable")

// ErrMalformedResponse indicates the provider answered but the payload could not be decoded.
var ErrMalformedResponse = errors.New("ai response malformed")
