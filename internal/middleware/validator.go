package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation for claim submissions

const (
	// MaxImagesPerSubmission caps the photo set per claim.
	MaxImagesPerSubmission = 5
	// MaxVideosPerSubmission caps the video set per claim.
	MaxVideosPerSubmission = 1
	// MaxFileBytes is the per-file upload cap.
	MaxFileBytes = 25 << 20 // 25 MB
	// MaxSubmissionBytes is the whole-request cap.
	MaxSubmissionBytes = 120 << 20 // 120 MB
)

var allowedMediaTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"video/mp4":       true,
	"video/quicktime": true,
}

var allowedDocumentTypes = map[string]bool{
	"application/pdf": true,
}

// ValidateMediaType checks an uploaded media file's declared mime type.
func ValidateMediaType(contentType string) error {
	if !allowedMediaTypes[strings.ToLower(contentType)] {
		return fmt.Errorf("unsupported media type: %s (allowed: jpeg, png, webp, mp4, quicktime)", contentType)
	}
	return nil
}

// ValidateDocumentType checks the policy document's declared mime type.
func ValidateDocumentType(contentType string) error {
	if !allowedDocumentTypes[strings.ToLower(contentType)] {
		return fmt.Errorf("unsupported document type: %s (allowed: pdf)", contentType)
	}
	return nil
}

// ValidateMediaSet enforces the per-submission media shape.
func ValidateMediaSet(contentTypes []string) error {
	images, videos := 0, 0
	for _, ct := range contentTypes {
		switch {
		case strings.HasPrefix(ct, "image/"):
			images++
		case strings.HasPrefix(ct, "video/"):
			videos++
		}
	}
	if images > MaxImagesPerSubmission {
		return fmt.Errorf("too many images: %d (max %d)", images, MaxImagesPerSubmission)
	}
	if videos > MaxVideosPerSubmission {
		return fmt.Errorf("too many videos: %d (max %d)", videos, MaxVideosPerSubmission)
	}
	return nil
}

// ValidateRequesterID validates requester ID format
func ValidateRequesterID(requester string) error {
	if requester == "" {
		return fmt.Errorf("requester ID cannot be empty")
	}

	pattern := `^[a-zA-Z0-9_-]{1,64}$`
	matched, _ := regexp.MatchString(pattern, requester)
	if !matched {
		return fmt.Errorf("invalid requester ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateClaimID validates claim record ID format (UUID)
func ValidateClaimID(id string) error {
	if id == "" {
		return fmt.Errorf("claim ID cannot be empty")
	}

	pattern := `^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}$`
	matched, _ := regexp.MatchString(pattern, id)
	if !matched {
		return fmt.Errorf("invalid claim ID format")
	}
	return nil
}

// ValidateArtifactKey rejects keys that escape the claims prefix.
func ValidateArtifactKey(key string) error {
	if key == "" {
		return nil // optional field
	}
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return fmt.Errorf("invalid artifact key")
	}
	if !strings.HasPrefix(key, "claims/") {
		return fmt.Errorf("artifact key outside the claims namespace")
	}
	return nil
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}
