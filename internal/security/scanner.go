package security

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// maxScannedImages caps the per-request OCR work.
const maxScannedImages = 5

// Match is one triggered rule.
type Match struct {
	Category string          `json:"category"`
	Severity PatternSeverity `json:"severity"`
}

// ScanResult is produced once per scan and never mutated. It informs the
// caller; it never gates the pipeline.
type ScanResult struct {
	IsSuspicious bool      `json:"is_suspicious"`
	Matches      []Match   `json:"matches,omitempty"`
	RiskLevel    RiskLevel `json:"risk_level"`
	Reasoning    string    `json:"reasoning"`
}

// ImageTextExtractor pulls any readable text out of image bytes.
type ImageTextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// DocumentTextExtractor pulls the text layer out of a document (PDF).
type DocumentTextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// Scanner extracts text from untrusted image uploads and matches it, together
// with caller-supplied document text, against the injection ruleset. Extraction
// failures degrade to a clean low-risk result: the scanner must never be the
// reason a legitimate claim is blocked.
type Scanner struct {
	images ImageTextExtractor
	logger *zap.Logger
}

func NewScanner(images ImageTextExtractor, logger *zap.Logger) *Scanner {
	return &Scanner{images: images, logger: logger}
}

// Scan extracts the images and runs the shared matching stage over them plus
// policyText, which the caller already extracted for the prompt. Only the
// first maxScannedImages images are extracted; video is never passed in.
func (s *Scanner) Scan(ctx context.Context, images [][]byte, policyText string) ScanResult {
	var parts []string

	n := len(images)
	if n > maxScannedImages {
		n = maxScannedImages
	}
	for i := 0; i < n; i++ {
		text, err := s.images.ExtractText(ctx, images[i])
		if err != nil {
			s.logger.Debug("image text extraction failed", zap.Int("index", i), zap.Error(err))
			continue
		}
		parts = append(parts, text)
	}

	if strings.TrimSpace(policyText) != "" {
		parts = append(parts, policyText)
	}

	return ScanText(strings.Join(parts, "\n"))
}

// ScanText is the shared pattern-matching stage.
//
// Aggregation: any high match, or two or more medium matches, makes the scan
// high risk; exactly one medium match is medium risk; everything else is low.
func ScanText(text string) ScanResult {
	if strings.TrimSpace(text) == "" {
		return ScanResult{
			IsSuspicious: false,
			RiskLevel:    RiskLow,
			Reasoning:    "no readable text extracted",
		}
	}

	var matches []Match
	highs, mediums := 0, 0
	for _, r := range rules {
		if r.Pattern.MatchString(text) {
			matches = append(matches, Match{Category: r.Category, Severity: r.Severity})
			switch r.Severity {
			case PatternHigh:
				highs++
			case PatternMedium:
				mediums++
			}
		}
	}

	if len(matches) == 0 {
		return ScanResult{
			IsSuspicious: false,
			RiskLevel:    RiskLow,
			Reasoning:    "no injection patterns matched",
		}
	}

	risk := RiskLow
	switch {
	case highs > 0 || mediums >= 2:
		risk = RiskHigh
	case mediums == 1:
		risk = RiskMedium
	}

	return ScanResult{
		IsSuspicious: true,
		Matches:      matches,
		RiskLevel:    risk,
		Reasoning: fmt.Sprintf("matched %d injection pattern(s): %d high, %d medium, %d low",
			len(matches), highs, mediums, len(matches)-highs-mediums),
	}
}

// Warnings renders a scan result as user-facing warning strings for a
// successful submission. A clean scan yields none.
func (r ScanResult) Warnings() []string {
	if !r.IsSuspicious {
		return nil
	}
	out := []string{fmt.Sprintf("content flagged %s risk: %s", r.RiskLevel, r.Reasoning)}
	seen := map[string]bool{}
	for _, m := range r.Matches {
		key := m.Category
		if !seen[key] {
			seen[key] = true
			out = append(out, fmt.Sprintf("suspicious %s content detected (%s severity)", m.Category, m.Severity))
		}
	}
	return out
}
