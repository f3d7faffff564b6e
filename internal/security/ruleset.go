package security

import "regexp"

// PatternSeverity of one matched rule
type PatternSeverity string

const (
	PatternHigh   PatternSeverity = "high"
	PatternMedium PatternSeverity = "medium"
	PatternLow    PatternSeverity = "low"
)

// RiskLevel is the aggregated verdict for a whole scan.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Rule is one injection pattern. Rules are evaluated in order; order inside
// a severity band only affects the reasoning text, not the verdict.
type Rule struct {
	Category string
	Severity PatternSeverity
	Pattern  *regexp.Regexp
}

// rules covers the known prompt-injection families:
// high    explicit instruction-override phrasing
// medium  fabricated role delimiters / conversation markers
// low     role-play and jailbreak keywords
var rules = []Rule{
	{"instruction_override", PatternHigh, regexp.MustCompile(`(?i)ignore\s+(all\s+|any\s+)?(previous|prior|above|earlier)\s+(instructions?|prompts?|rules?)`)},
	{"instruction_override", PatternHigh, regexp.MustCompile(`(?i)disregard\s+(all\s+|any\s+)?(previous|prior|above|your)\s+(instructions?|prompts?|rules?)`)},
	{"instruction_override", PatternHigh, regexp.MustCompile(`(?i)forget\s+(everything|all)\s+(you\s+were\s+told|above|before)`)},
	{"instruction_override", PatternHigh, regexp.MustCompile(`(?i)(override|overwrite)\s+(the\s+)?(system\s+prompt|your\s+instructions?)`)},
	{"instruction_override", PatternHigh, regexp.MustCompile(`(?i)new\s+instructions?\s*:`)},

	{"role_delimiter", PatternMedium, regexp.MustCompile(`(?im)^\s*(system|assistant)\s*:`)},
	{"role_delimiter", PatternMedium, regexp.MustCompile(`(?i)<\|?im_start\|?>|<\|?im_end\|?>`)},
	{"role_delimiter", PatternMedium, regexp.MustCompile(`(?i)\[\s*/?\s*(SYSTEM|INST)\s*\]`)},
	{"conversation_marker", PatternMedium, regexp.MustCompile(`(?i)-{3,}\s*END(\s+OF)?(\s+(PROMPT|INSTRUCTIONS?|CONVERSATION))?\s*-{0,3}`)},

	{"jailbreak", PatternLow, regexp.MustCompile(`(?i)\bjailbreak\b`)},
	{"jailbreak", PatternLow, regexp.MustCompile(`(?i)\bdo\s+anything\s+now\b|\bDAN\s+mode\b`)},
	{"role_play", PatternLow, regexp.MustCompile(`(?i)pretend\s+(you\s+are|to\s+be)\b`)},
	{"role_play", PatternLow, regexp.MustCompile(`(?i)act\s+as\s+(if\s+you|an?\s+unrestricted)`)},
	{"role_play", PatternLow, regexp.MustCompile(`(?i)roleplay\s+as\b`)},
}
