package claims

// ResultStatus discriminates SubmissionResult.
type ResultStatus string

const (
	ResultSuccess     ResultStatus = "success"
	ResultRejected    ResultStatus = "rejected"
	ResultRateLimited ResultStatus = "rate_limited"
	ResultTimedOut    ResultStatus = "timed_out"
	ResultFailed      ResultStatus = "failed"
)

// SubmissionResult is the single outbound contract of the pipeline. Callers
// switch on Status; only the fields for that status are populated.
type SubmissionResult struct {
	Status            ResultStatus      `json:"status"`
	RecordID          string            `json:"record_id,omitempty"`
	RecordNumber      string            `json:"record_number,omitempty"`
	Analysis          *EnhancedAnalysis `json:"analysis,omitempty"`
	Warnings          []string          `json:"warnings,omitempty"`
	Reason            string            `json:"reason,omitempty"`
	RetryAfterSeconds int               `json:"retry_after_seconds,omitempty"`
	Message           string            `json:"message,omitempty"`
}

func Success(id ClaimID, number string, analysis EnhancedAnalysis, warnings []string) SubmissionResult {
	return SubmissionResult{
		Status:       ResultSuccess,
		RecordID:     string(id),
		RecordNumber: number,
		Analysis:     &analysis,
		Warnings:     warnings,
	}
}

func Rejected(reason string) SubmissionResult {
	return SubmissionResult{Status: ResultRejected, Reason: reason}
}

func RateLimited(retryAfter int, message string) SubmissionResult {
	return SubmissionResult{Status: ResultRateLimited, RetryAfterSeconds: retryAfter, Message: message}
}

func TimedOut(message string) SubmissionResult {
	return SubmissionResult{Status: ResultTimedOut, Message: message}
}

func Failed(reason string) SubmissionResult {
	return SubmissionResult{Status: ResultFailed, Reason: reason}
}
