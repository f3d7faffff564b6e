package claims

// MediaFile is one uploaded blob with its declared mime type.
type MediaFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// SubmissionRequest is the inbound contract for the intake pipeline.
// PolicyDocument carries a freshly uploaded document; PolicyDocumentKey
// references one already in object storage. At most one of the two is set.
type SubmissionRequest struct {
	RequesterID           string
	Media                 []MediaFile
	PolicyDocument        *MediaFile
	PolicyDocumentKey     string
	WantsEnhancedAnalysis bool
}

// HasPolicyDocument reports whether any policy document, new or previously
// stored, accompanies the request.
func (r *SubmissionRequest) HasPolicyDocument() bool {
	return r.PolicyDocument != nil || r.PolicyDocumentKey != ""
}
