package ai

import "context"

// Media is one image attachment for the vision call.
type Media struct {
	ContentType string
	Data        []byte
}

// Invocation is a single analysis request to the model backend. Video is
// never attached; its presence is only noted so the prompt can mention it.
type Invocation struct {
	Images     []Media
	HasVideo   bool
	PolicyText string
	Enhanced   bool
}

// RawResult carries the model's structured JSON output plus reported usage.
type RawResult struct {
	JSON       []byte
	TokensUsed int
	Model      string
}

type Analyzer interface {
	Analyze(ctx context.Context, model string, inv Invocation) (*RawResult, error)
}
