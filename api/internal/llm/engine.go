package llm

import "context"

// Engine is a remote inference capability. Complete sends one request and
// returns the text of the first generated choice. Engines do not retry.
type Engine interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}
