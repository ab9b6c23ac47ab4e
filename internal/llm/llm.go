// Package llm contains the completion backends the chat controller asks for replies.
package llm

import "context"

// Completer turns a prompt into a single reply. An empty reply with a nil error
// means the backend produced no text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
