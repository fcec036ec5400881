package ai

import (
	"context"
)

// Greeter drafts the short intro text sent with a new friend request or match.
// Implementations can be swapped (Gemini, static template) without touching callers.
type Greeter interface {
	Intro(ctx context.Context, from, to Player) (string, error)
}
