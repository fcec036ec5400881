package ai

import (
	"context"
	"fmt"
)

// StaticGreeter fills a fixed template; used when no model key is configured
// and as the fallback when the model fails.
type StaticGreeter struct{}

func (StaticGreeter) Intro(_ context.Context, from, to Player) (string, error) {
	name := from.Name
	if name == "" {
		name = "A player nearby"
	}
	if from.Rating != nil {
		return fmt.Sprintf("%s (DUPR %.2f) would like to play with you!", name, *from.Rating), nil
	}
	return fmt.Sprintf("%s would like to play with you!", name), nil
}
