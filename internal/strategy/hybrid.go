package strategy

import (
	"context"
	"strings"

	"github.com/forager-sh/forager/internal/types"
)

// Hybrid chains the cheap path to the expensive ones: StandardStealth
// first, then EvasionFirst, then MultiVector, stopping as soon as any
// step clears the minimum-viable item count. Items gathered along the
// way are kept, so a run that never clears the bar still returns the
// union of partial results.
type Hybrid struct{}

func (*Hybrid) Name() string     { return NameHybrid }
func (*Hybrid) Aggressive() bool { return false }

func (h *Hybrid) Attempt(ctx context.Context, deps *Deps, target *types.Target, category string) ([]types.RawItem, error) {
	steps := []Strategy{
		&StandardStealth{},
		&EvasionFirst{},
		&MultiVector{},
	}

	seen := make(map[string]bool)
	var union []types.RawItem
	var lastErr error
	for _, step := range steps {
		if ctx.Err() != nil {
			break
		}
		items, err := step.Attempt(ctx, deps, target, category)
		if err != nil {
			lastErr = err
			deps.Logger.Debug("hybrid step failed, falling through",
				"target", target.ID, "step", step.Name(), "error", err)
		}
		for _, it := range items {
			key := strings.ToLower(it.Name)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			union = append(union, it)
		}
		if len(union) >= deps.MinViable {
			return union, nil
		}
	}
	if len(union) > 0 {
		return union, nil
	}
	if lastErr == nil {
		lastErr = &types.ExtractionError{Strategy: h.Name(), Err: types.ErrNoItems}
	}
	return nil, lastErr
}
