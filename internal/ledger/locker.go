package ledger

import (
	"context"
	"slices"
)

// Release frees locks obtained from a Locker. It is safe to call more than once.
type Release func()

// Locker provides per-organization mutual exclusion.
type Locker interface {
	// Acquire locks every key in ascending order and fails with a CONTENTION
	// error when the bounded wait runs out. Partially acquired keys are
	// released before returning an error.
	Acquire(ctx context.Context, keys ...string) (Release, error)
	// Backend names the implementation for logs and metrics.
	Backend() string
}

func noopRelease() {}

// normalizeKeys returns the distinct non-empty keys in ascending order.
func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			out = append(out, k)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

type heldKey struct{}

// WithHeld marks keys as already locked by the caller, so nested ledger calls
// under ctx do not try to acquire them again.
func WithHeld(ctx context.Context, keys ...string) context.Context {
	held := map[string]struct{}{}
	for k := range heldFrom(ctx) {
		held[k] = struct{}{}
	}
	for _, k := range keys {
		held[k] = struct{}{}
	}
	return context.WithValue(ctx, heldKey{}, held)
}

func heldFrom(ctx context.Context) map[string]struct{} {
	held, _ := ctx.Value(heldKey{}).(map[string]struct{})
	return held
}

// missing returns the keys in want not already held under ctx.
func missing(ctx context.Context, want []string) []string {
	held := heldFrom(ctx)
	if len(held) == 0 {
		return want
	}
	out := make([]string, 0, len(want))
	for _, k := range want {
		if _, ok := held[k]; !ok {
			out = append(out, k)
		}
	}
	return out
}
