// Package locate abstracts position acquisition for the submission gate.
// Providers may be slow or hang (a GPS fix, an external lookup), so callers
// wrap them with WithTimeout to bound the wait.
package locate

import (
	"context"
	"time"

	appErrors "github.com/parsaabbasian/unispot-sync/pkg/errors"
)

// Position is an observed latitude/longitude pair.
type Position struct {
	Lat float64
	Lng float64
}

// Provider yields the current observed position.
type Provider interface {
	Current(ctx context.Context) (Position, error)
}

// Fixed always reports the configured position.
type Fixed struct {
	Pos Position
}

func (f Fixed) Current(_ context.Context) (Position, error) {
	return f.Pos, nil
}

// Func adapts a plain function to a Provider.
type Func func(ctx context.Context) (Position, error)

func (fn Func) Current(ctx context.Context) (Position, error) {
	return fn(ctx)
}

type timeoutProvider struct {
	inner   Provider
	timeout time.Duration
}

// WithTimeout bounds the wrapped provider so a submission attempt is never
// stuck indefinitely waiting for a location fix. Deadline expiry and provider
// failures both surface as ErrLocationUnavailable, which callers must keep
// distinct from a geofence rejection: the remedy differs.
func WithTimeout(p Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return timeoutProvider{inner: p, timeout: timeout}
}

func (t timeoutProvider) Current(ctx context.Context) (Position, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type fix struct {
		pos Position
		err error
	}
	done := make(chan fix, 1)
	go func() {
		pos, err := t.inner.Current(ctx)
		done <- fix{pos: pos, err: err}
	}()

	select {
	case <-ctx.Done():
		return Position{}, appErrors.Wrap(ctx.Err(), appErrors.ErrLocationUnavailable.Code,
			appErrors.ErrLocationUnavailable.Status, "timed out waiting for a location fix")
	case f := <-done:
		if f.err != nil {
			return Position{}, appErrors.Wrap(f.err, appErrors.ErrLocationUnavailable.Code,
				appErrors.ErrLocationUnavailable.Status, appErrors.ErrLocationUnavailable.Message)
		}
		return f.pos, nil
	}
}
