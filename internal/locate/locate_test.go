package locate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/parsaabbasian/unispot-sync/pkg/errors"
)

func TestFixedProvider(t *testing.T) {
	p := Fixed{Pos: Position{Lat: 43.7735, Lng: -79.5019}}

	pos, err := p.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 43.7735, pos.Lat)
	assert.Equal(t, -79.5019, pos.Lng)
}

func TestWithTimeoutPassesThrough(t *testing.T) {
	p := WithTimeout(Fixed{Pos: Position{Lat: 1, Lng: 2}}, time.Second)

	pos, err := p.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Position{Lat: 1, Lng: 2}, pos)
}

func TestWithTimeoutBoundsSlowProvider(t *testing.T) {
	slow := Func(func(ctx context.Context) (Position, error) {
		<-ctx.Done()
		return Position{}, ctx.Err()
	})

	p := WithTimeout(slow, 10*time.Millisecond)

	start := time.Now()
	_, err := p.Current(context.Background())

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrLocationUnavailable))
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithTimeoutWrapsProviderFailure(t *testing.T) {
	failing := Func(func(ctx context.Context) (Position, error) {
		return Position{}, errors.New("no fix")
	})

	_, err := WithTimeout(failing, time.Second).Current(context.Background())

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrLocationUnavailable))
}
