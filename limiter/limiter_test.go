package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestPer(t *testing.T) {
	assert.Equal(t, rate.Every(500*time.Millisecond), Per(2, time.Second))
}

func TestMultiOrdersByLimit(t *testing.T) {
	fast := rate.NewLimiter(Per(10, time.Second), 1)
	slow := rate.NewLimiter(Per(1, time.Second), 1)
	m := Multi(fast, slow)
	assert.Equal(t, slow.Limit(), m.Limit())
	require.NoError(t, m.Wait(context.Background()))
}

func TestParseConcurrentRate(t *testing.T) {
	l, err := ParseConcurrentRate("")
	require.NoError(t, err)
	assert.Nil(t, l)

	l, err = ParseConcurrentRate("1000")
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, rate.Every(time.Second), l.Limit())

	l, err = ParseConcurrentRate("5/1000")
	require.NoError(t, err)
	assert.Equal(t, rate.Every(200*time.Millisecond), l.Limit())

	_, err = ParseConcurrentRate("x/10")
	assert.Error(t, err)
	_, err = ParseConcurrentRate("-5")
	assert.Error(t, err)
}

func TestWaitHonoursContext(t *testing.T) {
	l, err := ParseConcurrentRate("1/60000")
	require.NoError(t, err)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx))
}
