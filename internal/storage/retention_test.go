package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type fakePurgeTarget struct {
	remaining int64
	calls     int
	cutoffs   []time.Time
}

func (f *fakePurgeTarget) PurgeInactive(_ context.Context, cutoff time.Time, limit int) (int64, error) {
	f.calls++
	f.cutoffs = append(f.cutoffs, cutoff)
	n := int64(limit)
	if f.remaining < n {
		n = f.remaining
	}
	f.remaining -= n
	return n, nil
}

func TestPurgeOnceDrainsInBatches(t *testing.T) {
	target := &fakePurgeTarget{remaining: 1200}
	p := NewPurger(target, 30*24*time.Hour, time.Hour, nil)
	p.limiter = rate.NewLimiter(rate.Inf, 1) // no pacing in tests

	n, err := p.PurgeOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1200), n)
	assert.Equal(t, 3, target.calls) // 500 + 500 + 200

	// The cutoff honors the retention window.
	wantCutoff := time.Now().Add(-30 * 24 * time.Hour)
	assert.WithinDuration(t, wantCutoff, target.cutoffs[0], time.Minute)
}

func TestPurgeOnceEmpty(t *testing.T) {
	target := &fakePurgeTarget{}
	p := NewPurger(target, time.Hour, time.Hour, nil)
	p.limiter = rate.NewLimiter(rate.Inf, 1)

	n, err := p.PurgeOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, target.calls)
}

func TestPurgeOnceRespectsCancellation(t *testing.T) {
	target := &fakePurgeTarget{remaining: 10_000}
	p := NewPurger(target, time.Hour, time.Hour, nil)
	// One batch per hour: the second Wait blocks until the context dies.
	p.limiter = rate.NewLimiter(rate.Every(time.Hour), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.PurgeOnce(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, target.calls)
}

func TestOpCtxBoundsAcquisition(t *testing.T) {
	p := &Postgres{acquireTimeout: 10 * time.Millisecond}
	ctx, cancel := p.opCtx(context.Background())
	defer cancel()
	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, time.Second)

	unbounded := &Postgres{}
	ctx, cancel = unbounded.opCtx(context.Background())
	defer cancel()
	_, ok = ctx.Deadline()
	assert.False(t, ok)
}
