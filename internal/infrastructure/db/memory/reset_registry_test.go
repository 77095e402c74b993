package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/99minutos/account-recovery/internal/core/domain"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

func TestResetRegistry_IssueRecordsExpiry(t *testing.T) {
	ctx := context.Background()
	r := NewResetRegistry(time.Hour, WithRegistryClock(fixedClock(epoch)))

	tok, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Len(t, tok.Token, 43, "32 bytes of base64url without padding")
	assert.Equal(t, "a@x.com", tok.Email)
	assert.Equal(t, epoch, tok.CreatedAt)
	assert.Equal(t, epoch.Add(time.Hour), tok.ExpiresAt)

	peeked, err := r.Peek(ctx, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, tok, peeked)
	assert.Equal(t, 1, r.Len(), "peek must not consume")
}

func TestResetRegistry_MultipleTokensPerEmail(t *testing.T) {
	ctx := context.Background()
	r := NewResetRegistry(time.Hour)

	a, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	b, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	assert.NotEqual(t, a.Token, b.Token)
	_, err = r.Validate(ctx, a.Token, time.Now())
	assert.NoError(t, err)
	_, err = r.Validate(ctx, b.Token, time.Now())
	assert.NoError(t, err)
}

func TestResetRegistry_ValidateBoundary(t *testing.T) {
	ctx := context.Background()
	r := NewResetRegistry(time.Hour, WithRegistryClock(fixedClock(epoch)))

	tok, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	_, err = r.Validate(ctx, tok.Token, epoch.Add(time.Hour))
	assert.NoError(t, err, "valid at the expiry instant")

	_, err = r.Validate(ctx, tok.Token, epoch.Add(time.Hour+time.Millisecond))
	assert.ErrorIs(t, err, domain.ErrTokenExpired)

	_, err = r.Validate(ctx, "unknown", epoch)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)

	assert.Equal(t, 1, r.Len(), "expired records stay until swept")
}

func TestResetRegistry_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	r := NewResetRegistry(time.Hour)

	tok, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	require.NoError(t, r.Consume(ctx, tok.Token))
	assert.ErrorIs(t, r.Consume(ctx, tok.Token), domain.ErrTokenNotFound)
	_, err = r.Peek(ctx, tok.Token)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}

func TestResetRegistry_ConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	r := NewResetRegistry(time.Hour)

	tok, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	const n = 32
	var (
		wg       sync.WaitGroup
		winners  atomic.Int32
		notFound atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.Consume(ctx, tok.Token)
			if err == nil {
				winners.Add(1)
			} else if errors.Is(err, domain.ErrTokenNotFound) {
				notFound.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.Equal(t, int32(n-1), notFound.Load())
}

func TestResetRegistry_ClaimReleaseConsume(t *testing.T) {
	ctx := context.Background()
	r := NewResetRegistry(time.Hour)

	assert.ErrorIs(t, r.Claim(ctx, "never-issued"), domain.ErrTokenNotFound)

	tok, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	require.NoError(t, r.Claim(ctx, tok.Token))
	assert.ErrorIs(t, r.Claim(ctx, tok.Token), domain.ErrTokenClaimed)

	require.NoError(t, r.Release(ctx, tok.Token))
	require.NoError(t, r.Release(ctx, tok.Token), "releasing twice is a no-op")
	require.NoError(t, r.Claim(ctx, tok.Token), "released token can be claimed again")

	require.NoError(t, r.Consume(ctx, tok.Token))
	assert.ErrorIs(t, r.Claim(ctx, tok.Token), domain.ErrTokenNotFound)
}

func TestResetRegistry_ConcurrentClaim(t *testing.T) {
	ctx := context.Background()
	r := NewResetRegistry(time.Hour)

	tok, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	const n = 32
	var (
		wg      sync.WaitGroup
		winners atomic.Int32
		busy    atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := r.Claim(ctx, tok.Token)
			if err == nil {
				winners.Add(1)
			} else if errors.Is(err, domain.ErrTokenClaimed) {
				busy.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.Equal(t, int32(n-1), busy.Load())
}

func TestResetRegistry_SweepSkipsClaimed(t *testing.T) {
	ctx := context.Background()
	r := NewResetRegistry(time.Hour, WithRegistryClock(fixedClock(epoch)))

	tok, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	require.NoError(t, r.Claim(ctx, tok.Token))

	assert.Equal(t, 0, r.Sweep(epoch.Add(2*time.Hour)))
	require.NoError(t, r.Release(ctx, tok.Token))
	assert.Equal(t, 1, r.Sweep(epoch.Add(2*time.Hour)))
}

func TestResetRegistry_RetriesCollisions(t *testing.T) {
	ctx := context.Background()
	seq := []string{"dup", "dup", "fresh"}
	i := 0
	r := NewResetRegistry(time.Hour, WithTokenSource(func() (string, error) {
		tok := seq[i]
		i++
		return tok, nil
	}))

	first, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "dup", first.Token)

	second, err := r.Issue(ctx, "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, "fresh", second.Token)
}

func TestResetRegistry_GivesUpAfterRepeatedCollisions(t *testing.T) {
	ctx := context.Background()
	r := NewResetRegistry(time.Hour, WithTokenSource(func() (string, error) { return "same", nil }))

	_, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	_, err = r.Issue(ctx, "b@x.com")
	assert.Error(t, err)
}

func TestResetRegistry_Sweep(t *testing.T) {
	ctx := context.Background()
	now := epoch
	r := NewResetRegistry(time.Hour, WithRegistryClock(func() time.Time { return now }))

	old, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	now = epoch.Add(30 * time.Minute)
	fresh, err := r.Issue(ctx, "b@x.com")
	require.NoError(t, err)

	assert.Equal(t, 0, r.Sweep(epoch.Add(time.Hour)))
	assert.Equal(t, 1, r.Sweep(epoch.Add(time.Hour+time.Second)))

	_, err = r.Peek(ctx, old.Token)
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
	_, err = r.Peek(ctx, fresh.Token)
	assert.NoError(t, err)
}

func TestResetRegistry_RunSweeperStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	var swept atomic.Int64
	r := NewResetRegistry(time.Millisecond,
		WithRegistryClock(fixedClock(epoch)),
		WithSweepHook(func(n int) { swept.Add(int64(n)) }),
	)
	_, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	// Clock jumps past expiry for the sweeper.
	r.now = fixedClock(epoch.Add(time.Hour))

	done := make(chan struct{})
	go func() {
		r.RunSweeper(ctx, 5*time.Millisecond, zerolog.Nop())
		close(done)
	}()

	require.Eventually(t, func() bool { return swept.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Zero(t, r.Len())
}

func TestResetRegistry_RunSweeperDisabled(t *testing.T) {
	r := NewResetRegistry(time.Hour)
	// Returns immediately when the interval is not positive.
	r.RunSweeper(context.Background(), 0, zerolog.Nop())
}
