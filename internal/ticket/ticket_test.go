package ticket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedeemSingleUse(t *testing.T) {
	r := NewRegistry(time.Minute)
	id := r.Issue(42)

	got, err := r.Redeem(id)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	_, err = r.Redeem(id)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestRedeemUnknown(t *testing.T) {
	r := NewRegistry(time.Minute)
	_, err := r.Redeem("no-such-ticket")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestRedeemExpired(t *testing.T) {
	r := NewRegistry(time.Minute)
	now := time.Now()
	r.now = func() time.Time { return now }

	id := r.Issue(7)
	now = now.Add(61 * time.Second)

	_, err := r.Redeem(id)
	assert.ErrorIs(t, err, ErrInvalid)
	assert.Equal(t, 0, r.Len())
}

func TestIssueTTL(t *testing.T) {
	r := NewRegistry(time.Minute)
	now := time.Now()
	r.now = func() time.Time { return now }

	id := r.IssueTTL(7, time.Hour)
	now = now.Add(30 * time.Minute)

	got, err := r.Redeem(id)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got)
}

func TestSweep(t *testing.T) {
	r := NewRegistry(time.Minute)
	now := time.Now()
	r.now = func() time.Time { return now }

	r.Issue(1)
	r.Issue(2)
	live := r.IssueTTL(3, time.Hour)

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 2, r.Sweep())
	assert.Equal(t, 1, r.Len())

	got, err := r.Redeem(live)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)
}

// Exactly one of many concurrent redeemers may win a ticket.
func TestRedeemRace(t *testing.T) {
	r := NewRegistry(time.Minute)
	id := r.Issue(9)

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan int64, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got, err := r.Redeem(id); err == nil {
				wins <- got
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []int64
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1)
	assert.Equal(t, int64(9), winners[0])
}
