package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cowork/internal/ir"
)

func TestManualTime_DefaultsToEpoch(t *testing.T) {
	c := NewManualTime(time.Time{})
	assert.Equal(t, Epoch, c.Now())
}

func TestManualTime_Advance(t *testing.T) {
	c := NewManualTime(Epoch)

	assert.Equal(t, Epoch.Add(time.Second), c.Advance(time.Second))
	assert.Equal(t, Epoch.Add(time.Second), c.Advance(-time.Hour), "never goes backwards")

	c.Set(Epoch) // earlier, ignored
	assert.Equal(t, Epoch.Add(time.Second), c.Now())

	c.Set(Epoch.Add(time.Minute))
	assert.Equal(t, Epoch.Add(time.Minute), c.Now())
}

func TestManualTime_Concurrent(t *testing.T) {
	c := NewManualTime(Epoch)

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Advance(time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(100*time.Millisecond), c.Now())
}

func TestMemJournal(t *testing.T) {
	j := NewMemJournal()
	ctx := context.Background()

	require.NoError(t, j.Append(ctx, ir.JournalEntry{Seq: 1, Outcome: ir.OutcomeApplied}))
	require.NoError(t, j.Append(ctx, ir.JournalEntry{Seq: 2, Outcome: ir.OutcomeSkipped}))

	entries := j.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[1].Seq)
	assert.Equal(t, []ir.Outcome{ir.OutcomeApplied, ir.OutcomeSkipped}, j.Outcomes())

	// Entries is a copy.
	entries[0].Seq = 99
	assert.Equal(t, int64(1), j.Entries()[0].Seq)

	j.Err = errors.New("disk full")
	assert.Error(t, j.Append(ctx, ir.JournalEntry{Seq: 3}))
	assert.Len(t, j.Entries(), 2)
}
