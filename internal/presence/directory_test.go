package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierchat/internal/config"
)

type fakeHandle struct {
	id string
}

func TestBindAndLookup(t *testing.T) {
	d := NewDirectory[*fakeHandle](config.DuplicateReplace)

	h1 := &fakeHandle{id: "h1"}
	_, replaced, err := d.Bind("a@x.com", h1)
	require.NoError(t, err)
	assert.False(t, replaced)

	got, ok := d.Lookup("a@x.com")
	require.True(t, ok)
	assert.Same(t, h1, got)

	_, ok = d.Lookup("ghost@x.com")
	assert.False(t, ok)
}

func TestBindReplacePolicyReturnsPrevious(t *testing.T) {
	d := NewDirectory[*fakeHandle](config.DuplicateReplace)

	h1 := &fakeHandle{id: "h1"}
	h2 := &fakeHandle{id: "h2"}

	_, _, err := d.Bind("a@x.com", h1)
	require.NoError(t, err)

	previous, replaced, err := d.Bind("a@x.com", h2)
	require.NoError(t, err)
	assert.True(t, replaced)
	assert.Same(t, h1, previous)

	got, ok := d.Lookup("a@x.com")
	require.True(t, ok)
	assert.Same(t, h2, got)
}

func TestBindRejectPolicy(t *testing.T) {
	d := NewDirectory[*fakeHandle](config.DuplicateReject)

	h1 := &fakeHandle{id: "h1"}
	h2 := &fakeHandle{id: "h2"}

	_, _, err := d.Bind("a@x.com", h1)
	require.NoError(t, err)

	_, _, err = d.Bind("a@x.com", h2)
	assert.ErrorIs(t, err, ErrAlreadyBound)

	// First bind stays in place.
	got, ok := d.Lookup("a@x.com")
	require.True(t, ok)
	assert.Same(t, h1, got)

	// Re-binding the same handle is not a duplicate.
	_, _, err = d.Bind("a@x.com", h1)
	assert.NoError(t, err)
}

func TestUnbindConditional(t *testing.T) {
	d := NewDirectory[*fakeHandle](config.DuplicateReplace)

	h1 := &fakeHandle{id: "h1"}
	h2 := &fakeHandle{id: "h2"}

	_, _, err := d.Bind("a@x.com", h1)
	require.NoError(t, err)

	// Unbind with a stale handle must be a no-op.
	assert.False(t, d.Unbind("a@x.com", h2))
	got, ok := d.Lookup("a@x.com")
	require.True(t, ok)
	assert.Same(t, h1, got)

	// Matching handle removes the entry.
	assert.True(t, d.Unbind("a@x.com", h1))
	_, ok = d.Lookup("a@x.com")
	assert.False(t, ok)

	// Second unbind of the same handle is a no-op.
	assert.False(t, d.Unbind("a@x.com", h1))
}

func TestStaleUnbindAfterRebind(t *testing.T) {
	// A disconnect of an older session racing a newer bind for the same
	// identity must not remove the newer entry.
	d := NewDirectory[*fakeHandle](config.DuplicateReplace)

	h1 := &fakeHandle{id: "h1"}
	h2 := &fakeHandle{id: "h2"}

	_, _, err := d.Bind("a@x.com", h1)
	require.NoError(t, err)
	_, _, err = d.Bind("a@x.com", h2)
	require.NoError(t, err)

	assert.False(t, d.Unbind("a@x.com", h1))

	got, ok := d.Lookup("a@x.com")
	require.True(t, ok)
	assert.Same(t, h2, got)
}

func TestConcurrentBindUnbind(t *testing.T) {
	d := NewDirectory[*fakeHandle](config.DuplicateReplace)

	const workers = 32
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			key := fmt.Sprintf("user%d@x.com", n%4)
			h := &fakeHandle{id: fmt.Sprintf("h%d", n)}
			for j := 0; j < 200; j++ {
				_, _, _ = d.Bind(key, h)
				d.Lookup(key)
				d.Unbind(key, h)
			}
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, d.Len(), 4)
}
