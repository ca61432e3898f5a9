package checkout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	got, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got, "missing session reads as nil, not an error")

	session := &Session{ID: "s1", UserID: "u1", State: StateReady}
	require.NoError(t, store.Put(ctx, session))

	got, err = store.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "s1", got.ID)

	// The store hands out copies; callers must Put to persist a change.
	got.State = StateConfirming
	again, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, StateReady, again.State)

	require.NoError(t, store.Delete(ctx, "u1"))
	got, err = store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
