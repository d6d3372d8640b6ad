package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"smile-preview-backend/internal/session"
)

func TestMemoryStore_LoadUnknownIsZero(t *testing.T) {
	store := session.NewMemoryStore(time.Minute)

	st, err := store.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, session.State{}, st)
}

func TestMarkSubmitted_KeepsCountry(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(time.Minute)
	require.NoError(t, store.Save(ctx, "v1", session.State{CountryCode: "TR", DialCode: "+90"}))

	require.NoError(t, session.MarkSubmitted(ctx, store, "v1"))

	st, err := store.Load(ctx, "v1")
	require.NoError(t, err)
	assert.True(t, st.FormSubmitted)
	assert.Equal(t, "+90", st.DialCode)
}

func TestMemoryStore_Expires(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(10 * time.Millisecond)
	require.NoError(t, store.Save(ctx, "v1", session.State{FormSubmitted: true}))

	time.Sleep(30 * time.Millisecond)

	st, err := store.Load(ctx, "v1")
	require.NoError(t, err)
	assert.False(t, st.FormSubmitted)
}
