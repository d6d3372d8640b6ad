package database_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"smile-preview-backend/internal/database"
	"smile-preview-backend/internal/leads"
)

func TestMigrations_Embedded(t *testing.T) {
	names, err := database.Migrations()
	require.NoError(t, err)
	assert.Contains(t, names, "001_create_submissions.sql")
}

// Runs against a real Postgres when TEST_DATABASE_URL is set.
func TestLeadStore_RoundTrip(t *testing.T) {
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	db, err := database.Open(ctx, dbURL)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, database.NewMigrator(db, zerolog.Nop()).Run(ctx))

	store := database.NewLeadStore(db)
	require.NoError(t, store.Clear(ctx))

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.Insert(ctx, leads.Submission{Timestamp: base, Name: "first", Phone: "+1 5551234", SelectedToothType: "Natural", SelectedToothColor: "Natural (A1)", OutputImgURL: "u"}))
	require.NoError(t, store.Insert(ctx, leads.Submission{Timestamp: base.Add(time.Minute), Name: "second", Phone: "+1 5551234", Email: "a@b.c", SelectedToothType: "Oval", SelectedToothColor: "Natural (A1)", OutputImgURL: "u"}))

	subs, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "second", subs[0].Name)
	assert.Equal(t, "a@b.c", subs[0].Email)
	assert.Equal(t, "", subs[1].Email)

	require.NoError(t, store.Clear(ctx))
	subs, err = store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)
}
