package firestore_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	firestorestore "github.com/PabloGalante/farum-studio/internal/adapters/storage/firestore"
)

// Runs against the Firestore emulator only.
func TestStore_GetSet(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx := context.Background()

	s, err := firestorestore.NewStore(ctx, "farum-test")
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.Get(ctx, "farum.missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "farum.sessions", []byte(`[]`)))
	got, ok, err := s.Get(ctx, "farum.sessions")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte(`[]`), got)
}

func TestNewStore_RequiresProject(t *testing.T) {
	_, err := firestorestore.NewStore(context.Background(), "")
	assert.Error(t, err)
}
