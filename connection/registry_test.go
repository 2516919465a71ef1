package connection_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"graphmodel/config"
	"graphmodel/connection"
	"graphmodel/store/localstore"
)

func newRegistry(t *testing.T) *connection.Registry {
	t.Helper()
	client := localstore.NewStore(localstore.NewMemoryBackend(), zap.NewNop())
	reg := connection.NewRegistry(client, zap.NewNop())
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func TestInitializeDispatchesOnScheme(t *testing.T) {
	cfg := &config.Config{StoreURL: "memory://graph", LogLevel: "info"}
	reg, err := connection.Initialize(cfg, zap.NewNop())
	require.NoError(t, err)
	defer reg.Close()
	require.NotNil(t, reg.Client())
}

func TestInitializeUnknownScheme(t *testing.T) {
	cfg := &config.Config{StoreURL: "carrier-pigeon://coop", LogLevel: "info"}
	_, err := connection.Initialize(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no driver registered")
}

func TestNodeIndexIsCached(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	first, err := reg.NodeIndex(ctx, "Person")
	require.NoError(t, err)
	second, err := reg.NodeIndex(ctx, "Person")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, "Person", first.Name())
}

func TestCategoryAnchorIsStable(t *testing.T) {
	reg := newRegistry(t)
	ctx := context.Background()

	first, err := reg.Category(ctx, "Person")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)
	assert.Equal(t, "Person", first.Properties["category"])

	second, err := reg.Category(ctx, "Person")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other, err := reg.Category(ctx, "Country")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestCategoryAnchorSurvivesCacheLoss(t *testing.T) {
	client := localstore.NewStore(localstore.NewMemoryBackend(), zap.NewNop())
	ctx := context.Background()

	regA := connection.NewRegistry(client, zap.NewNop())
	first, err := regA.Category(ctx, "Person")
	require.NoError(t, err)

	// A fresh registry over the same store finds the same anchor instead of
	// creating a second one.
	regB := connection.NewRegistry(client, zap.NewNop())
	second, err := regB.Category(ctx, "Person")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}
