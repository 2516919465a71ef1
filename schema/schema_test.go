package schema_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"graphmodel/connection"
	"graphmodel/pkg/errors"
	"graphmodel/schema"
	"graphmodel/store/localstore"
)

func newTypeRegistry(t *testing.T) *schema.TypeRegistry {
	t.Helper()
	client := localstore.NewStore(localstore.NewMemoryBackend(), zap.NewNop())
	conn := connection.NewRegistry(client, zap.NewNop())
	t.Cleanup(func() { _ = conn.Close() })
	return schema.NewTypeRegistry(conn)
}

func TestRegisterAndGet(t *testing.T) {
	types := newTypeRegistry(t)

	s, err := types.Register(context.Background(), "Person",
		schema.WithProperties(
			schema.StringProperty("name", schema.WithUniqueIndex()),
			schema.IntProperty("age", schema.Optional(), schema.WithIndex()),
		),
	)
	require.NoError(t, err)
	assert.Equal(t, "Person", s.Name())
	assert.Equal(t, "PERSON", s.CategoryRelation())
	require.NotNil(t, s.Index())
	assert.Equal(t, "Person", s.Index().Name())

	got, err := types.Get("Person")
	require.NoError(t, err)
	assert.Same(t, s, got)

	p, ok := s.Property("name")
	require.True(t, ok)
	assert.True(t, p.UniqueIndex)
}

func TestRegisterDuplicateFails(t *testing.T) {
	types := newTypeRegistry(t)

	_, err := types.Register(context.Background(), "Person")
	require.NoError(t, err)

	_, err = types.Register(context.Background(), "Person")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindAlreadyRegistered))
}

func TestGetUnknownType(t *testing.T) {
	types := newTypeRegistry(t)

	_, err := types.Get("Ghost")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUnknownType))
}

func TestIndexAndUniqueIndexAreExclusive(t *testing.T) {
	types := newTypeRegistry(t)

	bad := schema.Property{Name: "name", Type: schema.String, Index: true, UniqueIndex: true}
	_, err := types.Register(context.Background(), "Person", schema.WithProperties(bad))
	require.Error(t, err)
	assert.True(t, errors.IsTypeValidation(err))
}

func TestDuplicatePropertyFails(t *testing.T) {
	types := newTypeRegistry(t)

	_, err := types.Register(context.Background(), "Person",
		schema.WithProperties(
			schema.StringProperty("name"),
			schema.StringProperty("name"),
		),
	)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindAlreadyRegistered))
}

func TestRelationshipTargetsForwardReference(t *testing.T) {
	types := newTypeRegistry(t)

	// Country is named before it exists; resolution happens lazily.
	def := schema.RelationshipTo("IS_FROM", "Country")
	person, err := types.Register(context.Background(), "Person",
		schema.WithProperties(schema.StringProperty("name")),
		schema.WithRelationship("country", def),
	)
	require.NoError(t, err)

	rel, ok := person.Relationship("country")
	require.True(t, ok)
	assert.Equal(t, "country", rel.Attr)

	_, err = rel.Targets(types)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUnknownType))

	country, err := types.Register(context.Background(), "Country",
		schema.WithProperties(schema.StringProperty("code", schema.WithUniqueIndex())),
	)
	require.NoError(t, err)

	// The earlier failure was not cached.
	targets, err := rel.Targets(types)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Same(t, country, targets["Country"])
}

func TestNewRelModelRejectsIndexedProperties(t *testing.T) {
	_, err := schema.NewRelModel("Friendship",
		schema.IntProperty("since", schema.WithIndex()),
	)
	require.Error(t, err)
	assert.True(t, errors.IsTypeValidation(err))
}

func TestNewRelModel(t *testing.T) {
	m, err := schema.NewRelModel("Friendship",
		schema.IntProperty("since"),
		schema.StringProperty("context", schema.Optional()),
	)
	require.NoError(t, err)
	assert.Equal(t, "Friendship", m.Name())
	assert.Len(t, m.Properties(), 2)

	p, ok := m.Property("since")
	require.True(t, ok)
	assert.Equal(t, schema.Int, p.Type)
}

func TestRelationshipDirections(t *testing.T) {
	to := schema.RelationshipTo("KNOWS", "Person")
	from := schema.RelationshipFrom("KNOWS", "Person")
	either := schema.Relationship("KNOWS", "Person")

	assert.Equal(t, "outgoing", to.Direction.String())
	assert.Equal(t, "incoming", from.Direction.String())
	assert.Equal(t, "either", either.Direction.String())
}
