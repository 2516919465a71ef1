package entity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphmodel/entity"
	"graphmodel/pkg/errors"
)

func (f *fixture) manager(t *testing.T, n *entity.Node, attr string) *entity.Manager {
	t.Helper()
	m, err := n.Rel(attr)
	require.NoError(t, err)
	return m
}

func TestConnectAndTraverse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.newPerson(t, "alice", 30)
	norway := f.newCountry(t, "NO")

	country := f.manager(t, alice, "country")
	_, err := country.Connect(ctx, norway, nil)
	require.NoError(t, err)

	connected, err := country.IsConnected(ctx, norway)
	require.NoError(t, err)
	assert.True(t, connected)

	single, err := country.Single(ctx)
	require.NoError(t, err)
	require.NotNil(t, single)
	assert.Equal(t, "Country", single.Schema().Name())
	assert.Equal(t, "NO", single.Get("code"))

	// The declared incoming side sees the same relationship.
	inhabitants := f.manager(t, norway, "inhabitants")
	all, err := inhabitants.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, alice.Ref().ID, all[0].Ref().ID)
	assert.Equal(t, "alice", all[0].Get("name"))
}

func TestConnectIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.newPerson(t, "alice", 30)
	norway := f.newCountry(t, "NO")
	country := f.manager(t, alice, "country")

	_, err := country.Connect(ctx, norway, nil)
	require.NoError(t, err)
	_, err = country.Connect(ctx, norway, nil)
	require.NoError(t, err)

	count, err := country.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSearchFiltersTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	norway := f.newCountry(t, "NO")
	alice := f.newPerson(t, "alice", 30)
	bob := f.newPerson(t, "bob", 40)

	countryA := f.manager(t, alice, "country")
	_, err := countryA.Connect(ctx, norway, nil)
	require.NoError(t, err)
	countryB := f.manager(t, bob, "country")
	_, err = countryB.Connect(ctx, norway, nil)
	require.NoError(t, err)

	inhabitants := f.manager(t, norway, "inhabitants")
	matched, err := inhabitants.Search(ctx, entity.Filters{"age": 30})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, alice.Ref().ID, matched[0].Ref().ID)

	count, err := inhabitants.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestGetRequiresExactlyOneMatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	norway := f.newCountry(t, "NO")
	alice := f.newPerson(t, "alice", 30)
	bob := f.newPerson(t, "bob", 30)
	carol := f.newPerson(t, "carol", 40)
	for _, p := range []*entity.Node{alice, bob, carol} {
		_, err := f.manager(t, p, "country").Connect(ctx, norway, nil)
		require.NoError(t, err)
	}

	inhabitants := f.manager(t, norway, "inhabitants")

	found, err := inhabitants.Get(ctx, entity.Filters{"age": 40})
	require.NoError(t, err)
	assert.Equal(t, carol.Ref().ID, found.Ref().ID)

	_, err = inhabitants.Get(ctx, entity.Filters{"age": 55})
	require.Error(t, err)
	assert.True(t, errors.IsDoesNotExist(err))

	_, err = inhabitants.Get(ctx, entity.Filters{"age": 30})
	require.Error(t, err)
	assert.True(t, errors.IsAmbiguousResult(err))
}

func TestDisconnect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.newPerson(t, "alice", 30)
	norway := f.newCountry(t, "NO")
	country := f.manager(t, alice, "country")

	_, err := country.Connect(ctx, norway, nil)
	require.NoError(t, err)
	require.NoError(t, country.Disconnect(ctx, norway))

	connected, err := country.IsConnected(ctx, norway)
	require.NoError(t, err)
	assert.False(t, connected)

	// Disconnecting when nothing is connected is a no-op.
	assert.NoError(t, country.Disconnect(ctx, norway))
}

func TestConnectWithPayloadModel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.newPerson(t, "alice", 30)
	bob := f.newPerson(t, "bob", 40)
	friends := f.manager(t, alice, "friends")

	rel, err := friends.Connect(ctx, bob, entity.Props{"since": 2005})
	require.NoError(t, err)
	require.NotNil(t, rel)
	assert.Equal(t, int64(2005), rel.Get("since"))
	assert.Equal(t, "Person", rel.StartSchema().Name())
	assert.Equal(t, "Person", rel.EndSchema().Name())
	require.NotNil(t, rel.Ref())
	assert.Equal(t, "FRIEND", rel.Ref().Type)

	fetched, err := friends.Relationship(ctx, bob)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, int64(2005), fetched.Get("since"))
	assert.Equal(t, entity.Props{"since": int64(2005)}, fetched.Properties())

	// The undirected definition is visible from either endpoint.
	backwards, err := f.manager(t, bob, "friends").Relationship(ctx, alice)
	require.NoError(t, err)
	require.NotNil(t, backwards)
}

func TestConnectPayloadValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.newPerson(t, "alice", 30)
	bob := f.newPerson(t, "bob", 40)
	friends := f.manager(t, alice, "friends")

	_, err := friends.Connect(ctx, bob, entity.Props{})
	require.Error(t, err)
	assert.True(t, errors.IsTypeValidation(err))

	_, err = friends.Connect(ctx, bob, entity.Props{"since": 2005, "color": "red"})
	require.Error(t, err)
	assert.True(t, errors.IsNoSuchProperty(err))

	_, err = friends.Connect(ctx, bob, entity.Props{"since": "years ago"})
	require.Error(t, err)
	assert.True(t, errors.IsTypeValidation(err))
}

func TestRelationshipWithoutModel(t *testing.T) {
	f := newFixture(t)

	alice := f.newPerson(t, "alice", 30)
	norway := f.newCountry(t, "NO")
	country := f.manager(t, alice, "country")

	_, err := country.Relationship(context.Background(), norway)
	assert.ErrorIs(t, err, entity.ErrNoPayloadModel)
}

func TestRelationshipWhenNotConnected(t *testing.T) {
	f := newFixture(t)

	alice := f.newPerson(t, "alice", 30)
	bob := f.newPerson(t, "bob", 40)

	rel, err := f.manager(t, alice, "friends").Relationship(context.Background(), bob)
	require.NoError(t, err)
	assert.Nil(t, rel)
}

func TestReconnectCarriesProperties(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.newPerson(t, "alice", 30)
	norway := f.newCountry(t, "NO")
	sweden := f.newCountry(t, "SE")
	country := f.manager(t, alice, "country")

	_, err := country.Connect(ctx, norway, entity.Props{"since": 1999})
	require.NoError(t, err)
	require.NoError(t, country.Reconnect(ctx, norway, sweden))

	wasConnected, err := country.IsConnected(ctx, norway)
	require.NoError(t, err)
	assert.False(t, wasConnected)

	nowConnected, err := country.IsConnected(ctx, sweden)
	require.NoError(t, err)
	assert.True(t, nowConnected)

	rels, err := f.conn.Client().NodeRelationships(ctx, sweden.Ref().ID)
	require.NoError(t, err)
	var found bool
	for _, rel := range rels {
		if rel.Type == "IS_FROM" {
			found = true
			assert.Equal(t, int64(1999), rel.Properties["since"])
		}
	}
	assert.True(t, found)
}

func TestReconnectRequiresExistingRelationship(t *testing.T) {
	f := newFixture(t)

	alice := f.newPerson(t, "alice", 30)
	norway := f.newCountry(t, "NO")
	sweden := f.newCountry(t, "SE")

	err := f.manager(t, alice, "country").Reconnect(context.Background(), norway, sweden)
	require.Error(t, err)
	assert.True(t, errors.IsNotConnected(err))
}

func TestConnectRejectsWrongTargetType(t *testing.T) {
	f := newFixture(t)

	alice := f.newPerson(t, "alice", 30)
	bob := f.newPerson(t, "bob", 40)

	_, err := f.manager(t, alice, "country").Connect(context.Background(), bob, nil)
	require.Error(t, err)
	assert.True(t, errors.IsTargetTypeMismatch(err))
}

func TestOperationsRequireSavedNodes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unsaved, err := entity.New(f.person, entity.Props{"name": "ghost"})
	require.NoError(t, err)
	norway := f.newCountry(t, "NO")

	m := f.manager(t, unsaved, "country")
	_, err = m.Connect(ctx, norway, nil)
	assert.True(t, errors.IsUnsavedNode(err))
	_, err = m.All(ctx)
	assert.True(t, errors.IsUnsavedNode(err))

	alice := f.newPerson(t, "alice", 30)
	unsavedCountry, err := entity.New(f.country, entity.Props{"code": "XX"})
	require.NoError(t, err)
	_, err = f.manager(t, alice, "country").Connect(ctx, unsavedCountry, nil)
	assert.True(t, errors.IsUnsavedNode(err))
}

func TestRelUnknownAttribute(t *testing.T) {
	f := newFixture(t)
	alice := f.newPerson(t, "alice", 30)
	_, err := alice.Rel("enemies")
	require.Error(t, err)
	assert.True(t, errors.IsNoSuchProperty(err))
}

func TestMultiTargetResolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	alice := f.newPerson(t, "alice", 30)
	bob := f.newPerson(t, "bob", 40)
	norway := f.newCountry(t, "NO")

	likes := f.manager(t, alice, "likes")
	_, err := likes.Connect(ctx, bob, nil)
	require.NoError(t, err)
	_, err = likes.Connect(ctx, norway, nil)
	require.NoError(t, err)

	all, err := likes.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	byType := map[string]*entity.Node{}
	for _, n := range all {
		byType[n.Schema().Name()] = n
	}
	require.Contains(t, byType, "Person")
	require.Contains(t, byType, "Country")
	assert.Equal(t, "bob", byType["Person"].Get("name"))
	assert.Equal(t, "NO", byType["Country"].Get("code"))
}
