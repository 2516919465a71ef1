package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraphErrorCarriesContext(t *testing.T) {
	err := NewNotUnique("Person", "email")
	ge := Get(err)
	require.NotNil(t, ge)
	assert.Equal(t, KindNotUnique, ge.Kind)
	assert.Equal(t, "Person", ge.EntityType)
	assert.Equal(t, "email", ge.Property)
	assert.True(t, IsNotUnique(err))
	assert.False(t, IsDoesNotExist(err))
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("saving person: %w", NewDoesNotExist("Person"))
	assert.True(t, IsDoesNotExist(err))
	require.NotNil(t, Get(err))
}

func TestCauseIsNeverSwallowed(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewStore("createNode", cause)
	assert.True(t, IsStore(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestWrapPreservesKind(t *testing.T) {
	err := Wrap(NewUnknownType("Ghost"), "resolving targets")
	assert.True(t, IsKind(err, KindUnknownType))
	assert.Contains(t, err.Error(), "resolving targets")
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "nothing"))
}

func TestGetOnForeignError(t *testing.T) {
	assert.Nil(t, Get(stderrors.New("plain")))
	assert.False(t, IsKind(stderrors.New("plain"), KindStore))
}
