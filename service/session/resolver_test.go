package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"PNotify/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	m.Put("s1", "alice")

	id, err := m.Resolve(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "alice", id)

	m.Delete("s1")
	_, err = m.Resolve(context.Background(), "s1")
	assert.True(t, IsNoSession(err))
}

func TestChain_FirstHitWins(t *testing.T) {
	a := NewMemoryStore()
	b := NewMemoryStore()
	b.Put("s1", "bob")
	a.Put("s2", "alice")
	b.Put("s2", "shadow")

	c := Chain{a, b}

	id, err := c.Resolve(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "bob", id)

	id, err = c.Resolve(context.Background(), "s2")
	require.NoError(t, err)
	assert.Equal(t, "alice", id)
}

func TestChain_EmptyCredential(t *testing.T) {
	_, err := Chain{NewMemoryStore()}.Resolve(context.Background(), "")
	assert.True(t, IsNoSession(err))
}

func TestChain_LookupFailureSurfaces(t *testing.T) {
	boom := errors.New("db down")
	c := Chain{
		ResolverFunc(func(context.Context, string) (string, error) { return "", boom }),
		NewMemoryStore(),
	}

	_, err := c.Resolve(context.Background(), "s1")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, IsNoSession(err))
}

func TestJWTResolver(t *testing.T) {
	j := NewJWTResolver([]byte("secret"))

	tok, err := j.Issue("carol", time.Minute)
	require.NoError(t, err)

	id, err := j.Resolve(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "carol", id)

	other := NewJWTResolver([]byte("other"))
	_, err = other.Resolve(context.Background(), tok)
	assert.True(t, IsNoSession(err))

	_, err = j.Resolve(context.Background(), "plain-sid")
	assert.True(t, IsNoSession(err))
}

func TestJWTResolver_NonPositiveTTLUsesDefault(t *testing.T) {
	j := NewJWTResolver([]byte("secret"))
	tok, err := j.Issue("carol", -time.Minute)
	require.NoError(t, err)

	_, err = j.Resolve(context.Background(), tok)
	require.NoError(t, err)
}

func TestIsNoSession(t *testing.T) {
	assert.True(t, IsNoSession(errs.ErrNoSession.Wrap()))
	assert.False(t, IsNoSession(errors.New("x")))
}
