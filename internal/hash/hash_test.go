package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestLegacy_Deterministic(t *testing.T) {
	t.Parallel()

	var l Legacy
	for _, p := range []string{"", "pw1", "correct horse battery staple", "пароль"} {
		a, err := l.Hash(p)
		require.NoError(t, err)
		b, err := l.Hash(p)
		require.NoError(t, err)

		assert.Equal(t, a, b)
		assert.Len(t, a, 64)
		assert.True(t, l.Verify(p, a))
	}
}

func TestLegacy_DifferentPasswordsDoNotVerify(t *testing.T) {
	t.Parallel()

	var l Legacy
	pairs := [][2]string{{"pw1", "pw2"}, {"alice", "Alice"}, {"a", ""}}
	for _, pq := range pairs {
		digest, err := l.Hash(pq[1])
		require.NoError(t, err)
		assert.False(t, l.Verify(pq[0], digest), "%q must not verify against hash(%q)", pq[0], pq[1])
	}
}

func TestBcrypt_HashAndVerify(t *testing.T) {
	t.Parallel()

	b := NewBcrypt(bcrypt.MinCost)
	digest, err := b.Hash("pw1")
	require.NoError(t, err)

	assert.NotEqual(t, "pw1", digest)
	assert.True(t, IsBcrypt(digest))
	assert.True(t, b.Verify("pw1", digest))
	assert.False(t, b.Verify("wrong", digest))
}

func TestBcrypt_SaltedDigestsDiffer(t *testing.T) {
	t.Parallel()

	b := NewBcrypt(bcrypt.MinCost)
	d1, err := b.Hash("same")
	require.NoError(t, err)
	d2, err := b.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2)
	assert.True(t, b.Verify("same", d1))
	assert.True(t, b.Verify("same", d2))
}

func TestBcrypt_EmptyPassword(t *testing.T) {
	t.Parallel()

	_, err := NewBcrypt(bcrypt.MinCost).Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestNewBcrypt_OutOfRangeCostFallsBack(t *testing.T) {
	t.Parallel()

	assert.Equal(t, bcrypt.DefaultCost, NewBcrypt(0).Cost)
	assert.Equal(t, bcrypt.DefaultCost, NewBcrypt(99).Cost)
	assert.Equal(t, 12, NewBcrypt(12).Cost)
}

func TestChain_VerifiesBothSchemes(t *testing.T) {
	t.Parallel()

	c := NewChain(bcrypt.MinCost)

	fresh, err := c.Hash("pw1")
	require.NoError(t, err)
	assert.True(t, c.Verify("pw1", fresh))
	assert.False(t, c.NeedsUpgrade(fresh))

	legacy, err := Legacy{}.Hash("pw1")
	require.NoError(t, err)
	assert.True(t, c.Verify("pw1", legacy))
	assert.False(t, c.Verify("pw2", legacy))
	assert.True(t, c.NeedsUpgrade(legacy))
}
