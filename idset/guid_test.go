package idset

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGUID_WireOrder(t *testing.T) {
	g, err := ParseGUID("01234567-89ab-cdef-0123-456789abcdef")
	require.NoError(t, err)
	assert.Equal(t, GUID{
		0x67, 0x45, 0x23, 0x01,
		0xab, 0x89,
		0xef, 0xcd,
		0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef,
	}, g)
	assert.Equal(t, "01234567-89ab-cdef-0123-456789abcdef", g.String())

	braced, err := ParseGUID("{01234567-89ab-cdef-0123-456789abcdef}")
	require.NoError(t, err)
	assert.Equal(t, g, braced)

	_, err = ParseGUID("not-a-guid")
	assert.Error(t, err)
}

func TestGUID_UUIDConversion(t *testing.T) {
	u := uuid.New()
	assert.Equal(t, u, GUIDFromUUID(u).UUID())
	assert.False(t, NewGUID().IsZero())
	assert.True(t, GUID0.IsZero())
}

func TestCompare(t *testing.T) {
	ordered := []string{
		"00000001-0000-0000-0000-000000000000",
		"00000100-0000-0000-0000-000000000000",
		"00000100-0001-0000-0000-000000000000",
		"00000100-0001-0100-0000-000000000000",
		"00000100-0001-0100-0000-000000000001",
		"00000100-0001-0100-0100-000000000000",
	}
	for i := 0; i+1 < len(ordered); i++ {
		a, b := MustParseGUID(ordered[i]), MustParseGUID(ordered[i+1])
		assert.Equal(t, -1, Compare(a, b), "%s < %s", a, b)
		assert.Equal(t, 1, Compare(b, a), "%s > %s", b, a)
		assert.Equal(t, 0, Compare(a, a))
	}
}
