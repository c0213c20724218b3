package idgen

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEveryKind(t *testing.T) {
	kinds := []string{"", KindULID, KindUUID, KindNanoID, KindKSUID, KindCUID2, " ULID "}

	for _, kind := range kinds {
		t.Run(kind, func(t *testing.T) {
			g, err := New(kind)
			require.NoError(t, err)

			seen := make(map[string]struct{})
			for i := 0; i < 100; i++ {
				id, err := g.Generate()
				require.NoError(t, err)
				require.NoError(t, g.Validate(id), id)
				seen[id] = struct{}{}
			}
			assert.Len(t, seen, 100)
		})
	}
}

func TestNewUnknownKind(t *testing.T) {
	_, err := New("snowflake")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownKind))
}

func TestULIDMonotonic(t *testing.T) {
	g := NewULIDGenerator()
	ids := make([]string, 500)
	for i := range ids {
		ids[i] = MustGenerate(g)
	}
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestValidateRejectsForeignIDs(t *testing.T) {
	uuidID := MustGenerate(NewUUIDGenerator())

	assert.Error(t, NewULIDGenerator().Validate(uuidID))
	assert.Error(t, NewKSUIDGenerator().Validate(uuidID))
	assert.Error(t, NewUUIDGenerator().Validate("not-a-uuid"))

	nano, err := NewNanoIDGenerator(8, "ab")
	require.NoError(t, err)
	assert.Error(t, nano.Validate("abababac"))
}

func TestConstructorBounds(t *testing.T) {
	_, err := NewNanoIDGenerator(0, DefaultNanoIDAlphabet)
	assert.Error(t, err)
	_, err = NewNanoIDGenerator(10, "a")
	assert.Error(t, err)
	_, err = NewCUID2Generator(1)
	assert.Error(t, err)
	_, err = NewCUID2Generator(33)
	assert.Error(t, err)
}
