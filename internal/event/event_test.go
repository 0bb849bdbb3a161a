package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeNamesAreDistinct(t *testing.T) {
	seen := map[string]Type{}
	for typ := ScanStarted; typ <= FileFailed; typ++ {
		name := typ.String()
		assert.NotEqual(t, "Unknown", name, "type %d has no name", int(typ))
		prev, dup := seen[name]
		assert.False(t, dup, "%s used by %d and %d", name, int(prev), int(typ))
		seen[name] = typ
	}
	assert.Len(t, seen, 6)
	assert.Equal(t, "FileHashed", FileHashed.String())
}

func TestTypeOutOfRange(t *testing.T) {
	for _, typ := range []Type{0, -3, FileFailed + 1} {
		assert.Equal(t, "Unknown", typ.String())
	}
}
