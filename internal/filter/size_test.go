package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSizeAccepts(t *testing.T) {
	for in, want := range map[string]int64{
		"4096":    4096,
		" 64 ":    64,
		"12b":     12,
		"64k":     64 << 10,
		"64KB":    64 << 10,
		"64kib":   64 << 10,
		"256M":    256 << 20,
		"2g":      2 << 30,
		"2GiB":    2 << 30,
		"3T":      3 << 40,
		"0.25M":   1 << 18,
		"1.5 KiB": 1536,
	} {
		got, err := ParseSize(in)
		require.NoError(t, err, "ParseSize(%q)", in)
		assert.Equal(t, want, got, "ParseSize(%q)", in)
	}
}

func TestParseSizeRejects(t *testing.T) {
	for _, in := range []string{"", "   ", "MB", "ten", "-1", "-0.5K", "1.2.3M", "5X"} {
		_, err := ParseSize(in)
		assert.Error(t, err, "ParseSize(%q)", in)
	}
}
