package listing

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/datumload/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line string
		want core.Item
	}{
		{"a.jpg 1", core.Item{Source: "a.jpg", Label: 1}},
		{"dir/my photo.jpg 12", core.Item{Source: "dir/my photo.jpg", Label: 12}},
		{"b.jpg -3", core.Item{Source: "b.jpg", Label: -3}},
		{"c.jpg cat", core.Item{Source: "c.jpg", Label: 0}},
		{"d.jpg 7x", core.Item{Source: "d.jpg", Label: 7}},
		{"e.jpg ", core.Item{Source: "e.jpg", Label: 0}},
		{"nolabel.jpg", core.Item{Source: "nolabel.jpg", Label: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLine(tt.line))
		})
	}
}

func TestParse(t *testing.T) {
	input := "a.jpg 1\r\nb.jpg 2\n\n   \nc.jpg 3"

	items, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []core.Item{
		{Source: "a.jpg", Label: 1},
		{Source: "b.jpg", Label: 2},
		{Source: "c.jpg", Label: 3},
	}, items)
}

func TestReadList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	require.NoError(t, os.WriteFile(path, []byte("a.jpg 1\nb.jpg 2\nc.jpg 3\n"), 0644))

	items, err := ReadList(path)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "c.jpg", items[2].Source)
}

func TestReadList_Missing(t *testing.T) {
	_, err := ReadList(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestShuffle(t *testing.T) {
	items := make([]core.Item, 50)
	for i := range items {
		items[i] = core.Item{Source: core.FormatKey(i), Label: i}
	}
	a := append([]core.Item(nil), items...)
	b := append([]core.Item(nil), items...)

	Shuffle(a, 42)
	Shuffle(b, 42)

	assert.Equal(t, a, b, "same seed gives the same permutation")
	assert.NotEqual(t, items, a)
	assert.ElementsMatch(t, items, a)
}
