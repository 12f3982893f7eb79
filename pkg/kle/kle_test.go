package kle

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/kbmatrix/pkg/layout"
)

func TestParseRawData(t *testing.T) {
	l, err := ParseString("[\"Esc\",\"Q\"],\n[{w:1.5},\"Tab\",\"A\"]")
	require.NoError(t, err)
	require.Len(t, l.Keys, 4)

	tests := []struct {
		label       string
		x, y, width float64
		row         int
	}{
		{"Esc", 0, 0, 1, 0},
		{"Q", 1, 0, 1, 0},
		{"Tab", 0, 1, 1.5, 1},
		{"A", 1.5, 1, 1, 1},
	}
	for i, tt := range tests {
		k := l.Keys[i]
		assert.Equal(t, i, k.Index)
		assert.Equal(t, tt.label, k.Label(0))
		assert.InDelta(t, tt.x, k.X, 1e-9, tt.label)
		assert.InDelta(t, tt.y, k.Y, 1e-9, tt.label)
		assert.InDelta(t, tt.width, k.Width, 1e-9, tt.label)
		assert.Equal(t, tt.row, k.DeclaredRow, tt.label)
	}
}

func TestParseDownloadedJSON(t *testing.T) {
	l, err := ParseString(`[{"name":"tiny","author":"me"},["0,0","0,1"],["1,0","1,1"]]`)
	require.NoError(t, err)
	assert.Equal(t, "tiny", l.Name)
	assert.Equal(t, "me", l.Author)
	require.Len(t, l.Keys, 4)
	assert.Equal(t, "1,1", l.Keys[3].Label(0))
	assert.InDelta(t, 1.0, l.Keys[3].X, 1e-9)
	assert.InDelta(t, 1.0, l.Keys[3].Y, 1e-9)
}

func TestParseMetadataWithoutBrackets(t *testing.T) {
	l, err := ParseString(`{name:"pad"},["A"]`)
	require.NoError(t, err)
	assert.Equal(t, "pad", l.Name)
	require.Len(t, l.Keys, 1)
}

func TestParseMetadataGrid(t *testing.T) {
	l, err := ParseString(`{name:"pad",rows:2,cols:3},["A","B","C"],["D","E","F"]`)
	require.NoError(t, err)
	assert.Equal(t, layout.Grid{Rows: 2, Cols: 3}, l.Grid)

	l, err = ParseString(`[["A"]]`)
	require.NoError(t, err)
	assert.False(t, l.Grid.Declared())

	var buf bytes.Buffer
	l, err = ParseString(`{rows:1,cols:2},["A","B"]`)
	require.NoError(t, err)
	require.NoError(t, Encode(&buf, l))
	back, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, layout.Grid{Rows: 1, Cols: 2}, back.Grid)
}

func TestParseRotation(t *testing.T) {
	l, err := ParseString(`[{r:15,rx:1,ry:2},"A",{x:0.5},"B"],["C"]`)
	require.NoError(t, err)
	require.Len(t, l.Keys, 3)

	a, b, c := l.Keys[0], l.Keys[1], l.Keys[2]
	assert.InDelta(t, 1.0, a.X, 1e-9)
	assert.InDelta(t, 2.0, a.Y, 1e-9)
	assert.InDelta(t, 15.0, a.RotationAngle, 1e-9)
	assert.InDelta(t, 1.0, a.RotationX, 1e-9)
	assert.InDelta(t, 2.0, a.RotationY, 1e-9)

	assert.InDelta(t, 2.5, b.X, 1e-9)

	// The next row restarts at the rotation origin and keeps the angle.
	assert.InDelta(t, 1.0, c.X, 1e-9)
	assert.InDelta(t, 3.0, c.Y, 1e-9)
	assert.InDelta(t, 15.0, c.RotationAngle, 1e-9)
}

func TestParseSkipsDecalAndGhostKeys(t *testing.T) {
	l, err := ParseString(`[{d:true},"logo","A"],[{g:true},"B","C"]`)
	require.NoError(t, err)
	require.Len(t, l.Keys, 1)
	assert.Equal(t, "A", l.Keys[0].Label(0))
	assert.InDelta(t, 1.0, l.Keys[0].X, 1e-9)
}

func TestParseLegendAlignment(t *testing.T) {
	l, err := ParseString(`["!\n1"]`)
	require.NoError(t, err)
	require.Len(t, l.Keys, 1)
	assert.Equal(t, "!", l.Keys[0].Label(0))
	assert.Equal(t, "1", l.Keys[0].Label(6))
}

func TestParseSerialized(t *testing.T) {
	input := `{
	  "meta": {"name": "serial", "author": ""},
	  "keys": [
	    {"labels": ["0,0", null], "x": 0, "y": 0, "width": 1, "height": 1},
	    {"labels": [], "x": 1, "y": 0, "width": 2, "height": 1, "rotation_angle": 10, "rotation_x": 1, "rotation_y": 0},
	    {"labels": ["logo"], "x": 3, "y": 0, "width": 1, "height": 1, "decal": true}
	  ]
	}`
	l, err := ParseString(input)
	require.NoError(t, err)
	assert.Equal(t, "serial", l.Name)
	require.Len(t, l.Keys, 2)
	assert.Equal(t, []string{"0,0"}, l.Keys[0].Labels)
	assert.Equal(t, -1, l.Keys[0].DeclaredRow)
	assert.InDelta(t, 2.0, l.Keys[1].Width, 1e-9)
	assert.InDelta(t, 10.0, l.Keys[1].RotationAngle, 1e-9)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", "   "},
		{"unterminated row", `["A","B"`},
		{"rotation mid row", `["A",{r:10},"B"]`},
		{"late metadata", `["A"],{name:"x"}`},
		{"legend beside rows", `[["A"],"B"]`},
		{"non-numeric width", `[{w:"wide"},"A"]`},
		{"fractional rows", `{rows:1.5},["A"]`},
		{"non-numeric cols", `{cols:"many"},["A"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, layout.ErrInvalidLayout)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	orig, err := ParseString(`[{"name":"rt"},["0,0",{w:2},"0,1"]]`)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, orig))

	back, err := Parse(&buf)
	require.NoError(t, err)
	assert.Equal(t, orig.Name, back.Name)
	require.Len(t, back.Keys, len(orig.Keys))
	for i := range orig.Keys {
		assert.Equal(t, orig.Keys[i].Labels, back.Keys[i].Labels)
		assert.InDelta(t, orig.Keys[i].X, back.Keys[i].X, 1e-9)
		assert.InDelta(t, orig.Keys[i].Width, back.Keys[i].Width, 1e-9)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.json")
	require.NoError(t, os.WriteFile(path, []byte(`[["A","B"]]`), 0o644))

	l, err := ParseFile(path)
	require.NoError(t, err)
	assert.Len(t, l.Keys, 2)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.False(t, layout.IsValidationError(err))
}
