package placer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/sexp"
	"github.com/OpenTraceLab/kbmatrix/pkg/layout"
	"github.com/OpenTraceLab/kbmatrix/pkg/matrix"
)

func assignment(i int, x, y float64) matrix.Assignment {
	return matrix.Assignment{
		Key:        layout.Key{Index: i, X: x, Y: y, Width: 1, Height: 1, DeclaredRow: -1},
		Annotation: matrix.Automatic{},
		Position:   matrix.Position{Row: int(y), Col: int(x)},
	}
}

func assertPos(t *testing.T, want, got sexp.Position) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-6, "x")
	assert.InDelta(t, want.Y, got.Y, 1e-6, "y")
}

func TestPlaceDefaults(t *testing.T) {
	pairs := Place([]matrix.Assignment{assignment(0, 0, 0), assignment(1, 1, 0)}, DefaultSettings())
	require.Len(t, pairs, 2)

	p := pairs[1]
	assert.Equal(t, "SW2", p.Switch.Ref)
	assert.Equal(t, "D2", p.Diode.Ref)
	assertPos(t, sexp.Position{X: 1.5 * 19.05, Y: 0.5 * 19.05}, p.Switch.Pos)
	assertPos(t, p.Switch.Pos.Add(sexp.Position{X: 5.08, Y: 3.03}), p.Diode.Pos)
	assert.Equal(t, sexp.Angle(90), p.Diode.Angle)
	assert.Equal(t, Front, p.Diode.Side)

	// SOD-123 at 90 degrees: the cathode points down the board.
	cathode, ok := p.Diode.PadPosition("1")
	require.True(t, ok)
	assertPos(t, p.Diode.Pos.Add(sexp.Position{X: 0, Y: 1.65}), cathode)

	pin2, ok := p.Switch.PadPosition("2")
	require.True(t, ok)
	assertPos(t, p.Switch.Pos.Add(sexp.Position{X: 2.54, Y: -5.08}), pin2)

	_, ok = p.Switch.PadPosition("9")
	assert.False(t, ok)
}

func TestPlaceRotatedKey(t *testing.T) {
	a := assignment(0, 0, 0)
	a.Key.RotationAngle = 90
	a.Key.RotationX, a.Key.RotationY = 0.5, 0.5

	pairs := Place([]matrix.Assignment{a}, DefaultSettings())
	sw, d := pairs[0].Switch, pairs[0].Diode
	assert.Equal(t, sexp.Angle(270), sw.Angle)

	// The diode offset turns clockwise with the key.
	assertPos(t, sw.Pos.Add(sexp.Position{X: -3.03, Y: 5.08}), d.Pos)
	assert.Equal(t, sexp.Angle(0), d.Angle)
}

func TestPlaceOverride(t *testing.T) {
	s := DefaultSettings()
	back := Back
	s.Overrides = map[string]Override{
		"D2": {Offset: &sexp.Position{X: 5.08, Y: 30}, Side: &back},
	}

	pairs := Place([]matrix.Assignment{assignment(0, 0, 0), assignment(1, 1, 0)}, s)
	assertPos(t, pairs[0].Switch.Pos.Add(sexp.Position{X: 5.08, Y: 3.03}), pairs[0].Diode.Pos)
	assertPos(t, pairs[1].Switch.Pos.Add(sexp.Position{X: 5.08, Y: 30}), pairs[1].Diode.Pos)
	assert.Equal(t, Back, pairs[1].Diode.Side)
	assert.Equal(t, "B.Cu", pairs[1].Diode.Layer())
}

func TestBackSideMirrorsPads(t *testing.T) {
	s := DefaultSettings()
	s.DiodeSide = Back
	s.DiodeRotation = 0
	pairs := Place([]matrix.Assignment{assignment(0, 0, 0)}, s)
	d := pairs[0].Diode

	cathode, _ := d.PadPosition("1")
	assertPos(t, d.Pos.Add(sexp.Position{X: 1.65}), cathode)

	pad, _ := d.Def.Pad("1")
	assert.Equal(t, []string{"B.Cu", "B.Paste", "B.Mask"}, d.PadLayers(pad))
	assert.True(t, d.OnCopper(pad, "B.Cu"))
	assert.False(t, d.OnCopper(pad, "F.Cu"))

	swPad, _ := pairs[0].Switch.Def.Pad("1")
	assert.True(t, pairs[0].Switch.OnCopper(swPad, "B.Cu"))
}

func TestParseSide(t *testing.T) {
	s, err := ParseSide("back")
	require.NoError(t, err)
	assert.Equal(t, Back, s)
	assert.Equal(t, Front, s.Opposite())

	_, err = ParseSide("top")
	assert.ErrorIs(t, err, layout.ErrInvalidSettings)
}

func TestFlipLayer(t *testing.T) {
	assert.Equal(t, "B.Cu", FlipLayer("F.Cu"))
	assert.Equal(t, "F.Mask", FlipLayer("B.Mask"))
	assert.Equal(t, "*.Cu", FlipLayer("*.Cu"))
}
