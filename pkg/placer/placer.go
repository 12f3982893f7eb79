// Package placer turns matrix assignments into placed switch and diode
// footprints in board coordinates.
package placer

import (
	"fmt"
	"strings"

	"github.com/OpenTraceLab/kbmatrix/pkg/footprint"
	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/sexp"
	"github.com/OpenTraceLab/kbmatrix/pkg/layout"
	"github.com/OpenTraceLab/kbmatrix/pkg/matrix"
)

// DefaultKeyPitch is the distance between 1u key centres in millimetres.
const DefaultKeyPitch = 19.05

// Side is the board side a part is mounted on.
type Side int

const (
	Front Side = iota
	Back
)

func (s Side) String() string {
	if s == Back {
		return "BACK"
	}
	return "FRONT"
}

// ParseSide accepts FRONT/BACK in any case.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(s) {
	case "", "FRONT", "F":
		return Front, nil
	case "BACK", "B":
		return Back, nil
	}
	return Front, fmt.Errorf("%w: unknown side %q", layout.ErrInvalidSettings, s)
}

// CopperLayer returns the copper layer of the side.
func (s Side) CopperLayer() string {
	if s == Back {
		return "B.Cu"
	}
	return "F.Cu"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Back {
		return Front
	}
	return Back
}

// Override moves a single diode. Nil fields keep the default.
type Override struct {
	Offset   *sexp.Position
	Rotation *sexp.Angle
	Side     *Side
}

// Settings controls placement.
type Settings struct {
	KeyDistanceX  float64
	KeyDistanceY  float64
	Switch        *footprint.Def
	Diode         *footprint.Def
	DiodeOffset   sexp.Position
	DiodeRotation sexp.Angle
	DiodeSide     Side
	Overrides     map[string]Override // Keyed by diode reference
}

// DefaultSettings returns the default Cherry MX + SOD-123 placement.
func DefaultSettings() Settings {
	sw, _ := footprint.Lookup(footprint.ID{Library: "Switch_Keyboard_Cherry_MX", Name: "SW_Cherry_MX_PCB_1.00u"}, footprint.KindSwitch)
	d, _ := footprint.Lookup(footprint.ID{Library: "Diode_SMD", Name: "D_SOD-123"}, footprint.KindDiode)
	return Settings{
		KeyDistanceX:  DefaultKeyPitch,
		KeyDistanceY:  DefaultKeyPitch,
		Switch:        sw,
		Diode:         d,
		DiodeOffset:   sexp.Position{X: 5.08, Y: 3.03},
		DiodeRotation: 90,
		DiodeSide:     Front,
	}
}

// Part is a placed footprint.
type Part struct {
	Ref   string
	Def   *footprint.Def
	Pos   sexp.Position
	Angle sexp.Angle
	Side  Side
}

// Pair is the switch and diode placed for one key.
type Pair struct {
	Assignment matrix.Assignment
	Switch     Part
	Diode      Part
}

// Place positions one switch and one diode per assignment, in order.
func Place(as []matrix.Assignment, s Settings) []Pair {
	def := DefaultSettings()
	if s.KeyDistanceX == 0 {
		s.KeyDistanceX = def.KeyDistanceX
	}
	if s.KeyDistanceY == 0 {
		s.KeyDistanceY = def.KeyDistanceY
	}
	if s.Switch == nil {
		s.Switch = def.Switch
	}
	if s.Diode == nil {
		s.Diode = def.Diode
	}

	pairs := make([]Pair, 0, len(as))
	for i, a := range as {
		cx, cy := a.Key.Center()
		sw := Part{
			Ref:   fmt.Sprintf("SW%d", i+1),
			Def:   s.Switch,
			Pos:   sexp.Position{X: cx * s.KeyDistanceX, Y: cy * s.KeyDistanceY},
			Angle: sexp.Angle(-a.Key.RotationAngle).Normalize(),
			Side:  Front,
		}

		ref := fmt.Sprintf("D%d", i+1)
		offset, rotation, side := s.DiodeOffset, s.DiodeRotation, s.DiodeSide
		if o, ok := s.Overrides[ref]; ok {
			if o.Offset != nil {
				offset = *o.Offset
			}
			if o.Rotation != nil {
				rotation = *o.Rotation
			}
			if o.Side != nil {
				side = *o.Side
			}
		}
		d := Part{
			Ref:   ref,
			Def:   s.Diode,
			Pos:   sw.Pos.Add(offset.Rotate(sw.Angle)),
			Angle: (sw.Angle + rotation).Normalize(),
			Side:  side,
		}

		pairs = append(pairs, Pair{Assignment: a, Switch: sw, Diode: d})
	}
	return pairs
}

// LocalPad returns the pad as stored in the board file: local coordinates
// with X mirrored for back side parts.
func (p Part) LocalPad(pad footprint.Pad) sexp.Position {
	if p.Side == Back {
		return sexp.Position{X: -pad.Pos.X, Y: pad.Pos.Y}
	}
	return pad.Pos
}

// PadWorld returns the board position of pad.
func (p Part) PadWorld(pad footprint.Pad) sexp.Position {
	return p.Pos.Add(p.LocalPad(pad).Rotate(p.Angle))
}

// PadPosition returns the board position of the numbered pad.
func (p Part) PadPosition(number string) (sexp.Position, bool) {
	pad, ok := p.Def.Pad(number)
	if !ok {
		return sexp.Position{}, false
	}
	return p.PadWorld(pad), true
}

// PadLayers returns the pad layers, swapped to the back for back side parts.
func (p Part) PadLayers(pad footprint.Pad) []string {
	if p.Side == Front {
		return pad.Layers
	}
	out := make([]string, len(pad.Layers))
	for i, l := range pad.Layers {
		out[i] = FlipLayer(l)
	}
	return out
}

// OnCopper reports whether pad has copper (or a hole) on layer.
func (p Part) OnCopper(pad footprint.Pad, layer string) bool {
	if pad.Type != footprint.PadSMD {
		return true
	}
	for _, l := range p.PadLayers(pad) {
		if l == layer {
			return true
		}
	}
	return false
}

// Layer is the footprint's layer name.
func (p Part) Layer() string {
	return p.Side.CopperLayer()
}

// FlipLayer maps a front layer to its back counterpart and vice versa.
func FlipLayer(l string) string {
	switch {
	case strings.HasPrefix(l, "F."):
		return "B." + l[2:]
	case strings.HasPrefix(l, "B."):
		return "F." + l[2:]
	}
	return l
}
