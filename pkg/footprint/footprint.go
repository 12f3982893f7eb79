// Package footprint describes the pad geometry of the switch and diode
// footprints the generator can place.
package footprint

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/sexp"
)

// ErrInvalidFootprintFormat is returned for ids not in "lib:footprint" form.
var ErrInvalidFootprintFormat = errors.New("invalid footprint format")

// Kind tells switches from diodes.
type Kind int

const (
	KindSwitch Kind = iota
	KindDiode
)

func (k Kind) String() string {
	if k == KindDiode {
		return "diode"
	}
	return "switch"
}

// Default footprints used when none is configured.
const (
	DefaultSwitch = "Switch_Keyboard_Cherry_MX:SW_Cherry_MX_PCB_1.00u"
	DefaultDiode  = "Diode_SMD:D_SOD-123"
)

// ID is a "Library:Name" footprint reference.
type ID struct {
	Library string
	Name    string
}

// ParseID splits s into library nickname and footprint name.
func ParseID(s string) (ID, error) {
	lib, name, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || lib == "" || name == "" {
		return ID{}, fmt.Errorf("%w: %q must be in format 'lib:footprint'", ErrInvalidFootprintFormat, s)
	}
	return ID{Library: lib, Name: name}, nil
}

func (id ID) String() string {
	return id.Library + ":" + id.Name
}

// PadType is the KiCad pad attribute.
type PadType string

const (
	PadThruHole PadType = "thru_hole"
	PadSMD      PadType = "smd"
	PadNPTH     PadType = "np_thru_hole"
)

// PadShape is the KiCad pad shape.
type PadShape string

const (
	ShapeCircle    PadShape = "circle"
	ShapeRect      PadShape = "rect"
	ShapeOval      PadShape = "oval"
	ShapeRoundRect PadShape = "roundrect"
)

// Pad is a pad in footprint-local coordinates (mm, Y down).
type Pad struct {
	Number string // Empty for mounting holes
	Type   PadType
	Shape  PadShape
	Pos    sexp.Position
	Size   sexp.Size
	Drill  float64
	Layers []string
}

// Radius approximates the pad by its circumscribing circle.
func (p Pad) Radius() float64 {
	return max(p.Size.Width, p.Size.Height) / 2
}

// Def is a footprint definition.
type Def struct {
	ID    ID
	Kind  Kind
	Value string
	Pads  []Pad
}

// Pad returns the pad with the given number.
func (d *Def) Pad(number string) (Pad, bool) {
	for _, p := range d.Pads {
		if p.Number == number {
			return p, true
		}
	}
	return Pad{}, false
}

var (
	thtLayers  = []string{"*.Cu", "*.Mask"}
	npthLayers = []string{"*.Cu", "*.Mask"}
	smdLayers  = []string{"F.Cu", "F.Paste", "F.Mask"}
)

func tht(num string, x, y, size, drill float64) Pad {
	return Pad{Number: num, Type: PadThruHole, Shape: ShapeCircle,
		Pos: sexp.Position{X: x, Y: y}, Size: sexp.Size{Width: size, Height: size}, Drill: drill, Layers: thtLayers}
}

func hole(x, y, drill float64) Pad {
	return Pad{Type: PadNPTH, Shape: ShapeCircle,
		Pos: sexp.Position{X: x, Y: y}, Size: sexp.Size{Width: drill, Height: drill}, Drill: drill, Layers: npthLayers}
}

func smd(num string, x, y, w, h float64) Pad {
	return Pad{Number: num, Type: PadSMD, Shape: ShapeRoundRect,
		Pos: sexp.Position{X: x, Y: y}, Size: sexp.Size{Width: w, Height: h}, Layers: smdLayers}
}

var switches = map[string][]Pad{
	"SW_Cherry_MX_PCB_1.00u": {
		tht("1", -3.81, -2.54, 2.2, 1.5),
		tht("2", 2.54, -5.08, 2.2, 1.5),
		hole(0, 0, 4),
		hole(-5.08, 0, 1.75),
		hole(5.08, 0, 1.75),
	},
	"SW_Cherry_MX_Plate_1.00u": {
		tht("1", -3.81, -2.54, 2.2, 1.5),
		tht("2", 2.54, -5.08, 2.2, 1.5),
		hole(0, 0, 4),
	},
	"SW_Alps_Matias_1.00u": {
		tht("1", -2.5, -4, 2.5, 1.5),
		tht("2", 2.5, -4.5, 2.5, 1.5),
	},
	"SW_Kailh_Choc_V1_1.00u": {
		tht("1", 0, -5.9, 2.2, 1.2),
		tht("2", 5, -3.8, 2.2, 1.2),
		hole(0, 0, 3.45),
		hole(-5.5, 0, 1.9),
		hole(5.5, 0, 1.9),
	},
}

var diodes = map[string][]Pad{
	"D_SOD-123": {
		smd("1", -1.65, 0, 0.9, 1.2),
		smd("2", 1.65, 0, 0.9, 1.2),
	},
	"D_SOD-323": {
		smd("1", -1.05, 0, 0.6, 0.45),
		smd("2", 1.05, 0, 0.6, 0.45),
	},
	"D_DO-35_SOD27_P7.62mm_Horizontal": {
		{Number: "1", Type: PadThruHole, Shape: ShapeRect, Size: sexp.Size{Width: 1.6, Height: 1.6}, Drill: 0.8, Layers: thtLayers},
		{Number: "2", Type: PadThruHole, Shape: ShapeOval, Pos: sexp.Position{X: 7.62}, Size: sexp.Size{Width: 1.6, Height: 1.6}, Drill: 0.8, Layers: thtLayers},
	},
}

// Lookup returns the geometry of id. Unknown footprints get the default
// geometry of their kind and known=false.
func Lookup(id ID, kind Kind) (def *Def, known bool) {
	table, fallback, value := switches, "SW_Cherry_MX_PCB_1.00u", "SW_Push"
	if kind == KindDiode {
		table, fallback, value = diodes, "D_SOD-123", "D"
	}

	pads, known := table[id.Name]
	if !known {
		pads = table[fallback]
	}
	return &Def{
		ID:    id,
		Kind:  kind,
		Value: value,
		Pads:  append([]Pad(nil), pads...),
	}, known
}

// Names lists the built-in footprint names of a kind in sorted order.
func Names(kind Kind) []string {
	table := switches
	if kind == KindDiode {
		table = diodes
	}
	names := make([]string, 0, len(table))
	for n := range table {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
