package pcb

import (
	"bytes"
	"strings"
	"testing"
)

func sampleBoard() *Board {
	nets := []Net{{0, ""}, {1, "ROW0"}, {2, "COL0"}, {3, "Net-(D1-Pad2)"}}
	b := &Board{Nets: nets}
	b.Footprints = []Footprint{
		{
			Library: "Switch_Keyboard_Cherry_MX", Name: "SW_Cherry_MX_PCB_1.00u",
			Layer: "F.Cu", Reference: "SW1", Value: "SW_Push",
			Position: PositionAngle{Position: Position{X: 9.525, Y: 9.525}},
			Pads: []Pad{
				{Number: "1", Type: "thru_hole", Shape: "circle", Position: PositionAngle{Position: Position{X: -3.81, Y: -2.54}},
					Size: Size{Width: 2.2, Height: 2.2}, Drill: 1.5, Layers: LayerSet{"*.Cu", "*.Mask"}, Net: &b.Nets[2]},
				{Number: "2", Type: "thru_hole", Shape: "circle", Position: PositionAngle{Position: Position{X: 2.54, Y: -5.08}},
					Size: Size{Width: 2.2, Height: 2.2}, Drill: 1.5, Layers: LayerSet{"*.Cu", "*.Mask"}, Net: &b.Nets[3]},
				{Type: "np_thru_hole", Shape: "circle", Size: Size{Width: 4, Height: 4}, Drill: 4, Layers: LayerSet{"*.Cu", "*.Mask"}},
			},
		},
		{
			Library: "Diode_SMD", Name: "D_SOD-123",
			Layer: "F.Cu", Reference: "D1", Value: "D",
			Position: PositionAngle{Position: Position{X: 14.605, Y: 12.555}, Angle: 90},
			Pads: []Pad{
				{Number: "1", Type: "smd", Shape: "roundrect", Position: PositionAngle{Position: Position{X: -1.65}, Angle: 90},
					Size: Size{Width: 0.9, Height: 1.2}, Layers: LayerSet{"F.Cu", "F.Paste", "F.Mask"}, Net: &b.Nets[1]},
				{Number: "2", Type: "smd", Shape: "roundrect", Position: PositionAngle{Position: Position{X: 1.65}, Angle: 90},
					Size: Size{Width: 0.9, Height: 1.2}, Layers: LayerSet{"F.Cu", "F.Paste", "F.Mask"}, Net: &b.Nets[3]},
			},
		},
	}
	b.Tracks = []Track{
		{Start: Position{X: 12.065, Y: 4.445}, End: Position{X: 12.065, Y: 10.905}, Width: 0.25, Layer: "F.Cu", Net: &b.Nets[3]},
		{Start: Position{X: 12.065, Y: 10.905}, End: Position{X: 14.605, Y: 10.905}, Width: 0.25, Layer: "F.Cu", Net: &b.Nets[3]},
	}
	b.Texts = []Text{{Text: "unconnected ROW0 D1:1-D2:1: pads not aligned", Position: Position{X: 1, Y: 2}, Layer: "Cmts.User"}}
	b.AddEdgeCuts(12)
	return b
}

func TestEncodeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, sampleBoard()); err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	b, err := Parse(&buf)
	if err != nil {
		t.Fatalf("Parse() error: %v\n%s", err, buf.String())
	}

	if b.Version != Version || b.Generator != DefaultGenerator || b.Thickness != 1.6 {
		t.Errorf("header = %d %s %v", b.Version, b.Generator, b.Thickness)
	}
	if len(b.Layers) != len(DefaultLayers) {
		t.Errorf("got %d layers, want %d", len(b.Layers), len(DefaultLayers))
	}
	if got := b.GetAllNetNames(); strings.Join(got, ",") != "ROW0,COL0,Net-(D1-Pad2)" {
		t.Errorf("GetAllNetNames() = %v", got)
	}

	sw := b.GetFootprint("SW1")
	if sw == nil || sw.Value != "SW_Push" || len(sw.Pads) != 3 {
		t.Fatalf("SW1 = %+v", sw)
	}
	if sw.UUID == "" {
		t.Errorf("footprint UUID not written")
	}
	if p := sw.GetPad("1"); p == nil || p.Net == nil || p.Net.Name != "COL0" {
		t.Errorf("SW1 pad 1 = %+v", p)
	}

	d := b.GetFootprint("D1")
	if d == nil || d.Position.Angle != 90 {
		t.Fatalf("D1 = %+v", d)
	}

	info := b.GetNetInfo("Net-(D1-Pad2)")
	if info == nil || len(info.Pads) != 2 || len(info.Tracks) != 2 {
		t.Fatalf("GetNetInfo() = %+v", info)
	}
	if info.Pads[0].Reference != "SW1" || info.Pads[1].Reference != "D1" {
		t.Errorf("net pads = %+v", info.Pads)
	}
	if b.GetNetInfo("VCC") != nil {
		t.Errorf("GetNetInfo() of unknown net should be nil")
	}

	if len(b.Lines) != 4 || b.Lines[0].Layer != "Edge.Cuts" {
		t.Fatalf("lines = %+v", b.Lines)
	}
	if len(b.Texts) != 1 || b.Texts[0].Layer != "Cmts.User" || !strings.HasPrefix(b.Texts[0].Text, "unconnected ROW0") {
		t.Errorf("texts = %+v", b.Texts)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	var a, b bytes.Buffer
	if err := Encode(&a, sampleBoard()); err != nil {
		t.Fatal(err)
	}
	if err := Encode(&b, sampleBoard()); err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Errorf("Encode() output differs between runs")
	}
	if !strings.Contains(a.String(), `(roundrect_rratio 0.25)`) {
		t.Errorf("roundrect pads should carry a ratio")
	}
}

func TestEncodeRejectsBadLayers(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Board)
	}{
		{"track on silk", func(b *Board) { b.Tracks[0].Layer = "F.SilkS" }},
		{"footprint on mask", func(b *Board) { b.Footprints[0].Layer = "F.Mask" }},
		{"unknown pad layer", func(b *Board) { b.Footprints[1].Pads[0].Layers = LayerSet{"In1.Cu"} }},
		{"unknown text layer", func(b *Board) { b.Texts[0].Layer = "Dwgs.User" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := sampleBoard()
			tt.mutate(b)
			if err := Encode(&bytes.Buffer{}, b); err == nil {
				t.Errorf("Encode() expected error")
			}
		})
	}
}

func TestAddEdgeCuts(t *testing.T) {
	b := &Board{Footprints: []Footprint{
		{Reference: "SW1", Position: PositionAngle{Position: Position{X: 10, Y: 10}}},
		{Reference: "SW2", Position: PositionAngle{Position: Position{X: 48.1, Y: 29.05}}},
		{Reference: "D1", Position: PositionAngle{Position: Position{X: 100, Y: 100}}},
	}}
	b.AddEdgeCuts(12)

	if len(b.Lines) != 4 {
		t.Fatalf("got %d edge lines, want 4", len(b.Lines))
	}
	bbox := NewBoundingBox()
	for _, l := range b.Lines {
		bbox.Expand(l.Start)
		bbox.Expand(l.End)
	}
	if bbox.Min != (Position{X: -2, Y: -2}) || bbox.Max.Dist(Position{X: 60.1, Y: 41.05}) > 1e-9 {
		t.Errorf("outline = %+v", bbox)
	}

	empty := &Board{}
	empty.AddEdgeCuts(12)
	if len(empty.Lines) != 0 {
		t.Errorf("board without switches should get no outline")
	}
}
