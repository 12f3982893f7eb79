package pcb

import (
	"fmt"
	"io"
	"strconv"

	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/sexp"
	ks "github.com/OpenTraceLab/kbmatrix/pkg/kicad/sexp/kicadsexp"
)

// Version is the board file format written by Encode (KiCad 7).
const Version = 20221018

// DefaultGenerator is written to the generator field when the board has none.
const DefaultGenerator = "kbm"

// Encode writes b as a .kicad_pcb file. Missing UUIDs are derived from
// references and element order so the output is reproducible.
func Encode(w io.Writer, b *Board) error {
	layers := b.Layers
	if len(layers) == 0 {
		layers = DefaultLayers
	}
	layerMap := NewLayerMap(layers)

	version := b.Version
	if version == 0 {
		version = Version
	}
	generator := b.Generator
	if generator == "" {
		generator = DefaultGenerator
	}
	thickness := b.Thickness
	if thickness == 0 {
		thickness = 1.6
	}

	root := ks.Node("kicad_pcb",
		ks.Node("version", ks.Int(version)),
		ks.Node("generator", ks.Symbol(generator)),
		ks.Node("general", ks.Node("thickness", ks.Num(thickness))),
		ks.Node("paper", ks.Str("A4")),
		encodeLayers(layers),
		ks.Node("setup", ks.Node("pad_to_mask_clearance", ks.Int(0))),
	)

	root.Append(ks.Node("net", ks.Int(0), ks.Str("")))
	for _, n := range b.Nets {
		if n.Number == 0 {
			continue
		}
		root.Append(ks.Node("net", ks.Int(n.Number), ks.Str(n.Name)))
	}

	for i := range b.Footprints {
		fp, err := encodeFootprint(&b.Footprints[i], layerMap)
		if err != nil {
			return err
		}
		root.Append(fp)
	}

	for i, l := range b.Lines {
		if _, ok := layerMap.GetByName(l.Layer); !ok {
			return fmt.Errorf("line %d: unknown layer %q", i, l.Layer)
		}
		root.Append(ks.Node("gr_line",
			sexp.XY("start", l.Start),
			sexp.XY("end", l.End),
			ks.Node("stroke", ks.Node("width", ks.Num(l.Width)), ks.Node("type", ks.Symbol("solid"))),
			ks.Node("layer", ks.Str(l.Layer)),
			uuidNode(l.UUID, "gr_line", strconv.Itoa(i)),
		))
	}

	for i, t := range b.Texts {
		if _, ok := layerMap.GetByName(t.Layer); !ok {
			return fmt.Errorf("text %d: unknown layer %q", i, t.Layer)
		}
		root.Append(ks.Node("gr_text", ks.Str(t.Text),
			sexp.At(t.Position, 0),
			ks.Node("layer", ks.Str(t.Layer)),
			uuidNode(t.UUID, "gr_text", strconv.Itoa(i)),
			ks.Node("effects", font(), ks.Node("justify", ks.Symbol("left"))),
		))
	}

	for i, t := range b.Tracks {
		if !layerMap.IsCopperLayer(t.Layer) {
			return fmt.Errorf("track %d: %q is not a copper layer", i, t.Layer)
		}
		seg := ks.Node("segment",
			sexp.XY("start", t.Start),
			sexp.XY("end", t.End),
			ks.Node("width", ks.Num(t.Width)),
			ks.Node("layer", ks.Str(t.Layer)),
		)
		if t.Net != nil {
			seg.Append(ks.Node("net", ks.Int(t.Net.Number)))
		}
		seg.Append(uuidNode(t.UUID, "segment", strconv.Itoa(i)))
		root.Append(seg)
	}

	return ks.Write(w, root)
}

func encodeLayers(layers []Layer) *ks.List {
	n := ks.Node("layers")
	for _, l := range layers {
		entry := ks.NewList(ks.Int(l.Number), ks.Str(l.Name), ks.Symbol(l.Type))
		if l.UserName != "" {
			entry.Append(ks.Str(l.UserName))
		}
		n.Append(entry)
	}
	return n
}

func encodeFootprint(fp *Footprint, layerMap *LayerMap) (*ks.List, error) {
	if !layerMap.IsCopperLayer(fp.Layer) {
		return nil, fmt.Errorf("footprint %s: %q is not a copper layer", fp.Reference, fp.Layer)
	}

	id := fp.Name
	if fp.Library != "" {
		id = fp.Library + ":" + fp.Name
	}

	silk, fab := "F.SilkS", "F.Fab"
	if fp.Layer == "B.Cu" {
		silk, fab = "B.SilkS", "B.Fab"
	}
	angle := fp.Position.Angle

	n := ks.Node("footprint", ks.Str(id),
		ks.Node("layer", ks.Str(fp.Layer)),
		uuidNode(fp.UUID, "footprint", fp.Reference),
		sexp.At(fp.Position.Position, angle),
		fpText("reference", fp.Reference, Position{Y: -8}, angle, silk, fp.Reference),
		fpText("value", fp.Value, Position{Y: 8}, angle, fab, fp.Reference),
	)

	for i, pad := range fp.Pads {
		for _, l := range pad.Layers {
			if _, ok := layerMap.GetByName(l); !ok && (len(l) < 2 || l[:2] != "*.") {
				return nil, fmt.Errorf("footprint %s pad %q: unknown layer %q", fp.Reference, pad.Number, l)
			}
		}

		p := ks.Node("pad", ks.Str(pad.Number), ks.Symbol(pad.Type), ks.Symbol(pad.Shape),
			sexp.At(pad.Position.Position, pad.Position.Angle),
			ks.Node("size", ks.Num(pad.Size.Width), ks.Num(pad.Size.Height)),
		)
		if pad.Drill > 0 {
			p.Append(ks.Node("drill", ks.Num(pad.Drill)))
		}
		layers := ks.Node("layers")
		for _, l := range pad.Layers {
			layers.Append(ks.Str(l))
		}
		p.Append(layers)
		if pad.Shape == "roundrect" {
			p.Append(ks.Node("roundrect_rratio", ks.Num(0.25)))
		}
		if pad.Net != nil && pad.Net.Number != 0 {
			p.Append(ks.Node("net", ks.Int(pad.Net.Number), ks.Str(pad.Net.Name)))
		}
		p.Append(uuidNode(pad.UUID, "pad", fp.Reference, strconv.Itoa(i)))
		n.Append(p)
	}

	return n, nil
}

func fpText(kind, text string, at Position, angle Angle, layer, ref string) *ks.List {
	effects := ks.Node("effects", font())
	if layer[0] == 'B' {
		effects.Append(ks.Node("justify", ks.Symbol("mirror")))
	}
	return ks.Node("fp_text", ks.Symbol(kind), ks.Str(text),
		sexp.At(at, angle),
		ks.Node("layer", ks.Str(layer)),
		uuidNode("", "fp_text", ref, kind),
		effects,
	)
}

func font() *ks.List {
	return ks.Node("font",
		ks.Node("size", ks.Num(1), ks.Num(1)),
		ks.Node("thickness", ks.Num(0.15)),
	)
}

func uuidNode(id UUID, parts ...string) *ks.List {
	if id == "" {
		id = sexp.StableUUID(parts...)
	}
	return ks.Node("uuid", ks.Str(string(id)))
}
