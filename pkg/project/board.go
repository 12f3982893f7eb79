package project

import (
	"fmt"

	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/netlist"
	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/pcb"
	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/sexp"
	"github.com/OpenTraceLab/kbmatrix/pkg/placer"
	"github.com/OpenTraceLab/kbmatrix/pkg/router"
)

// MarkerLayer carries the unconnected markers.
const MarkerLayer = "Cmts.User"

// BuildNetlist converts the routed nets into a netlist. Components are
// listed switch first, in key order.
func BuildNetlist(source string, pairs []placer.Pair, res *router.Result) *netlist.Netlist {
	n := &netlist.Netlist{Source: source}
	for _, p := range pairs {
		for _, part := range []placer.Part{p.Switch, p.Diode} {
			n.Components = append(n.Components, netlist.Component{
				Ref:       part.Ref,
				Value:     part.Def.Value,
				Footprint: part.Def.ID.String(),
				TStamp:    sexp.StableUUID("component", part.Ref),
			})
		}
	}
	for _, net := range res.Nets {
		out := netlist.Net{Code: net.Code, Name: string(net.Name)}
		for _, node := range net.Nodes {
			out.Nodes = append(out.Nodes, netlist.Node{Ref: node.Ref, Pin: node.Pin, PinType: "passive"})
		}
		n.Nets = append(n.Nets, out)
	}
	return n
}

// BuildBoard lays out the placed parts, their nets, the routed tracks, an
// outline and one marker per unconnected connection.
func BuildBoard(pairs []placer.Pair, res *router.Result) *pcb.Board {
	b := &pcb.Board{
		Layers: pcb.DefaultLayers,
		Nets:   make([]pcb.Net, 0, len(res.Nets)),
	}
	for _, n := range res.Nets {
		b.Nets = append(b.Nets, pcb.Net{Number: n.Code, Name: string(n.Name)})
	}
	netByName := func(name router.NetLabel) *pcb.Net {
		for i := range b.Nets {
			if b.Nets[i].Name == string(name) {
				return &b.Nets[i]
			}
		}
		return nil
	}

	parts := make(map[string]placer.Part, 2*len(pairs))
	for _, p := range pairs {
		for _, part := range []placer.Part{p.Switch, p.Diode} {
			parts[part.Ref] = part
			b.Footprints = append(b.Footprints, footprintOf(part, res, netByName))
		}
	}

	for _, t := range res.Tracks {
		if t.Status == router.Connected {
			for _, s := range t.Segments {
				b.Tracks = append(b.Tracks, pcb.Track{
					Start: s.Start,
					End:   s.End,
					Width: t.Width,
					Layer: s.Layer,
					Net:   netByName(t.Net),
				})
			}
			continue
		}
		var at sexp.Position
		if part, ok := parts[t.From.Ref]; ok {
			at, _ = part.PadPosition(t.From.Pin)
		}
		b.Texts = append(b.Texts, pcb.Text{
			Text:     MarkerText(t),
			Position: at,
			Layer:    MarkerLayer,
		})
	}

	b.AddEdgeCuts(EdgeCutsMargin)
	return b
}

// MarkerText describes an unconnected connection.
func MarkerText(t router.RoutedTrack) string {
	return fmt.Sprintf("unconnected %s %s-%s: %s", t.Net, t.From, t.To, t.Reason)
}

func footprintOf(part placer.Part, res *router.Result, netByName func(router.NetLabel) *pcb.Net) pcb.Footprint {
	fp := pcb.Footprint{
		Library:   part.Def.ID.Library,
		Name:      part.Def.ID.Name,
		Layer:     part.Layer(),
		Position:  pcb.PositionAngle{Position: part.Pos, Angle: part.Angle},
		Reference: part.Ref,
		Value:     part.Def.Value,
	}
	for _, pad := range part.Def.Pads {
		out := pcb.Pad{
			Number:   pad.Number,
			Type:     string(pad.Type),
			Shape:    string(pad.Shape),
			Position: pcb.PositionAngle{Position: part.LocalPad(pad), Angle: part.Angle},
			Size:     pad.Size,
			Drill:    pad.Drill,
			Layers:   pcb.LayerSet(part.PadLayers(pad)),
		}
		if pad.Number != "" {
			if net, ok := res.NetOf(part.Ref, pad.Number); ok {
				out.Net = netByName(net.Name)
			}
		}
		fp.Pads = append(fp.Pads, out)
	}
	return fp
}
