// Package netlist reads and writes KiCad netlists in the s-expression
// export format (version "E").
package netlist

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/sexp"
	ks "github.com/OpenTraceLab/kbmatrix/pkg/kicad/sexp/kicadsexp"
)

// FormatVersion is the export format version written by Encode.
const FormatVersion = "E"

// Netlist is a design's components and the nets joining their pins.
type Netlist struct {
	Version    string
	Source     string
	Tool       string
	Components []Component
	Nets       []Net
}

// Component is a placed part.
type Component struct {
	Ref       string
	Value     string
	Footprint string // "Library:Name"
	TStamp    sexp.UUID
}

// Net is a numbered net.
type Net struct {
	Code  int
	Name  string
	Nodes []Node
}

// Node is a component pin on a net.
type Node struct {
	Ref     string
	Pin     string
	PinType string
}

// Component returns the component with the given reference.
func (n *Netlist) Component(ref string) (Component, bool) {
	for _, c := range n.Components {
		if c.Ref == ref {
			return c, true
		}
	}
	return Component{}, false
}

// NetOf returns the net a pin belongs to.
func (n *Netlist) NetOf(ref, pin string) (Net, bool) {
	for _, net := range n.Nets {
		for _, node := range net.Nodes {
			if node.Ref == ref && node.Pin == pin {
				return net, true
			}
		}
	}
	return Net{}, false
}

// Encode writes the netlist. Components without a timestamp get a UUID
// derived from their reference.
func Encode(w io.Writer, n *Netlist) error {
	tool := n.Tool
	if tool == "" {
		tool = "kbm"
	}

	comps := ks.Node("components")
	for _, c := range n.Components {
		if c.Ref == "" {
			return fmt.Errorf("component without reference")
		}
		ts := c.TStamp
		if ts == "" {
			ts = sexp.StableUUID("component", c.Ref)
		}
		comps.Append(ks.Node("comp",
			ks.Node("ref", ks.Str(c.Ref)),
			ks.Node("value", ks.Str(c.Value)),
			ks.Node("footprint", ks.Str(c.Footprint)),
			ks.Node("tstamps", ks.Str(string(ts))),
		))
	}

	nets := ks.Node("nets")
	for _, net := range n.Nets {
		entry := ks.Node("net",
			ks.Node("code", ks.Str(strconv.Itoa(net.Code))),
			ks.Node("name", ks.Str(net.Name)),
		)
		for _, node := range net.Nodes {
			pinType := node.PinType
			if pinType == "" {
				pinType = "passive"
			}
			entry.Append(ks.Node("node",
				ks.Node("ref", ks.Str(node.Ref)),
				ks.Node("pin", ks.Str(node.Pin)),
				ks.Node("pintype", ks.Str(pinType)),
			))
		}
		nets.Append(entry)
	}

	root := ks.Node("export",
		ks.Node("version", ks.Str(FormatVersion)),
		ks.Node("design",
			ks.Node("source", ks.Str(n.Source)),
			ks.Node("tool", ks.Str(tool)),
		),
		comps,
		nets,
	)
	return ks.Write(w, root)
}

// ParseFile reads a netlist file.
func ParseFile(filename string) (*Netlist, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Decode(file)
}

// Decode reads a netlist in export format.
func Decode(r io.Reader) (*Netlist, error) {
	sexps, err := ks.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse s-expression: %w", err)
	}
	if len(sexps) == 0 {
		return nil, fmt.Errorf("empty file or no valid s-expressions found")
	}

	root := sexps[0]
	name, err := sexp.GetNodeName(root)
	if err != nil || name != "export" {
		return nil, fmt.Errorf("not a KiCad netlist: expected 'export', got %q", name)
	}

	n := &Netlist{}
	n.Version, _ = sexp.GetChildString(root, "version")

	if design, ok := sexp.FindNode(root, "design"); ok {
		n.Source, _ = sexp.GetChildString(design, "source")
		n.Tool, _ = sexp.GetChildString(design, "tool")
	}

	if comps, ok := sexp.FindNode(root, "components"); ok {
		for _, c := range sexp.FindAllNodes(comps, "comp") {
			ref, ok := sexp.GetChildString(c, "ref")
			if !ok {
				return nil, fmt.Errorf("component without ref")
			}
			comp := Component{Ref: ref}
			comp.Value, _ = sexp.GetChildString(c, "value")
			comp.Footprint, _ = sexp.GetChildString(c, "footprint")
			if ts, ok := sexp.GetChildString(c, "tstamps"); ok {
				comp.TStamp = sexp.UUID(ts)
			} else if ts, ok := sexp.GetChildString(c, "tstamp"); ok {
				comp.TStamp = sexp.UUID(ts)
			}
			n.Components = append(n.Components, comp)
		}
	}

	if nets, ok := sexp.FindNode(root, "nets"); ok {
		for _, netNode := range sexp.FindAllNodes(nets, "net") {
			codeStr, ok := sexp.GetChildString(netNode, "code")
			if !ok {
				return nil, fmt.Errorf("net without code")
			}
			code, err := strconv.Atoi(codeStr)
			if err != nil {
				return nil, fmt.Errorf("failed to parse net code %q: %w", codeStr, err)
			}
			net := Net{Code: code}
			net.Name, _ = sexp.GetChildString(netNode, "name")

			for _, nodeNode := range sexp.FindAllNodes(netNode, "node") {
				node := Node{}
				node.Ref, _ = sexp.GetChildString(nodeNode, "ref")
				node.Pin, _ = sexp.GetChildString(nodeNode, "pin")
				node.PinType, _ = sexp.GetChildString(nodeNode, "pintype")
				if node.Ref == "" || node.Pin == "" {
					return nil, fmt.Errorf("net %q: node without ref or pin", net.Name)
				}
				net.Nodes = append(net.Nodes, node)
			}
			n.Nets = append(n.Nets, net)
		}
	}

	return n, nil
}
