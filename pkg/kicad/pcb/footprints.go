package pcb

import (
	"fmt"
	"strings"

	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/sexp"
	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/sexp/kicadsexp"
)

// parsePad extracts a pad definition from a footprint
// Expected format: (pad "number" type shape (at x y [angle]) (size w h) (layers ...) (net n) ...)
func parsePad(node kicadsexp.Sexp, netMap *NetMap) (*Pad, error) {
	if node.IsLeaf() {
		return nil, fmt.Errorf("expected pad list, got leaf")
	}

	pad := &Pad{}

	number, err := sexp.GetString(node, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pad number: %w", err)
	}
	pad.Number = number

	// thru_hole, smd, connect, np_thru_hole
	padType, err := sexp.GetString(node, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pad type: %w", err)
	}
	pad.Type = padType

	// circle, rect, oval, roundrect, trapezoid, custom
	shape, err := sexp.GetString(node, 3)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pad shape: %w", err)
	}
	pad.Shape = shape

	atNode, found := sexp.FindNode(node, "at")
	if !found {
		return nil, fmt.Errorf("missing required 'at' position")
	}
	pad.Position, err = sexp.GetPosition(atNode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pad position: %w", err)
	}

	sizeNode, found := sexp.FindNode(node, "size")
	if !found {
		return nil, fmt.Errorf("missing required 'size' field")
	}
	width, err := sexp.GetFloat(sizeNode, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pad width: %w", err)
	}
	height, err := sexp.GetFloat(sizeNode, 2)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pad height: %w", err)
	}
	pad.Size = Size{Width: width, Height: height}

	// Drill can be just a number or (drill oval w h)
	if drillNode, found := sexp.FindNode(node, "drill"); found {
		if drill, err := sexp.GetFloat(drillNode, 1); err == nil {
			pad.Drill = drill
		} else if drill, err := sexp.GetFloat(drillNode, 2); err == nil {
			pad.Drill = drill
		}
	}

	layersNode, found := sexp.FindNode(node, "layers")
	if !found {
		return nil, fmt.Errorf("missing required 'layers' field")
	}
	for _, item := range sexp.GetListItems(layersNode) {
		if !item.IsLeaf() {
			continue
		}
		name := strings.Trim(item.String(), `"`)
		if name != "" {
			pad.Layers = append(pad.Layers, name)
		}
	}

	if netNode, found := sexp.FindNode(node, "net"); found {
		netNum, err := sexp.GetInt(netNode, 1)
		if err == nil && netMap != nil {
			if net, ok := netMap.GetByNumber(netNum); ok {
				pad.Net = net
			}
		}
	}

	if uuidNode, found := sexp.FindNode(node, "uuid"); found {
		pad.UUID, _ = sexp.GetUUID(uuidNode)
	}

	return pad, nil
}

// parseFootprint extracts a footprint (component) definition
// Expected format: (footprint "library:name" (layer "layer") (at x y [angle]) ...)
func parseFootprint(node kicadsexp.Sexp, netMap *NetMap) (*Footprint, error) {
	if node.IsLeaf() {
		return nil, fmt.Errorf("expected footprint list, got leaf")
	}

	footprint := &Footprint{}

	fpName, err := sexp.GetString(node, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to parse footprint name: %w", err)
	}

	// Example: "Switch_Keyboard_Cherry_MX:SW_Cherry_MX_PCB_1.00u"
	if lib, name, ok := strings.Cut(fpName, ":"); ok {
		footprint.Library = lib
		footprint.Name = name
	} else {
		footprint.Name = fpName
	}

	layer, ok := sexp.GetChildString(node, "layer")
	if !ok {
		return nil, fmt.Errorf("missing required 'layer' field")
	}
	footprint.Layer = layer

	atNode, found := sexp.FindNode(node, "at")
	if !found {
		return nil, fmt.Errorf("missing required 'at' position")
	}
	footprint.Position, err = sexp.GetPosition(atNode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse position: %w", err)
	}

	if uuidNode, found := sexp.FindNode(node, "uuid"); found {
		footprint.UUID, _ = sexp.GetUUID(uuidNode)
	}

	// KiCad 7 stores reference and value as fp_text, KiCad 8 as properties
	for _, textNode := range sexp.FindAllNodes(node, "fp_text") {
		kind, err := sexp.GetString(textNode, 1)
		if err != nil {
			continue
		}
		text, err := sexp.GetString(textNode, 2)
		if err != nil {
			continue
		}
		switch kind {
		case "reference":
			footprint.Reference = text
		case "value":
			footprint.Value = text
		}
	}
	for _, propNode := range sexp.FindAllNodes(node, "property") {
		propName, err := sexp.GetString(propNode, 1)
		if err != nil {
			continue
		}
		propValue, err := sexp.GetString(propNode, 2)
		if err != nil {
			continue
		}

		switch propName {
		case "Reference":
			footprint.Reference = propValue
		case "Value":
			footprint.Value = propValue
		}
	}

	for _, padNode := range sexp.FindAllNodes(node, "pad") {
		pad, err := parsePad(padNode, netMap)
		if err != nil {
			return nil, fmt.Errorf("footprint %s: %w", footprint.Reference, err)
		}
		footprint.Pads = append(footprint.Pads, *pad)
	}

	return footprint, nil
}

// parseFootprints extracts all footprint definitions from the root node
func parseFootprints(root kicadsexp.Sexp, netMap *NetMap) ([]Footprint, error) {
	footprintNodes := sexp.FindAllNodes(root, "footprint")
	footprints := make([]Footprint, 0, len(footprintNodes))

	for _, fpNode := range footprintNodes {
		footprint, err := parseFootprint(fpNode, netMap)
		if err != nil {
			return nil, err
		}
		footprints = append(footprints, *footprint)
	}

	return footprints, nil
}
