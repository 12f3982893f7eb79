package pcb

import (
	"fmt"

	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/sexp"
	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/sexp/kicadsexp"
)

// parseGrLine extracts a line graphic element
// Expected format: (gr_line (start x1 y1) (end x2 y2) (stroke ...) (layer "Edge.Cuts"))
func parseGrLine(node kicadsexp.Sexp) (*Line, error) {
	line := &Line{Width: 0.15}

	startNode, found := sexp.FindNode(node, "start")
	if !found {
		return nil, fmt.Errorf("missing required 'start' position")
	}
	start, err := sexp.GetPositionXY(startNode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse start position: %w", err)
	}
	line.Start = start

	endNode, found := sexp.FindNode(node, "end")
	if !found {
		return nil, fmt.Errorf("missing required 'end' position")
	}
	end, err := sexp.GetPositionXY(endNode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse end position: %w", err)
	}
	line.End = end

	// KiCad 6+ nests the width in (stroke (width w) ...), older files use (width w)
	if strokeNode, found := sexp.FindNode(node, "stroke"); found {
		if widthNode, found := sexp.FindNode(strokeNode, "width"); found {
			if w, err := sexp.GetFloat(widthNode, 1); err == nil {
				line.Width = w
			}
		}
	} else if widthNode, found := sexp.FindNode(node, "width"); found {
		if w, err := sexp.GetFloat(widthNode, 1); err == nil {
			line.Width = w
		}
	}

	layer, ok := sexp.GetChildString(node, "layer")
	if !ok {
		return nil, fmt.Errorf("missing required 'layer' field")
	}
	line.Layer = layer

	if uuidNode, found := sexp.FindNode(node, "uuid"); found {
		line.UUID, _ = sexp.GetUUID(uuidNode)
	}

	return line, nil
}

// parseGrText extracts a text element
// Expected format: (gr_text "text" (at x y [angle]) (layer "Cmts.User") (effects ...))
func parseGrText(node kicadsexp.Sexp) (*Text, error) {
	text := &Text{}

	content, err := sexp.GetString(node, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to parse text content: %w", err)
	}
	text.Text = content

	atNode, found := sexp.FindNode(node, "at")
	if !found {
		return nil, fmt.Errorf("missing required 'at' position")
	}
	pos, err := sexp.GetPositionXY(atNode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse position: %w", err)
	}
	text.Position = pos

	layer, ok := sexp.GetChildString(node, "layer")
	if !ok {
		return nil, fmt.Errorf("missing required 'layer' field")
	}
	text.Layer = layer

	if uuidNode, found := sexp.FindNode(node, "uuid"); found {
		text.UUID, _ = sexp.GetUUID(uuidNode)
	}

	return text, nil
}

// parseGraphics extracts the board level lines and texts
func parseGraphics(root kicadsexp.Sexp) ([]Line, []Text, error) {
	var lines []Line
	for _, lineNode := range sexp.FindAllNodes(root, "gr_line") {
		line, err := parseGrLine(lineNode)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse gr_line: %w", err)
		}
		lines = append(lines, *line)
	}

	var texts []Text
	for _, textNode := range sexp.FindAllNodes(root, "gr_text") {
		text, err := parseGrText(textNode)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse gr_text: %w", err)
		}
		texts = append(texts, *text)
	}

	return lines, texts, nil
}
