package pcb

import (
	"regexp"
)

// Board represents a KiCad PCB as far as the key matrix is concerned:
// placed footprints, nets, tracks, the outline and annotation texts.
type Board struct {
	Version    int         // File format version
	Generator  string      // Generator info (e.g., "pcbnew")
	Thickness  float64     // Board thickness in mm
	Layers     []Layer     // Layer definitions
	Nets       []Net       // Electrical nets
	Footprints []Footprint // Component footprints
	Tracks     []Track     // Track segments
	Lines      []Line      // Board level lines (outline)
	Texts      []Text      // Board level texts (markers)
}

// Footprint represents a component footprint
type Footprint struct {
	Library   string        // Library name
	Name      string        // Footprint name
	Layer     string        // Layer (F.Cu or B.Cu typically)
	Position  PositionAngle // Position and rotation
	Pads      []Pad         // Pads
	Reference string        // Reference designator (e.g., "SW1")
	Value     string        // Component value
	UUID      UUID
}

// Pad represents a footprint pad
type Pad struct {
	Number   string        // Pad number/name
	Type     string        // Pad type (thru_hole, smd, etc.)
	Shape    string        // Pad shape (circle, rect, oval, etc.)
	Position PositionAngle // Position relative to the footprint, absolute angle
	Size     Size          // Pad size
	Drill    float64       // Drill diameter (0 for SMD)
	Layers   LayerSet      // Layers the pad appears on
	Net      *Net          // Connected net (if any)
	UUID     UUID
}

// Track represents a copper track segment
type Track struct {
	Start Position // Start point
	End   Position // End point
	Width float64  // Track width in mm
	Layer string   // Layer name
	Net   *Net     // Connected net
	UUID  UUID
}

// Line is a graphic line such as an Edge.Cuts segment
type Line struct {
	Start Position
	End   Position
	Width float64
	Layer string
	UUID  UUID
}

// Text is a free text on a board layer
type Text struct {
	Text     string
	Position Position
	Layer    string
	UUID     UUID
}

// PadWorld returns the board position of one of the footprint's pads.
func (fp *Footprint) PadWorld(pad Pad) Position {
	return fp.Position.Position.Add(pad.Position.Position.Rotate(fp.Position.Angle))
}

// GetPad returns the pad with the given number, or nil.
func (fp *Footprint) GetPad(number string) *Pad {
	for i := range fp.Pads {
		if fp.Pads[i].Number == number {
			return &fp.Pads[i]
		}
	}
	return nil
}

// GetNet returns a net by name, or nil if not found
func (b *Board) GetNet(name string) *Net {
	for i := range b.Nets {
		if b.Nets[i].Name == name {
			return &b.Nets[i]
		}
	}
	return nil
}

// GetFootprint returns the footprint with the given reference, or nil.
func (b *Board) GetFootprint(ref string) *Footprint {
	for i := range b.Footprints {
		if b.Footprints[i].Reference == ref {
			return &b.Footprints[i]
		}
	}
	return nil
}

// PadRef is a pad together with the reference of its footprint
type PadRef struct {
	Reference string
	Pad       Pad
}

// GetNetPads returns all pads connected to a specific net
func (b *Board) GetNetPads(netName string) []PadRef {
	var pads []PadRef
	for _, fp := range b.Footprints {
		for _, pad := range fp.Pads {
			if pad.Net != nil && pad.Net.Name == netName {
				pads = append(pads, PadRef{Reference: fp.Reference, Pad: pad})
			}
		}
	}
	return pads
}

// GetNetTracks returns all tracks connected to a specific net
func (b *Board) GetNetTracks(netName string) []Track {
	var tracks []Track
	for _, track := range b.Tracks {
		if track.Net != nil && track.Net.Name == netName {
			tracks = append(tracks, track)
		}
	}
	return tracks
}

// NetInfo contains information about a net and its connections
type NetInfo struct {
	Net    *Net
	Pads   []PadRef
	Tracks []Track
}

// GetNetInfo returns complete information about a net
func (b *Board) GetNetInfo(netName string) *NetInfo {
	net := b.GetNet(netName)
	if net == nil {
		return nil
	}

	return &NetInfo{
		Net:    net,
		Pads:   b.GetNetPads(netName),
		Tracks: b.GetNetTracks(netName),
	}
}

// GetAllNetNames returns a list of all named nets in the board
func (b *Board) GetAllNetNames() []string {
	names := make([]string, 0, len(b.Nets))
	for _, net := range b.Nets {
		if net.Name != "" {
			names = append(names, net.Name)
		}
	}
	return names
}

var switchRef = regexp.MustCompile(`^SW\d+$`)

// SwitchBounds returns the bounding box of the switch footprint origins.
func (b *Board) SwitchBounds() BoundingBox {
	bbox := NewBoundingBox()
	for _, fp := range b.Footprints {
		if switchRef.MatchString(fp.Reference) {
			bbox.Expand(fp.Position.Position)
		}
	}
	return bbox
}

// AddEdgeCuts draws a rectangular Edge.Cuts outline margin millimetres
// around the switches. Boards without switches are left unchanged.
func (b *Board) AddEdgeCuts(margin float64) {
	bbox := b.SwitchBounds()
	if bbox.IsEmpty() {
		return
	}
	bbox = bbox.Inflate(margin)

	corners := []Position{
		{X: bbox.Min.X, Y: bbox.Min.Y},
		{X: bbox.Max.X, Y: bbox.Min.Y},
		{X: bbox.Max.X, Y: bbox.Max.Y},
		{X: bbox.Min.X, Y: bbox.Max.Y},
	}
	for i := range corners {
		b.Lines = append(b.Lines, Line{
			Start: corners[i],
			End:   corners[(i+1)%len(corners)],
			Width: 0.1,
			Layer: "Edge.Cuts",
		})
	}
}
