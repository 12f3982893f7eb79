package kle

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/OpenTraceLab/kbmatrix/pkg/layout"
)

type serialLayout struct {
	Meta serialMeta   `json:"meta"`
	Keys *[]serialKey `json:"keys"`
}

type serialMeta struct {
	Author string `json:"author"`
	Name   string `json:"name"`
	Notes  string `json:"notes,omitempty"`
	Rows   int    `json:"rows,omitempty"`
	Cols   int    `json:"cols,omitempty"`
}

// serialKey mirrors the kle-serial key object. Cosmetic fields are ignored.
type serialKey struct {
	Labels        []string `json:"labels"`
	X             float64  `json:"x"`
	Y             float64  `json:"y"`
	Width         float64  `json:"width"`
	Height        float64  `json:"height"`
	X2            float64  `json:"x2"`
	Y2            float64  `json:"y2"`
	Width2        float64  `json:"width2"`
	Height2       float64  `json:"height2"`
	RotationX     float64  `json:"rotation_x"`
	RotationY     float64  `json:"rotation_y"`
	RotationAngle float64  `json:"rotation_angle"`
	Decal         bool     `json:"decal"`
	Ghost         bool     `json:"ghost"`
	Stepped       bool     `json:"stepped"`
	Nub           bool     `json:"nub"`
}

// Encode writes l in serialized form. The output is indented and stable so
// it can be committed next to generated projects.
func Encode(w io.Writer, l *layout.Layout) error {
	keys := make([]serialKey, 0, len(l.Keys))
	for _, k := range l.Keys {
		labels := k.Labels
		if labels == nil {
			labels = []string{}
		}
		keys = append(keys, serialKey{
			Labels:        labels,
			X:             k.X,
			Y:             k.Y,
			Width:         k.Width,
			Height:        k.Height,
			Width2:        k.Width,
			Height2:       k.Height,
			RotationX:     k.RotationX,
			RotationY:     k.RotationY,
			RotationAngle: k.RotationAngle,
		})
	}

	doc := serialLayout{
		Meta: serialMeta{Name: l.Name, Author: l.Author, Rows: l.Grid.Rows, Cols: l.Grid.Cols},
		Keys: &keys,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode layout: %w", err)
	}
	return nil
}
