// Package layout holds the keyboard layout model shared by the ingestor,
// the matrix assigner and the placer.
//
// Coordinates are in key units (1u = one standard key pitch) with Y growing
// downwards. Rotation angles are in degrees, clockwise positive, about the
// key's rotation origin.
package layout

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// DefaultMaxKeys is the largest layout accepted unless configured otherwise.
const DefaultMaxKeys = 150

// Key is a single physical key. Keys are created by the ingestor and not
// modified afterwards.
type Key struct {
	Index         int      // Position in layout order
	Labels        []string // Legends; label 0 may carry a "row,col" annotation
	X, Y          float64  // Top-left corner in key units
	Width, Height float64  // Size in key units
	RotationAngle float64  // Degrees, clockwise positive
	RotationX     float64  // Rotation origin X in key units
	RotationY     float64  // Rotation origin Y in key units
	DeclaredRow   int      // Row of the source data the key came from, -1 if unknown
}

// Label returns legend i or "" when absent.
func (k Key) Label(i int) string {
	if i < 0 || i >= len(k.Labels) {
		return ""
	}
	return k.Labels[i]
}

// WithLabel returns a copy of k whose legend i is set to v.
func (k Key) WithLabel(i int, v string) Key {
	n := len(k.Labels)
	if i >= n {
		n = i + 1
	}
	labels := make([]string, n)
	copy(labels, k.Labels)
	labels[i] = v
	k.Labels = labels
	return k
}

// Rotated reports whether the key carries a non-zero rotation.
func (k Key) Rotated() bool {
	return math.Mod(k.RotationAngle, 360) != 0
}

// Center returns the key centre in key units after applying rotation.
func (k Key) Center() (x, y float64) {
	c := r2.Vec{X: k.X + k.Width/2, Y: k.Y + k.Height/2}
	if k.Rotated() {
		origin := r2.Vec{X: k.RotationX, Y: k.RotationY}
		c = r2.Rotate(c, k.RotationAngle*math.Pi/180, origin)
	}
	return c.X, c.Y
}

func (k Key) String() string {
	x, y := k.Center()
	return fmt.Sprintf("key #%d at (%.2f, %.2f)", k.Index, x, y)
}

// Grid is an optional declared electrical matrix size.
type Grid struct {
	Rows int
	Cols int
}

// Declared reports whether any dimension was set.
func (g Grid) Declared() bool {
	return g.Rows != 0 || g.Cols != 0
}

// Contains reports whether (row, col) lies inside the grid.
func (g Grid) Contains(row, col int) bool {
	return row >= 0 && row < g.Rows && col >= 0 && col < g.Cols
}

// Layout is an ingested keyboard layout.
type Layout struct {
	Name   string
	Author string
	Keys   []Key
	Grid   Grid
}

// Clone returns a deep copy of the layout.
func (l *Layout) Clone() *Layout {
	c := *l
	c.Keys = make([]Key, len(l.Keys))
	for i, k := range l.Keys {
		k.Labels = append([]string(nil), k.Labels...)
		c.Keys[i] = k
	}
	return &c
}

// Validate checks the structural soundness of a layout. maxKeys <= 0 means
// DefaultMaxKeys.
func Validate(l *Layout, maxKeys int) error {
	if l == nil || len(l.Keys) == 0 {
		return fmt.Errorf("%w: layout has no keys", ErrInvalidLayout)
	}
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}
	if len(l.Keys) > maxKeys {
		return fmt.Errorf("%w: layout exceeds %d key size limitation", ErrInvalidLayout, maxKeys)
	}

	g := l.Grid
	if g.Rows < 0 || g.Cols < 0 {
		return fmt.Errorf("%w: declared matrix %dx%d has a negative dimension", ErrInvalidLayout, g.Rows, g.Cols)
	}
	if g.Declared() && (g.Rows == 0 || g.Cols == 0) {
		return fmt.Errorf("%w: declared matrix %dx%d is missing rows or columns", ErrInvalidLayout, g.Rows, g.Cols)
	}

	for _, k := range l.Keys {
		for _, v := range []float64{k.X, k.Y, k.Width, k.Height, k.RotationAngle, k.RotationX, k.RotationY} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: %s has a non-finite coordinate", ErrInvalidLayout, k)
			}
		}
		if k.Width <= 0 || k.Height <= 0 {
			return fmt.Errorf("%w: key #%d has non-positive size %gx%g", ErrInvalidLayout, k.Index, k.Width, k.Height)
		}
	}

	return nil
}
