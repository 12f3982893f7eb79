// Package matrix assigns an electrical (row, column) position to every key.
package matrix

import (
	"fmt"
	"sort"

	"github.com/OpenTraceLab/kbmatrix/pkg/layout"
)

// Position is a key's address in the scan matrix.
type Position struct {
	Row int
	Col int
}

func (p Position) String() string {
	return fmt.Sprintf("%d,%d", p.Row, p.Col)
}

// Mode selects how unannotated keys are handled.
type Mode int

const (
	// ModeAutomatic keeps annotations and infers the rest from geometry.
	ModeAutomatic Mode = iota
	// ModeManual requires every key to be annotated.
	ModeManual
)

func (m Mode) String() string {
	switch m {
	case ModeAutomatic:
		return "automatic"
	case ModeManual:
		return "manual"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts a configuration value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "automatic", "auto":
		return ModeAutomatic, nil
	case "manual":
		return ModeManual, nil
	}
	return 0, fmt.Errorf("%w: unknown matrix mode %q", layout.ErrInvalidSettings, s)
}

// Options controls assignment.
type Options struct {
	Mode Mode
}

// Assignment binds a key to its evaluated annotation and final position.
type Assignment struct {
	Key        layout.Key
	Annotation Annotation
	Position   Position
}

// Result is the outcome of Assign.
type Result struct {
	Assignments []Assignment
	// Duplicates lists groups of key indices sharing one position.
	Duplicates [][]int
}

// Rows returns the number of rows spanned by the assignment.
func (r *Result) Rows() int {
	n := 0
	for _, a := range r.Assignments {
		n = max(n, a.Position.Row+1)
	}
	return n
}

// Cols returns the number of columns spanned by the assignment.
func (r *Result) Cols() int {
	n := 0
	for _, a := range r.Assignments {
		n = max(n, a.Position.Col+1)
	}
	return n
}

// Assign computes a position for every key of l. Nothing is returned on
// error.
func Assign(l *layout.Layout, opts Options) (*Result, error) {
	if err := layout.Validate(l, len(l.Keys)); err != nil {
		return nil, err
	}

	res := &Result{Assignments: make([]Assignment, 0, len(l.Keys))}
	for _, k := range l.Keys {
		ann := AnnotationOf(k)
		var pos Position
		switch a := ann.(type) {
		case Manual:
			pos = Position{Row: a.Row, Col: a.Col}
		case Automatic:
			if opts.Mode == ModeManual {
				return nil, fmt.Errorf("%w: %s has no row,col annotation", layout.ErrInvalidLayout, k)
			}
			pos = infer(k)
		}

		if pos.Row < 0 || pos.Col < 0 {
			return nil, fmt.Errorf("%w: %s lies at negative matrix position %s", layout.ErrInvalidLayout, k, pos)
		}
		if l.Grid.Declared() && !l.Grid.Contains(pos.Row, pos.Col) {
			return nil, fmt.Errorf("%w: %s at %s falls outside the declared %dx%d matrix",
				layout.ErrInvalidLayout, k, pos, l.Grid.Rows, l.Grid.Cols)
		}

		res.Assignments = append(res.Assignments, Assignment{Key: k, Annotation: ann, Position: pos})
	}

	res.Duplicates = duplicates(res.Assignments)
	return res, nil
}

// infer derives a position from key geometry. The raw-data row wins for
// unrotated keys, otherwise the rotated centre is truncated toward zero, so a
// centre just above the origin still lands in row 0.
func infer(k layout.Key) Position {
	cx, cy := k.Center()
	row := int(cy)
	if k.DeclaredRow >= 0 && !k.Rotated() {
		row = k.DeclaredRow
	}
	return Position{Row: row, Col: int(cx)}
}

func duplicates(as []Assignment) [][]int {
	byPos := make(map[Position][]int)
	for _, a := range as {
		byPos[a.Position] = append(byPos[a.Position], a.Key.Index)
	}

	var dups [][]int
	for _, idx := range byPos {
		if len(idx) > 1 {
			dups = append(dups, idx)
		}
	}
	sort.Slice(dups, func(i, j int) bool { return dups[i][0] < dups[j][0] })
	return dups
}

// Annotate returns a copy of l whose first legends carry the assigned
// positions, turning an automatic layout into a manual one.
func Annotate(l *layout.Layout, opts Options) (*layout.Layout, error) {
	res, err := Assign(l, opts)
	if err != nil {
		return nil, err
	}

	out := l.Clone()
	for i, a := range res.Assignments {
		out.Keys[i] = out.Keys[i].WithLabel(0, a.Position.String())
	}
	return out, nil
}
