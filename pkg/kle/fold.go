package kle

import (
	"fmt"
	"math"
	"strings"

	"github.com/OpenTraceLab/kbmatrix/pkg/layout"
)

// labelMap maps a legend's position in the raw string to its label index for
// each of the eight alignment flags. -1 marks positions the alignment hides.
var labelMap = [8][12]int{
	{0, 6, 2, 8, 9, 11, 3, 5, 1, 4, 7, 10},
	{1, 7, -1, -1, 9, 11, 4, -1, -1, -1, -1, 10},
	{3, -1, 5, -1, 9, 11, -1, -1, 4, -1, -1, 10},
	{4, -1, -1, -1, 9, 11, -1, -1, -1, -1, -1, 10},
	{0, 6, 2, 8, 10, -1, 3, 5, 1, 4, 7, -1},
	{1, 7, -1, -1, 10, -1, 4, -1, -1, -1, -1, -1},
	{3, -1, 5, -1, 10, -1, -1, -1, 4, -1, -1, -1},
	{4, -1, -1, -1, 10, -1, -1, -1, -1, -1, -1, -1},
}

const defaultAlign = 4

// cursor is the running key state of the raw-data format.
type cursor struct {
	x, y          float64
	width, height float64
	rotation      float64
	rx, ry        float64
	clusterX      float64
	clusterY      float64
	align         int
	decal         bool
	ghost         bool
}

func newCursor() *cursor {
	return &cursor{width: 1, height: 1, align: defaultAlign}
}

// fold runs the raw-data state machine over the parsed rows.
func fold(raw *rawLayout) (*layout.Layout, error) {
	items, err := unwrap(raw.Items)
	if err != nil {
		return nil, err
	}

	l := &layout.Layout{}
	cur := newCursor()
	row := 0

	for i, item := range items {
		if item.Meta != nil {
			if i != 0 {
				return nil, fmt.Errorf("%w: metadata object must come first", layout.ErrInvalidLayout)
			}
			if err := applyMeta(l, item.Meta); err != nil {
				return nil, err
			}
			continue
		}

		for k, entry := range item.Row.Entries {
			switch {
			case entry.Legend != nil:
				if !cur.decal && !cur.ghost {
					l.Keys = append(l.Keys, cur.key(len(l.Keys), row, string(*entry.Legend)))
				}
				cur.next()
			case entry.Props != nil:
				if err := cur.apply(entry.Props, k == 0); err != nil {
					return nil, fmt.Errorf("%w: row %d: %v", layout.ErrInvalidLayout, row, err)
				}
			default:
				return nil, fmt.Errorf("%w: %s: unexpected nested row", layout.ErrInvalidLayout, item.Row.Pos)
			}
		}

		cur.y++
		cur.x = cur.rx
		row++
	}

	return l, nil
}

// unwrap flattens a layout written as a single JSON array whose elements are
// the metadata object and the rows.
func unwrap(items []*rawItem) ([]*rawItem, error) {
	if len(items) != 1 || items[0].Row == nil {
		return items, nil
	}
	entries := items[0].Row.Entries
	nested := false
	for _, e := range entries {
		if e.Row != nil {
			nested = true
			break
		}
	}
	if !nested {
		return items, nil
	}

	out := make([]*rawItem, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.Row != nil:
			out = append(out, &rawItem{Row: e.Row})
		case e.Props != nil:
			out = append(out, &rawItem{Meta: e.Props})
		default:
			return nil, fmt.Errorf("%w: %s: legend outside of a row", layout.ErrInvalidLayout, items[0].Row.Pos)
		}
	}
	return out, nil
}

// applyMeta reads the layout name and author, and the optional "rows" and
// "cols" fields that declare the matrix size.
func applyMeta(l *layout.Layout, meta *rawObject) error {
	for _, f := range meta.Fields {
		switch f.Key {
		case "name":
			l.Name = f.Value.text()
		case "author":
			l.Author = f.Value.text()
		case "rows", "cols":
			n, ok := f.Value.number()
			if !ok || n != math.Trunc(n) {
				return fmt.Errorf("%w: metadata %q must be a whole number, got %q",
					layout.ErrInvalidLayout, f.Key, f.Value.text())
			}
			if f.Key == "rows" {
				l.Grid.Rows = int(n)
			} else {
				l.Grid.Cols = int(n)
			}
		}
	}
	return nil
}

func (c *cursor) key(index, row int, legend string) layout.Key {
	return layout.Key{
		Index:         index,
		Labels:        c.labels(legend),
		X:             c.x,
		Y:             c.y,
		Width:         c.width,
		Height:        c.height,
		RotationAngle: c.rotation,
		RotationX:     c.rx,
		RotationY:     c.ry,
		DeclaredRow:   row,
	}
}

// labels reorders the newline separated legends by the alignment flags.
func (c *cursor) labels(legend string) []string {
	parts := strings.Split(legend, "\n")
	align := c.align
	if align < 0 || align >= len(labelMap) {
		align = defaultAlign
	}

	labels := make([]string, 12)
	for i, p := range parts {
		if i >= 12 {
			break
		}
		if idx := labelMap[align][i]; idx >= 0 && p != "" {
			labels[idx] = p
		}
	}
	return trimLabels(labels)
}

// next advances past the key just emitted and resets per-key properties.
func (c *cursor) next() {
	c.x += c.width
	c.width, c.height = 1, 1
	c.decal = false
}

func (c *cursor) apply(obj *rawObject, first bool) error {
	for _, f := range obj.Fields {
		switch f.Key {
		case "r", "rx", "ry":
			if !first {
				return fmt.Errorf("rotation can only be specified on the first key in a row")
			}
		}
	}

	var moveToCluster bool
	for _, f := range obj.Fields {
		v, isNum := f.Value.number()
		switch f.Key {
		case "r":
			c.rotation = v
		case "rx":
			c.rx, c.clusterX = v, v
			moveToCluster = true
		case "ry":
			c.ry, c.clusterY = v, v
			moveToCluster = true
		}
		if (f.Key == "r" || f.Key == "rx" || f.Key == "ry") && !isNum {
			return fmt.Errorf("property %q is not a number", f.Key)
		}
	}
	if moveToCluster {
		c.x, c.y = c.clusterX, c.clusterY
	}

	for _, f := range obj.Fields {
		v, isNum := f.Value.number()
		switch f.Key {
		case "x", "y", "w", "h", "a":
			if !isNum {
				return fmt.Errorf("property %q is not a number", f.Key)
			}
		}
		switch f.Key {
		case "a":
			c.align = int(v)
		case "x":
			c.x += v
		case "y":
			c.y += v
		case "w":
			c.width = v
		case "h":
			c.height = v
		case "d":
			c.decal = f.Value.boolean()
		case "g":
			c.ghost = f.Value.boolean()
		}
		// x2 y2 w2 h2 n l and the cosmetic properties only shape the keycap.
	}
	return nil
}
