// Package kle ingests keyboard-layout-editor layouts.
//
// Two shapes are accepted: the serialized JSON produced by kle-serial
// ({"meta": ..., "keys": [...]}) and the editor's raw data, either pasted
// without outer brackets or downloaded as a JSON array.
package kle

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"

	"github.com/OpenTraceLab/kbmatrix/pkg/layout"
)

var rawParser = participle.MustBuild[rawLayout](
	participle.Lexer(RawLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Parse reads a layout in either supported shape.
func Parse(r io.Reader) (*layout.Layout, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty layout", layout.ErrInvalidLayout)
	}

	if trimmed[0] == '{' {
		if l, ok, err := decodeSerialized(trimmed); ok {
			return l, err
		}
	}

	raw, err := rawParser.ParseBytes("", trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", layout.ErrInvalidLayout, err)
	}
	return fold(raw)
}

// ParseString parses a layout held in a string.
func ParseString(s string) (*layout.Layout, error) {
	return Parse(strings.NewReader(s))
}

// ParseFile parses a layout file.
func ParseFile(filename string) (*layout.Layout, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Parse(file)
}

// decodeSerialized reports ok=false when data is not a serialized layout so
// the caller can fall back to raw data that starts with a metadata object.
func decodeSerialized(data []byte) (*layout.Layout, bool, error) {
	var doc serialLayout
	if err := json.Unmarshal(data, &doc); err != nil || doc.Keys == nil {
		return nil, false, nil
	}

	l := &layout.Layout{
		Name:   doc.Meta.Name,
		Author: doc.Meta.Author,
		Grid:   layout.Grid{Rows: doc.Meta.Rows, Cols: doc.Meta.Cols},
	}
	for _, k := range *doc.Keys {
		if k.Decal || k.Ghost {
			continue
		}
		key := layout.Key{
			Index:         len(l.Keys),
			Labels:        trimLabels(k.Labels),
			X:             k.X,
			Y:             k.Y,
			Width:         k.Width,
			Height:        k.Height,
			RotationAngle: k.RotationAngle,
			RotationX:     k.RotationX,
			RotationY:     k.RotationY,
			DeclaredRow:   -1,
		}
		if key.Width == 0 {
			key.Width = 1
		}
		if key.Height == 0 {
			key.Height = 1
		}
		l.Keys = append(l.Keys, key)
	}
	return l, true, nil
}

// trimLabels drops trailing empty legends.
func trimLabels(labels []string) []string {
	n := len(labels)
	for n > 0 && labels[n-1] == "" {
		n--
	}
	return append([]string(nil), labels[:n]...)
}
