// Package project assembles the generated KiCad project in memory and
// commits it to disk as a whole.
package project

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/netlist"
	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/pcb"
	"github.com/OpenTraceLab/kbmatrix/pkg/kle"
	"github.com/OpenTraceLab/kbmatrix/pkg/layout"
	"github.com/OpenTraceLab/kbmatrix/pkg/placer"
	"github.com/OpenTraceLab/kbmatrix/pkg/router"
)

// DefaultName is used when the layout has no usable name.
const DefaultName = "keyboard"

// EdgeCutsMargin is the outline distance from the outermost switch centres.
const EdgeCutsMargin = 12.0

// ErrOutputExists is returned by Commit when the target directory exists
// and overwriting was not requested.
var ErrOutputExists = errors.New("output directory already exists")

// File is one generated file, addressed by a slash separated path relative
// to the output directory.
type File struct {
	Path string
	Data []byte
}

// Files is the ordered content of a project.
type Files []File

// Get returns the content stored at p.
func (fs Files) Get(p string) ([]byte, bool) {
	for _, f := range fs {
		if f.Path == p {
			return f.Data, true
		}
	}
	return nil, false
}

// Paths lists the file paths in generation order.
func (fs Files) Paths() []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Path
	}
	return out
}

// Input is everything Build needs to render a project.
type Input struct {
	Name       string
	Layout     *layout.Layout
	Pairs      []placer.Pair
	Routing    *router.Result
	Mode       router.Mode
	TrackWidth float64
	Clearance  float64
	Duplicates [][]int
}

// Build renders every project file. Nothing is written to disk.
func Build(in Input, logger *zap.Logger) (Files, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if in.Layout == nil || in.Routing == nil {
		return nil, fmt.Errorf("incomplete project input")
	}

	if in.TrackWidth <= 0 {
		in.TrackWidth = router.DefaultTrackWidth
	}
	if in.Clearance <= 0 {
		in.Clearance = router.DefaultClearance
	}

	name := in.Name
	if name == "" {
		name = in.Layout.Name
	}
	name = ProjectName(name)
	dir := name + "/"

	var files Files
	add := func(p string, render func(*bytes.Buffer) error) error {
		var buf bytes.Buffer
		if err := render(&buf); err != nil {
			return fmt.Errorf("rendering %s: %w", p, err)
		}
		files = append(files, File{Path: p, Data: buf.Bytes()})
		logger.Debug("rendered file", zap.String("path", p), zap.Int("bytes", buf.Len()))
		return nil
	}

	steps := []struct {
		path   string
		render func(*bytes.Buffer) error
	}{
		{dir + name + ".net", func(b *bytes.Buffer) error {
			return netlist.Encode(b, BuildNetlist(name+".json", in.Pairs, in.Routing))
		}},
		{dir + name + ".kicad_pcb", func(b *bytes.Buffer) error {
			return pcb.Encode(b, BuildBoard(in.Pairs, in.Routing))
		}},
		{dir + name + ".kicad_pro", func(b *bytes.Buffer) error {
			return writeProjectFile(b, name, in.TrackWidth, in.Clearance)
		}},
		{dir + name + ".json", func(b *bytes.Buffer) error {
			return kle.Encode(b, in.Layout)
		}},
		{dir + "fp-lib-table", func(b *bytes.Buffer) error {
			return writeFootprintTable(b, in.Pairs)
		}},
		{dir + "sym-lib-table", writeSymbolTable},
		{"logs/routing.yaml", func(b *bytes.Buffer) error {
			return writeReport(b, NewReport(name, in))
		}},
	}
	for _, s := range steps {
		if err := add(s.path, s.render); err != nil {
			return nil, err
		}
	}

	logger.Info("project rendered", zap.String("name", name), zap.Int("files", len(files)))
	return files, nil
}

var illegalChars = []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}

// SanitizeFilename strips characters that are illegal in file names and
// any directory traversal sequences.
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	for _, c := range illegalChars {
		name = strings.ReplaceAll(name, c, "")
	}
	name = strings.ReplaceAll(name, "..", "")
	return strings.TrimSpace(name)
}

// ProjectName sanitizes name, falling back to DefaultName.
func ProjectName(name string) string {
	name = SanitizeFilename(name)
	if name == "" || name == "." {
		return DefaultName
	}
	return name
}

func validPath(p string) error {
	if p == "" || path.IsAbs(p) || path.Clean(p) != p || strings.HasPrefix(p, "../") || p == ".." {
		return fmt.Errorf("invalid project file path %q", p)
	}
	return nil
}
