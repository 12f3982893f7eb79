// Package generator runs the single-pass pipeline that turns a keyboard
// layout into a KiCad project: ingest, assign, place, route and render.
package generator

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/kbmatrix/pkg/footprint"
	"github.com/OpenTraceLab/kbmatrix/pkg/kle"
	"github.com/OpenTraceLab/kbmatrix/pkg/layout"
	"github.com/OpenTraceLab/kbmatrix/pkg/matrix"
	"github.com/OpenTraceLab/kbmatrix/pkg/placer"
	"github.com/OpenTraceLab/kbmatrix/pkg/project"
	"github.com/OpenTraceLab/kbmatrix/pkg/router"
)

// Settings controls a generation run.
type Settings struct {
	// Name overrides the layout name as project name.
	Name string

	Matrix  matrix.Options
	MaxKeys int
	// Grid, when declared, replaces the layout's own matrix size.
	Grid layout.Grid

	SwitchFootprint string
	DiodeFootprint  string
	Placement       placer.Settings

	Routing router.Options

	// Force replaces an existing output directory, Zip also writes <dir>.zip.
	Force bool
	Zip   bool
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Matrix:          matrix.Options{Mode: matrix.ModeAutomatic},
		MaxKeys:         layout.DefaultMaxKeys,
		SwitchFootprint: footprint.DefaultSwitch,
		DiodeFootprint:  footprint.DefaultDiode,
		Placement:       placer.DefaultSettings(),
		Routing: router.Options{
			Mode:       router.ModeSwitchDiode,
			TrackWidth: router.DefaultTrackWidth,
			Clearance:  router.DefaultClearance,
		},
	}
}

// Result is the outcome of one run.
type Result struct {
	Name    string
	Layout  *layout.Layout
	Matrix  *matrix.Result
	Pairs   []placer.Pair
	Routing *router.Result
	Files   project.Files

	// Dir and Archive are set by Run once the files are on disk.
	Dir     string
	Archive string
}

// Generator runs the pipeline. It keeps no state between runs.
type Generator struct {
	settings Settings
	logger   *zap.Logger
}

// New creates a generator. A nil logger discards all output.
func New(settings Settings, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{settings: settings, logger: logger}
}

// Generate renders the project for l in memory.
func (g *Generator) Generate(l *layout.Layout) (*Result, error) {
	return g.generate(context.Background(), l)
}

// Run parses a layout from in, generates the project and commits it to
// outDir, plus outDir.zip when Zip is set. Either every file is written or
// none is.
func (g *Generator) Run(ctx context.Context, in io.Reader, outDir string) (*Result, error) {
	l, err := kle.Parse(in)
	if err != nil {
		return nil, err
	}
	g.logger.Info("layout parsed", zap.String("name", l.Name), zap.Int("keys", len(l.Keys)))

	res, err := g.generate(ctx, l)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if g.settings.Zip {
		archive, err := project.CommitArchive(res.Files, outDir, g.settings.Force)
		if err != nil {
			return nil, err
		}
		res.Archive = archive
	} else if err := project.Commit(res.Files, outDir, g.settings.Force); err != nil {
		return nil, err
	}
	res.Dir = outDir
	g.logger.Info("project written",
		zap.String("dir", outDir),
		zap.Int("files", len(res.Files)),
		zap.String("archive", res.Archive),
	)
	return res, nil
}

func (g *Generator) generate(ctx context.Context, l *layout.Layout) (*Result, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: no layout", layout.ErrInvalidLayout)
	}
	s := g.settings

	l = l.Clone()
	if s.Grid.Declared() {
		l.Grid = s.Grid
	}
	maxKeys := s.MaxKeys
	if maxKeys <= 0 {
		maxKeys = layout.DefaultMaxKeys
	}
	if err := layout.Validate(l, maxKeys); err != nil {
		return nil, err
	}

	placement, err := g.footprints(s)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	assigned, err := matrix.Assign(l, s.Matrix)
	if err != nil {
		return nil, err
	}
	for _, group := range assigned.Duplicates {
		g.logger.Warn("keys share a matrix position",
			zap.Ints("keys", group),
			zap.Stringer("position", assigned.Assignments[group[0]].Position),
		)
	}
	g.logger.Info("matrix assigned",
		zap.Stringer("mode", s.Matrix.Mode),
		zap.Int("rows", assigned.Rows()),
		zap.Int("cols", assigned.Cols()),
	)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pairs := placer.Place(assigned.Assignments, placement)

	opts := s.Routing
	opts.Logger = g.logger.Named("router")
	if opts.MaxOffset <= 0 {
		opts.MaxOffset = placement.KeyDistanceY
	}
	routed := router.Route(pairs, router.BuildNets(pairs), opts)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := project.ProjectName(firstNonEmpty(s.Name, l.Name))
	files, err := project.Build(project.Input{
		Name:       name,
		Layout:     l,
		Pairs:      pairs,
		Routing:    routed,
		Mode:       opts.Mode,
		TrackWidth: opts.TrackWidth,
		Clearance:  opts.Clearance,
		Duplicates: assigned.Duplicates,
	}, g.logger.Named("project"))
	if err != nil {
		return nil, err
	}

	return &Result{
		Name:    name,
		Layout:  l,
		Matrix:  assigned,
		Pairs:   pairs,
		Routing: routed,
		Files:   files,
	}, nil
}

// footprints resolves the configured footprint ids into pad geometry.
func (g *Generator) footprints(s Settings) (placer.Settings, error) {
	p := s.Placement
	resolve := func(raw, fallback string, kind footprint.Kind) (*footprint.Def, error) {
		if raw == "" {
			raw = fallback
		}
		id, err := footprint.ParseID(raw)
		if err != nil {
			return nil, errors.Join(layout.ErrInvalidSettings, err)
		}
		def, known := footprint.Lookup(id, kind)
		if !known {
			g.logger.Warn("unknown footprint, using default pad geometry",
				zap.Stringer("kind", kind),
				zap.String("footprint", raw),
			)
		}
		return def, nil
	}

	var err error
	if p.Switch, err = resolve(s.SwitchFootprint, footprint.DefaultSwitch, footprint.KindSwitch); err != nil {
		return p, err
	}
	if p.Diode, err = resolve(s.DiodeFootprint, footprint.DefaultDiode, footprint.KindDiode); err != nil {
		return p, err
	}
	return p, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
