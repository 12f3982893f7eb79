// Package router labels the key matrix nets and routes the connections
// between switch and diode pads.
//
// The router is best-effort. Each connection gets one straight or L-shaped
// attempt, checked against pads and previously routed tracks. A connection
// that cannot be routed that way is reported as unconnected instead of
// producing a colliding track. Passing the external design rule check is
// not guaranteed.
package router

import (
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/OpenTraceLab/kbmatrix/pkg/footprint"
	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/sexp"
	"github.com/OpenTraceLab/kbmatrix/pkg/layout"
	"github.com/OpenTraceLab/kbmatrix/pkg/placer"
)

// Mode selects which connections are routed.
type Mode int

const (
	ModeDisabled Mode = iota
	ModeSwitchDiode
	ModeFull
)

// Mode names as used in settings files.
const (
	ModeNameDisabled    = "Disabled"
	ModeNameSwitchDiode = "Switch-Diode only"
	ModeNameFull        = "Full"
)

func (m Mode) String() string {
	switch m {
	case ModeDisabled:
		return ModeNameDisabled
	case ModeSwitchDiode:
		return ModeNameSwitchDiode
	case ModeFull:
		return ModeNameFull
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode converts a settings value to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case ModeNameDisabled, "disabled", "none":
		return ModeDisabled, nil
	case ModeNameSwitchDiode, "switch-diode":
		return ModeSwitchDiode, nil
	case ModeNameFull, "full":
		return ModeFull, nil
	}
	return ModeDisabled, fmt.Errorf("%w: unknown routing mode %q", layout.ErrInvalidSettings, s)
}

// Defaults in millimetres.
const (
	DefaultTrackWidth = 0.25
	DefaultClearance  = 0.2
)

// Options controls routing.
type Options struct {
	Mode       Mode
	TrackWidth float64
	Clearance  float64
	// MaxOffset is the largest cross-axis offset a connection may span,
	// normally one key pitch.
	MaxOffset float64
	Logger    *zap.Logger
}

// Status of a routed connection.
type Status int

const (
	Connected Status = iota
	Unconnected
)

func (s Status) String() string {
	if s == Unconnected {
		return "unconnected"
	}
	return "connected"
}

// Segment is a straight piece of copper track.
type Segment struct {
	Start sexp.Position
	End   sexp.Position
	Layer string
}

// Length returns the segment length in millimetres.
func (s Segment) Length() float64 {
	return s.Start.Dist(s.End)
}

// RoutedTrack is the outcome of one connection attempt. An unconnected
// track carries a reason and no segments.
type RoutedTrack struct {
	Net      NetLabel
	From     Node
	To       Node
	Segments []Segment
	Width    float64
	Status   Status
	Reason   string
}

// Result holds the labelled nets and the attempted connections in
// generation order.
type Result struct {
	Nets   []Net
	Tracks []RoutedTrack
}

// Unconnected returns the connections that could not be routed.
func (r *Result) Unconnected() []RoutedTrack {
	var out []RoutedTrack
	for _, t := range r.Tracks {
		if t.Status == Unconnected {
			out = append(out, t)
		}
	}
	return out
}

// NetOf returns the net a pad belongs to.
func (r *Result) NetOf(ref, pin string) (Net, bool) {
	want := Node{Ref: ref, Pin: pin}
	for _, n := range r.Nets {
		for _, node := range n.Nodes {
			if node == want {
				return n, true
			}
		}
	}
	return Net{}, false
}

// obstacle is a pad approximated by its circumscribing circle.
type obstacle struct {
	node   Node
	net    NetLabel
	pos    sexp.Position
	radius float64
	part   placer.Part
	pad    footprint.Pad
}

type router struct {
	opts      Options
	log       *zap.Logger
	nets      netIndex
	obstacles []obstacle
	tracks    []RoutedTrack
}

// Route labels pads with nets and, depending on the mode, routes the
// switch-diode connections and the row and column chains.
func Route(pairs []placer.Pair, nets []Net, opts Options) *Result {
	if opts.TrackWidth <= 0 {
		opts.TrackWidth = DefaultTrackWidth
	}
	if opts.Clearance <= 0 {
		opts.Clearance = DefaultClearance
	}
	if opts.MaxOffset <= 0 {
		opts.MaxOffset = placer.DefaultKeyPitch
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := &router{
		opts: opts,
		log:  log,
		nets: indexNets(nets),
	}
	r.collectObstacles(pairs)

	if opts.Mode >= ModeSwitchDiode {
		for _, p := range pairs {
			r.connectPair(p)
		}
	}
	if opts.Mode >= ModeFull && len(pairs) > 0 {
		r.routeRows(pairs)
		r.routeColumns(pairs, pairs[0].Diode.Side.Opposite().CopperLayer())
	}

	res := &Result{Nets: nets, Tracks: r.tracks}
	log.Info("routing finished",
		zap.Stringer("mode", opts.Mode),
		zap.Int("nets", len(nets)),
		zap.Int("tracks", len(r.tracks)),
		zap.Int("unconnected", len(res.Unconnected())),
	)
	return res
}

func (r *router) collectObstacles(pairs []placer.Pair) {
	for _, p := range pairs {
		for _, part := range []placer.Part{p.Switch, p.Diode} {
			for _, pad := range part.Def.Pads {
				node := Node{Ref: part.Ref, Pin: pad.Number}
				r.obstacles = append(r.obstacles, obstacle{
					node:   node,
					net:    r.nets[node],
					pos:    part.PadWorld(pad),
					radius: pad.Radius(),
					part:   part,
					pad:    pad,
				})
			}
		}
	}
}

type endpoint struct {
	part placer.Part
	pin  string
}

func (e endpoint) node() Node {
	return Node{Ref: e.part.Ref, Pin: e.pin}
}

// axis is the direction a connection is expected to run along. The offset
// across it must stay within one key pitch.
type axis int

const (
	axisX axis = iota // Horizontal runs, Y offset limited
	axisY             // Vertical runs, X offset limited
)

func (r *router) routeRows(pairs []placer.Pair) {
	rows := make(map[int][]placer.Pair)
	for _, p := range pairs {
		rows[p.Assignment.Position.Row] = append(rows[p.Assignment.Position.Row], p)
	}
	for _, row := range sortedPairKeys(rows) {
		chain := rows[row]
		sort.SliceStable(chain, func(i, j int) bool {
			a, _ := chain[i].Diode.PadPosition(pinDiodeCathode)
			b, _ := chain[j].Diode.PadPosition(pinDiodeCathode)
			return a.X < b.X
		})
		for i := 1; i < len(chain); i++ {
			r.connect(
				endpoint{chain[i-1].Diode, pinDiodeCathode},
				endpoint{chain[i].Diode, pinDiodeCathode},
				chain[i-1].Diode.Layer(), axisX,
			)
		}
	}
}

func (r *router) routeColumns(pairs []placer.Pair, layer string) {
	cols := make(map[int][]placer.Pair)
	for _, p := range pairs {
		cols[p.Assignment.Position.Col] = append(cols[p.Assignment.Position.Col], p)
	}
	for _, col := range sortedPairKeys(cols) {
		chain := cols[col]
		sort.SliceStable(chain, func(i, j int) bool {
			a, _ := chain[i].Switch.PadPosition(pinSwitchColumn)
			b, _ := chain[j].Switch.PadPosition(pinSwitchColumn)
			return a.Y < b.Y
		})
		for i := 1; i < len(chain); i++ {
			r.connect(
				endpoint{chain[i-1].Switch, pinSwitchColumn},
				endpoint{chain[i].Switch, pinSwitchColumn},
				layer, axisY,
			)
		}
	}
}

func sortedPairKeys(m map[int][]placer.Pair) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// connectPair routes a switch to its own diode. The diode must sit within
// MaxOffset of the switch across the key, measured between part origins in
// the switch's frame so that pad offsets inside the footprints do not count.
func (r *router) connectPair(p placer.Pair) {
	a := endpoint{p.Switch, pinSwitchDiode}
	b := endpoint{p.Diode, pinDiodeAnode}

	rel := p.Diode.Pos.Sub(p.Switch.Pos).Rotate(-p.Switch.Angle)
	if off := math.Abs(rel.Y); off > r.opts.MaxOffset+eps {
		r.record(a, b, nil, fmt.Sprintf("diode not aligned with its switch (offset %.2f mm)", off))
		return
	}
	r.connect(a, b, p.Diode.Layer(), axisX)
}

// connect makes one attempt at routing from a to b on layer and records the
// outcome.
func (r *router) connect(a, b endpoint, layer string, along axis) {
	segs, reason := r.findPath(a, b, layer, along, r.nets[a.node()])
	r.record(a, b, segs, reason)
}

func (r *router) record(a, b endpoint, segs []Segment, reason string) {
	track := RoutedTrack{
		Net:   r.nets[a.node()],
		From:  a.node(),
		To:    b.node(),
		Width: r.opts.TrackWidth,
	}
	if reason != "" {
		track.Status = Unconnected
		track.Reason = reason
		r.log.Warn("connection left unconnected",
			zap.String("net", string(track.Net)),
			zap.Stringer("from", track.From),
			zap.Stringer("to", track.To),
			zap.String("reason", reason),
		)
	} else {
		track.Segments = segs
	}
	r.tracks = append(r.tracks, track)
}

func (r *router) findPath(a, b endpoint, layer string, along axis, net NetLabel) ([]Segment, string) {
	if net == "" || r.nets[b.node()] != net {
		return nil, fmt.Sprintf("%s and %s do not share a net", a.node(), b.node())
	}

	padA, okA := a.part.Def.Pad(a.pin)
	padB, okB := b.part.Def.Pad(b.pin)
	if !okA || !okB {
		return nil, "footprint has no such pad"
	}
	if !a.part.OnCopper(padA, layer) || !b.part.OnCopper(padB, layer) {
		return nil, fmt.Sprintf("pads have no copper on %s", layer)
	}

	p, q := a.part.PadWorld(padA), b.part.PadWorld(padB)
	dx, dy := math.Abs(q.X-p.X), math.Abs(q.Y-p.Y)

	offset := dx
	if along == axisX {
		offset = dy
	}
	if offset > r.opts.MaxOffset+eps {
		return nil, fmt.Sprintf("pads not aligned on a routable axis (offset %.2f mm)", offset)
	}

	var candidates [][]sexp.Position
	if dx < eps || dy < eps {
		candidates = [][]sexp.Position{{p, q}}
	} else {
		candidates = [][]sexp.Position{
			{p, {X: p.X, Y: q.Y}, q},
			{p, {X: q.X, Y: p.Y}, q},
		}
	}

	var blocked string
	for _, pts := range candidates {
		segs := make([]Segment, 0, len(pts)-1)
		for i := 1; i < len(pts); i++ {
			segs = append(segs, Segment{Start: pts[i-1], End: pts[i], Layer: layer})
		}
		hit := r.collision(segs, net)
		if hit == "" {
			return segs, ""
		}
		if blocked == "" {
			blocked = hit
		}
	}
	return nil, "path obstructed by " + blocked
}

// collision returns a description of the first obstacle closer than the
// clearance to any segment, or "" when the path is free.
func (r *router) collision(segs []Segment, net NetLabel) string {
	half := r.opts.TrackWidth / 2
	for _, s := range segs {
		for _, o := range r.obstacles {
			if o.net == net && net != "" {
				continue
			}
			if !o.part.OnCopper(o.pad, s.Layer) {
				continue
			}
			if pointSegmentDist(o.pos, s.Start, s.End) < half+r.opts.Clearance+o.radius {
				if o.node.Pin == "" {
					return o.node.Ref + " hole"
				}
				return "pad " + o.node.String()
			}
		}
		for _, t := range r.tracks {
			if t.Net == net {
				continue
			}
			for _, other := range t.Segments {
				if other.Layer != s.Layer {
					continue
				}
				if segmentDist(s.Start, s.End, other.Start, other.End) < half+t.Width/2+r.opts.Clearance {
					return "track " + string(t.Net)
				}
			}
		}
	}
	return ""
}
