package generator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/netlist"
	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/pcb"
	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/sexp"
	"github.com/OpenTraceLab/kbmatrix/pkg/kle"
	"github.com/OpenTraceLab/kbmatrix/pkg/layout"
	"github.com/OpenTraceLab/kbmatrix/pkg/matrix"
	"github.com/OpenTraceLab/kbmatrix/pkg/placer"
	"github.com/OpenTraceLab/kbmatrix/pkg/router"
)

// rawGrid returns keyboard-layout-editor raw data for a rows x cols block.
func rawGrid(name string, rows, cols int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "{name:%q},\n", name)
	for r := 0; r < rows; r++ {
		if r > 0 {
			sb.WriteString(",\n")
		}
		sb.WriteString("[")
		for c := 0; c < cols; c++ {
			if c > 0 {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, "%q", fmt.Sprintf("K%d%d", r, c))
		}
		sb.WriteString("]")
	}
	return sb.String()
}

func parse(t *testing.T, raw string) *layout.Layout {
	t.Helper()
	l, err := kle.ParseString(raw)
	require.NoError(t, err)
	return l
}

func TestGenerateDeterministic(t *testing.T) {
	l := parse(t, rawGrid("macro", 3, 4))
	s := DefaultSettings()
	s.Routing.Mode = router.ModeFull

	first, err := New(s, nil).Generate(l)
	require.NoError(t, err)
	second, err := New(s, nil).Generate(l)
	require.NoError(t, err)

	if diff := cmp.Diff(first.Files, second.Files); diff != "" {
		t.Errorf("regenerated files differ (-first +second):\n%s", diff)
	}
	assert.Equal(t, "macro", first.Name)
	assert.Len(t, first.Files, 7)
}

func TestGenerateDoesNotModifyInput(t *testing.T) {
	l := parse(t, rawGrid("macro", 2, 2))
	before := l.Clone()
	s := DefaultSettings()
	s.Grid = layout.Grid{Rows: 4, Cols: 4}

	res, err := New(s, nil).Generate(l)
	require.NoError(t, err)
	assert.Equal(t, before, l)
	assert.Equal(t, layout.Grid{Rows: 4, Cols: 4}, res.Layout.Grid)
}

func TestGenerateRoundTrip(t *testing.T) {
	l := parse(t, rawGrid("rt", 3, 3))
	s := DefaultSettings()
	s.Routing.Mode = router.ModeFull

	res, err := New(s, nil).Generate(l)
	require.NoError(t, err)
	require.Len(t, res.Pairs, 9)

	netData, ok := res.Files.Get("rt/rt.net")
	require.True(t, ok)
	nl, err := netlist.Decode(bytes.NewReader(netData))
	require.NoError(t, err)

	pcbData, ok := res.Files.Get("rt/rt.kicad_pcb")
	require.True(t, ok)
	board, err := pcb.Parse(bytes.NewReader(pcbData))
	require.NoError(t, err)

	for _, a := range res.Matrix.Assignments {
		sw := fmt.Sprintf("SW%d", a.Key.Index+1)
		d := fmt.Sprintf("D%d", a.Key.Index+1)
		wantCol := string(router.ColNet(a.Position.Col))
		wantRow := string(router.RowNet(a.Position.Row))

		net, ok := nl.NetOf(sw, "1")
		require.True(t, ok, sw)
		assert.Equal(t, wantCol, net.Name, sw)
		net, ok = nl.NetOf(d, "1")
		require.True(t, ok, d)
		assert.Equal(t, wantRow, net.Name, d)

		fp := board.GetFootprint(sw)
		require.NotNil(t, fp, sw)
		pad := fp.GetPad("1")
		require.NotNil(t, pad)
		require.NotNil(t, pad.Net)
		assert.Equal(t, wantCol, pad.Net.Name, sw)

		fp = board.GetFootprint(d)
		require.NotNil(t, fp, d)
		pad = fp.GetPad("1")
		require.NotNil(t, pad)
		require.NotNil(t, pad.Net)
		assert.Equal(t, wantRow, pad.Net.Name, d)
	}

	assert.Equal(t, []string{
		"ROW0", "ROW1", "ROW2", "COL0", "COL1", "COL2",
	}, board.GetAllNetNames()[:6])
	assert.Empty(t, res.Routing.Unconnected())
	assert.Empty(t, board.Texts)
}

func TestGenerateManualAnnotation(t *testing.T) {
	// Physically one row, electrically a 2x2 matrix.
	l := parse(t, `["0,0","0,1","1,0","1,1"]`)

	res, err := New(DefaultSettings(), nil).Generate(l)
	require.NoError(t, err)

	want := []matrix.Position{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 1, Col: 0}, {Row: 1, Col: 1}}
	for i, a := range res.Matrix.Assignments {
		assert.Equal(t, want[i], a.Position)
	}
	assert.Equal(t, 2, res.Matrix.Rows())
}

func TestGenerateDiodeYOffset(t *testing.T) {
	l := parse(t, rawGrid("offset", 1, 3))
	s := DefaultSettings()
	offset := sexp.Position{X: 5.08, Y: 3.03 + 25}
	s.Placement.Overrides = map[string]placer.Override{"D2": {Offset: &offset}}

	res, err := New(s, nil).Generate(l)
	require.NoError(t, err)

	unconnected := res.Routing.Unconnected()
	require.Len(t, unconnected, 1)
	assert.Equal(t, router.LocalNet("D2"), unconnected[0].Net)
	assert.Empty(t, unconnected[0].Segments)

	pcbData, _ := res.Files.Get("offset/offset.kicad_pcb")
	board, err := pcb.Parse(bytes.NewReader(pcbData))
	require.NoError(t, err)
	assert.Empty(t, board.GetNetTracks("Net-(D2-Pad2)"))
	assert.Len(t, board.GetNetTracks("Net-(D1-Pad2)"), 2)
	require.Len(t, board.Texts, 1)
	assert.Contains(t, board.Texts[0].Text, "unconnected Net-(D2-Pad2)")
}

func TestGenerateRoutableOffsetFollowsKeyPitch(t *testing.T) {
	l := parse(t, rawGrid("pitch", 1, 3))
	s := DefaultSettings()
	s.Placement.KeyDistanceY = 15
	// Within the default 19.05 mm pitch but beyond the configured 15 mm.
	offset := sexp.Position{X: 5.08, Y: 3.03 + 14}
	s.Placement.Overrides = map[string]placer.Override{"D2": {Offset: &offset}}

	res, err := New(s, nil).Generate(l)
	require.NoError(t, err)

	unconnected := res.Routing.Unconnected()
	require.Len(t, unconnected, 1)
	assert.Equal(t, router.LocalNet("D2"), unconnected[0].Net)
	assert.Contains(t, unconnected[0].Reason, "not aligned")
}

func TestGenerateInvalidSettings(t *testing.T) {
	l := parse(t, rawGrid("x", 1, 1))
	s := DefaultSettings()
	s.SwitchFootprint = "no-colon"

	_, err := New(s, nil).Generate(l)
	require.Error(t, err)
	assert.ErrorIs(t, err, layout.ErrInvalidSettings)
	assert.True(t, layout.IsValidationError(err))
}

func TestGenerateUnknownFootprintWarns(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	l := parse(t, rawGrid("x", 1, 1))
	s := DefaultSettings()
	s.DiodeFootprint = "MyLib:D_Custom"

	res, err := New(s, zap.New(core)).Generate(l)
	require.NoError(t, err)
	assert.Equal(t, "MyLib:D_Custom", res.Pairs[0].Diode.Def.ID.String())
	assert.Equal(t, 1, logs.FilterMessage("unknown footprint, using default pad geometry").Len())

	table, _ := res.Files.Get("x/fp-lib-table")
	assert.Contains(t, string(table), "MyLib.pretty")
}

func TestRun(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	s := DefaultSettings()
	s.Zip = true

	res, err := New(s, nil).Run(context.Background(), strings.NewReader(rawGrid("board", 2, 2)), out)
	require.NoError(t, err)
	assert.Equal(t, out, res.Dir)
	assert.Equal(t, out+".zip", res.Archive)

	for _, p := range res.Files.Paths() {
		data, err := os.ReadFile(filepath.Join(out, filepath.FromSlash(p)))
		require.NoError(t, err, p)
		want, _ := res.Files.Get(p)
		assert.Equal(t, want, data, p)
	}
	assert.FileExists(t, out+".zip")

	_, err = New(s, nil).Run(context.Background(), strings.NewReader(rawGrid("board", 2, 2)), out)
	assert.Error(t, err)
}

func TestRunArchiveFailureWritesNothing(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.MkdirAll(filepath.Join(out+".zip", "busy"), 0o755))
	s := DefaultSettings()
	s.Zip = true

	_, err := New(s, nil).Run(context.Background(), strings.NewReader(rawGrid("board", 2, 2)), out)
	require.Error(t, err)
	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestRunInvalidLayoutWritesNothing(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		settings func(*Settings)
	}{
		{name: "unparseable", input: `["A",`},
		{name: "empty", input: `[]`},
		{
			name:     "one sided grid",
			input:    rawGrid("g", 2, 2),
			settings: func(s *Settings) { s.Grid = layout.Grid{Rows: 2} },
		},
		{
			name:     "key outside declared grid",
			input:    rawGrid("g", 2, 3),
			settings: func(s *Settings) { s.Grid = layout.Grid{Rows: 2, Cols: 2} },
		},
		{
			name:  "layout declares a smaller grid",
			input: "{name:\"g\",rows:1,cols:2},\n[\"A\",\"B\"],\n[\"C\",\"D\"]",
		},
		{
			name:  "layout declares a one sided grid",
			input: "{rows:2},\n[\"A\",\"B\"],\n[\"C\",\"D\"]",
		},
		{
			name:     "manual mode without annotations",
			input:    rawGrid("g", 2, 2),
			settings: func(s *Settings) { s.Matrix.Mode = matrix.ModeManual },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			out := filepath.Join(root, "out")
			s := DefaultSettings()
			if tt.settings != nil {
				tt.settings(&s)
			}

			_, err := New(s, nil).Run(context.Background(), strings.NewReader(tt.input), out)
			require.Error(t, err)
			assert.ErrorIs(t, err, layout.ErrInvalidLayout)

			entries, err := os.ReadDir(root)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestRunCancelled(t *testing.T) {
	root := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(DefaultSettings(), nil).Run(ctx, strings.NewReader(rawGrid("c", 1, 2)), filepath.Join(root, "out"))
	assert.ErrorIs(t, err, context.Canceled)

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
