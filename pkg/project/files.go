package project

import (
	"bytes"
	"encoding/json"
	"sort"

	ks "github.com/OpenTraceLab/kbmatrix/pkg/kicad/sexp/kicadsexp"
	"github.com/OpenTraceLab/kbmatrix/pkg/placer"
)

// LibTableVersion is the lib table format written by KiCad 7.
const LibTableVersion = 7

// FootprintLibDir is where the project expects footprint libraries.
const FootprintLibDir = "${KIPRJMOD}/libs/keyswitch-kicad-library/footprints"

// writeFootprintTable lists every footprint library the board uses that is
// not one of KiCad's stock libraries.
func writeFootprintTable(b *bytes.Buffer, pairs []placer.Pair) error {
	seen := map[string]bool{}
	for _, p := range pairs {
		for _, part := range []placer.Part{p.Switch, p.Diode} {
			seen[part.Def.ID.Library] = true
		}
	}
	var libs []string
	for lib := range seen {
		if !stockLibraries[lib] {
			libs = append(libs, lib)
		}
	}
	sort.Strings(libs)

	table := ks.Node("fp_lib_table", ks.Node("version", ks.Int(LibTableVersion)))
	for _, lib := range libs {
		table.Append(libEntry(lib, FootprintLibDir+"/"+lib+".pretty"))
	}
	return ks.Write(b, table)
}

func writeSymbolTable(b *bytes.Buffer) error {
	return ks.Write(b, ks.Node("sym_lib_table", ks.Node("version", ks.Int(LibTableVersion))))
}

func libEntry(name, uri string) *ks.List {
	return ks.Node("lib",
		ks.Node("name", ks.Str(name)),
		ks.Node("type", ks.Str("KiCad")),
		ks.Node("uri", ks.Str(uri)),
		ks.Node("options", ks.Str("")),
		ks.Node("descr", ks.Str("")),
	)
}

// stockLibraries ship with KiCad and need no project table entry.
var stockLibraries = map[string]bool{
	"Diode_SMD": true,
	"Diode_THT": true,
}

type proFile struct {
	Board       proBoard       `json:"board"`
	Meta        proMeta        `json:"meta"`
	NetSettings proNetSettings `json:"net_settings"`
	Pcbnew      proPcbnew      `json:"pcbnew"`
}

type proBoard struct {
	DesignSettings proDesignSettings `json:"design_settings"`
}

type proDesignSettings struct {
	Rules proRules `json:"rules"`
}

type proRules struct {
	MinClearance  float64 `json:"min_clearance"`
	MinTrackWidth float64 `json:"min_track_width"`
}

type proMeta struct {
	Filename string `json:"filename"`
	Version  int    `json:"version"`
}

type proNetSettings struct {
	Classes []proNetClass `json:"classes"`
	Meta    proMeta       `json:"meta"`
}

type proNetClass struct {
	Name        string  `json:"name"`
	Clearance   float64 `json:"clearance"`
	TrackWidth  float64 `json:"track_width"`
	ViaDiameter float64 `json:"via_diameter"`
	ViaDrill    float64 `json:"via_drill"`
}

type proPcbnew struct {
	LastPaths map[string]string `json:"last_paths"`
}

func writeProjectFile(b *bytes.Buffer, name string, trackWidth, clearance float64) error {
	pro := proFile{
		Board: proBoard{DesignSettings: proDesignSettings{Rules: proRules{
			MinClearance:  clearance,
			MinTrackWidth: trackWidth,
		}}},
		Meta: proMeta{Filename: name + ".kicad_pro", Version: 1},
		NetSettings: proNetSettings{
			Classes: []proNetClass{{
				Name:        "Default",
				Clearance:   clearance,
				TrackWidth:  trackWidth,
				ViaDiameter: 0.8,
				ViaDrill:    0.4,
			}},
			Meta: proMeta{Version: 3},
		},
		Pcbnew: proPcbnew{LastPaths: map[string]string{"netlist": name + ".net"}},
	}
	enc := json.NewEncoder(b)
	enc.SetIndent("", "  ")
	return enc.Encode(pro)
}
