package router

import (
	"fmt"
	"sort"

	"github.com/OpenTraceLab/kbmatrix/pkg/placer"
)

// NetLabel is a KiCad net name.
type NetLabel string

// RowNet returns the label of matrix row n.
func RowNet(n int) NetLabel {
	return NetLabel(fmt.Sprintf("ROW%d", n))
}

// ColNet returns the label of matrix column n.
func ColNet(n int) NetLabel {
	return NetLabel(fmt.Sprintf("COL%d", n))
}

// LocalNet returns the name KiCad gives the unnamed net between a switch
// and its diode's anode.
func LocalNet(diodeRef string) NetLabel {
	return NetLabel(fmt.Sprintf("Net-(%s-Pad2)", diodeRef))
}

// Node is a footprint pad.
type Node struct {
	Ref string
	Pin string
}

func (n Node) String() string {
	return n.Ref + ":" + n.Pin
}

// Net is a numbered net and the pads it ties together.
type Net struct {
	Code  int
	Name  NetLabel
	Nodes []Node
}

// Pin numbers of the matrix footprints.
const (
	pinSwitchColumn = "1"
	pinSwitchDiode  = "2"
	pinDiodeCathode = "1"
	pinDiodeAnode   = "2"
)

// BuildNets labels every switch and diode pad. Codes start at 1 and follow
// rows ascending, then columns ascending, then the local nets in key order.
func BuildNets(pairs []placer.Pair) []Net {
	rows := make(map[int][]Node)
	cols := make(map[int][]Node)
	for _, p := range pairs {
		pos := p.Assignment.Position
		rows[pos.Row] = append(rows[pos.Row], Node{p.Diode.Ref, pinDiodeCathode})
		cols[pos.Col] = append(cols[pos.Col], Node{p.Switch.Ref, pinSwitchColumn})
	}

	nets := make([]Net, 0, len(rows)+len(cols)+len(pairs))
	for _, r := range sortedKeys(rows) {
		nets = append(nets, Net{Code: len(nets) + 1, Name: RowNet(r), Nodes: rows[r]})
	}
	for _, c := range sortedKeys(cols) {
		nets = append(nets, Net{Code: len(nets) + 1, Name: ColNet(c), Nodes: cols[c]})
	}
	for _, p := range pairs {
		nets = append(nets, Net{
			Code: len(nets) + 1,
			Name: LocalNet(p.Diode.Ref),
			Nodes: []Node{
				{p.Switch.Ref, pinSwitchDiode},
				{p.Diode.Ref, pinDiodeAnode},
			},
		})
	}
	return nets
}

func sortedKeys(m map[int][]Node) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// netIndex maps every pad to its net label.
type netIndex map[Node]NetLabel

func indexNets(nets []Net) netIndex {
	idx := make(netIndex)
	for _, n := range nets {
		for _, node := range n.Nodes {
			idx[node] = n.Name
		}
	}
	return idx
}
