package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/netlist"
	"github.com/OpenTraceLab/kbmatrix/pkg/kicad/pcb"
)

var netsCmd = &cobra.Command{
	Use:   "nets <file.kicad_pcb|file.net> [net_name]",
	Short: "Show net information of a board or netlist",
	Long: `Display information about nets in a PCB file or netlist.

Without net_name: Lists all nets with pad/track counts
With net_name: Shows detailed information for that specific net`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runNets,
}

func init() {
	rootCmd.AddCommand(netsCmd)
}

func runNets(cmd *cobra.Command, args []string) error {
	filename := args[0]
	out := cmd.OutOrStdout()

	if filepath.Ext(filename) == ".net" {
		nl, err := netlist.ParseFile(filename)
		if err != nil {
			return fmt.Errorf("error: %w", err)
		}
		if len(args) >= 2 {
			return showNetlistNet(out, nl, args[1])
		}
		listNetlistNets(out, nl)
		return nil
	}

	board, err := pcb.ParseFile(filename)
	if err != nil {
		return fmt.Errorf("error: %w", err)
	}
	if len(args) >= 2 {
		return showNetDetails(out, board, args[1])
	}
	listAllNets(out, board)
	return nil
}

func listAllNets(out io.Writer, board *pcb.Board) {
	netNames := board.GetAllNetNames()
	fmt.Fprintf(out, "Board: %d nets\n\n", len(netNames))
	fmt.Fprintf(out, "%-30s %6s %6s\n", "Net Name", "Pads", "Tracks")
	fmt.Fprintln(out, "──────────────────────────────────────────────")

	sort.Strings(netNames)
	for _, netName := range netNames {
		info := board.GetNetInfo(netName)
		if info != nil {
			fmt.Fprintf(out, "%-30s %6d %6d\n", netName, len(info.Pads), len(info.Tracks))
		}
	}

	if len(board.Texts) > 0 {
		fmt.Fprintf(out, "\nMarkers (%d):\n", len(board.Texts))
		for _, t := range board.Texts {
			fmt.Fprintf(out, "  %s\n", t.Text)
		}
	}
}

func showNetDetails(out io.Writer, board *pcb.Board, netName string) error {
	info := board.GetNetInfo(netName)
	if info == nil {
		return fmt.Errorf("net '%s' not found", netName)
	}

	fmt.Fprintf(out, "Net: %s (number %d)\n\n", info.Net.Name, info.Net.Number)

	fmt.Fprintf(out, "Pads (%d):\n", len(info.Pads))
	for _, ref := range info.Pads {
		pad := ref.Pad
		fmt.Fprintf(out, "  %s:%-4s %s %.2f×%.2f mm\n",
			ref.Reference, pad.Number, pad.Shape,
			pad.Size.Width, pad.Size.Height)
	}

	fmt.Fprintf(out, "\nTracks (%d):\n", len(info.Tracks))
	for i, track := range info.Tracks {
		fmt.Fprintf(out, "  Track %d: %.2f mm wide on %s from (%.2f, %.2f) to (%.2f, %.2f)\n",
			i+1, track.Width, track.Layer,
			track.Start.X, track.Start.Y,
			track.End.X, track.End.Y)
	}

	return nil
}

func listNetlistNets(out io.Writer, nl *netlist.Netlist) {
	fmt.Fprintf(out, "Netlist: %d components, %d nets\n\n", len(nl.Components), len(nl.Nets))
	fmt.Fprintf(out, "%6s %-30s %6s\n", "Code", "Net Name", "Nodes")
	fmt.Fprintln(out, "──────────────────────────────────────────────")
	for _, n := range nl.Nets {
		fmt.Fprintf(out, "%6d %-30s %6d\n", n.Code, n.Name, len(n.Nodes))
	}
}

func showNetlistNet(out io.Writer, nl *netlist.Netlist, netName string) error {
	for _, n := range nl.Nets {
		if n.Name != netName {
			continue
		}
		fmt.Fprintf(out, "Net: %s (code %d)\n\n", n.Name, n.Code)
		fmt.Fprintf(out, "Nodes (%d):\n", len(n.Nodes))
		for _, node := range n.Nodes {
			fmt.Fprintf(out, "  %s:%s (%s)\n", node.Ref, node.Pin, node.PinType)
		}
		return nil
	}
	return fmt.Errorf("net '%s' not found", netName)
}
