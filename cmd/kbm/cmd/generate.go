package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/kbmatrix/pkg/generator"
	"github.com/OpenTraceLab/kbmatrix/pkg/router"
)

var (
	outputDir       string
	routingMode     string
	matrixMode      string
	switchFootprint string
	diodeFootprint  string
	projectName     string
	zipOutput       bool
	forceOutput     bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <layout.json>",
	Short: "Generate a KiCad project from a keyboard layout",
	Long: `Generate reads a keyboard-layout-editor layout (raw data, downloaded JSON or
serialized JSON) and writes a KiCad project:

  <out>/<name>/<name>.net         netlist with ROW/COL nets
  <out>/<name>/<name>.kicad_pcb   placed switches and diodes, tracks, outline
  <out>/<name>/<name>.kicad_pro   project file
  <out>/<name>/<name>.json        normalized layout
  <out>/<name>/fp-lib-table       footprint libraries
  <out>/<name>/sym-lib-table
  <out>/logs/routing.yaml         routing report

Connections the router cannot make are left unconnected and marked on the
Cmts.User layer. Nothing is written when the layout or settings are invalid.

Routing modes: Disabled, "Switch-Diode only", Full`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&outputDir, "output", "o", "build", "output directory")
	generateCmd.Flags().StringVar(&routingMode, "routing", "", "routing mode (Disabled, Switch-Diode only, Full)")
	generateCmd.Flags().StringVar(&matrixMode, "matrix", "", "matrix mode (automatic, manual)")
	generateCmd.Flags().StringVar(&switchFootprint, "switch-footprint", "", "switch footprint as lib:name")
	generateCmd.Flags().StringVar(&diodeFootprint, "diode-footprint", "", "diode footprint as lib:name")
	generateCmd.Flags().StringVar(&projectName, "name", "", "project name (default: layout name)")
	generateCmd.Flags().BoolVar(&zipOutput, "zip", false, "also write <output>.zip")
	generateCmd.Flags().BoolVar(&forceOutput, "force", false, "replace an existing output directory")
}

// applyGenerateFlags copies explicitly set flags over the loaded config.
func applyGenerateFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("routing") {
		cfg.Routing.Mode = routingMode
	}
	if flags.Changed("matrix") {
		cfg.Matrix.Mode = matrixMode
	}
	if flags.Changed("switch-footprint") {
		cfg.Footprints.Switch = switchFootprint
	}
	if flags.Changed("diode-footprint") {
		cfg.Footprints.Diode = diodeFootprint
	}
	if flags.Changed("name") {
		cfg.Project.Name = projectName
	}
	if flags.Changed("zip") {
		cfg.Output.Zip = zipOutput
	}
	if flags.Changed("force") {
		cfg.Output.Force = forceOutput
	}
}

func runGenerate(cmd *cobra.Command, args []string) error {
	applyGenerateFlags(cmd)
	settings, err := cfg.Settings()
	if err != nil {
		return err
	}

	file, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open layout: %w", err)
	}
	defer file.Close()

	res, err := generator.New(settings, logger).Run(cmd.Context(), file, outputDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	connected := 0
	for _, t := range res.Routing.Tracks {
		if t.Status == router.Connected {
			connected++
		}
	}
	unconnected := res.Routing.Unconnected()

	fmt.Fprintf(out, "Generated project %q in %s\n", res.Name, res.Dir)
	fmt.Fprintf(out, "  Keys:        %d\n", len(res.Layout.Keys))
	fmt.Fprintf(out, "  Matrix:      %d rows x %d cols\n", res.Matrix.Rows(), res.Matrix.Cols())
	fmt.Fprintf(out, "  Nets:        %d\n", len(res.Routing.Nets))
	fmt.Fprintf(out, "  Routing:     %s\n", settings.Routing.Mode)
	fmt.Fprintf(out, "  Connected:   %d\n", connected)
	fmt.Fprintf(out, "  Unconnected: %d\n", len(unconnected))
	for _, t := range unconnected {
		fmt.Fprintf(out, "    %s %s-%s: %s\n", t.Net, t.From, t.To, t.Reason)
	}
	if len(res.Matrix.Duplicates) > 0 {
		fmt.Fprintf(out, "  Warning: %d matrix positions are shared by several keys\n", len(res.Matrix.Duplicates))
	}
	if res.Archive != "" {
		fmt.Fprintf(out, "  Archive:     %s\n", res.Archive)
	}
	return nil
}
