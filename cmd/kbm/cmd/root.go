package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/OpenTraceLab/kbmatrix/internal/config"
	"github.com/OpenTraceLab/kbmatrix/internal/logging"
	"github.com/OpenTraceLab/kbmatrix/pkg/layout"
)

// Version is the kbm release.
const Version = "0.3.0"

// Exit codes.
const (
	exitFailure    = 1
	exitValidation = 2
)

var (
	// Global flags
	verbose    bool
	logFormat  string
	configPath string

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "kbm",
	Short: "kbm - keyboard layout to KiCad key matrix generator",
	Long: `kbm turns a keyboard-layout-editor layout into a KiCad project with the
switch/diode key matrix already placed, annotated with ROW/COL nets and
routed as far as a simple router can take it.

The result still needs a design rule check and a controller circuit.

Examples:
  kbm generate layout.json -o build          # Generate build/<name>/...
  kbm generate layout.json --routing Full    # Also route rows and columns
  kbm annotate layout.json -o annotated.json # Bake matrix positions into labels
  kbm nets build/kb/kb.kicad_pcb ROW0        # Inspect a generated net`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		format := cfg.Logging.Format
		if cmd.Flags().Changed("log-format") {
			format = logFormat
		}
		logger, err = logging.New(level, format)
		if err != nil {
			return fmt.Errorf("%w: %v", layout.ErrInvalidSettings, err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command. Invalid input exits with status 2, any
// other failure with status 1.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	if layout.IsValidationError(err) {
		return exitValidation
	}
	return exitFailure
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatConsole, "log format (console, json)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML settings file")
}
