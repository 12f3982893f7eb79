package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/kbmatrix/pkg/kle"
	"github.com/OpenTraceLab/kbmatrix/pkg/matrix"
)

var annotateOutput string

var annotateCmd = &cobra.Command{
	Use:   "annotate <layout.json>",
	Short: "Write the layout with matrix positions as key labels",
	Long: `Annotate assigns a matrix position to every key and writes the layout back
as serialized JSON with "row,col" in the top-left label of each key.

Annotated layouts can be edited by hand and fed to 'kbm generate --matrix manual'.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnnotate,
}

func init() {
	rootCmd.AddCommand(annotateCmd)
	annotateCmd.Flags().StringVarP(&annotateOutput, "output", "o", "", "output file (default: stdout)")
	annotateCmd.Flags().StringVar(&matrixMode, "matrix", "", "matrix mode (automatic, manual)")
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("matrix") {
		cfg.Matrix.Mode = matrixMode
	}
	mode, err := matrix.ParseMode(cfg.Matrix.Mode)
	if err != nil {
		return err
	}

	l, err := kle.ParseFile(args[0])
	if err != nil {
		return err
	}
	annotated, err := matrix.Annotate(l, matrix.Options{Mode: mode})
	if err != nil {
		return err
	}

	if annotateOutput == "" {
		return kle.Encode(cmd.OutOrStdout(), annotated)
	}

	f, err := os.Create(annotateOutput)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	if err := kle.Encode(f, annotated); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Annotated %d keys into %s\n", len(annotated.Keys), annotateOutput)
	return nil
}
