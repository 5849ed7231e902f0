package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Olivier7017/abiconv/internal/ddb"
)

// NewDDBCmd creates the ddb command.
func NewDDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ddb FILE",
		Short: "Inspect a derivative database file",
		Long: `Ddb reads the header of a derivative database file left by a
response-function run and prints the run parameters, the crystal
structure and the q-point list, together with the q-mesh guessed from
the points.

Examples:
  # Human-readable summary
  abiconv ddb outdata/out_DDB

  # JSON for tooling
  abiconv ddb outdata/out_DDB --json`,
		Args: cobra.ExactArgs(1),
		RunE: runDDBCmd,
	}

	cmd.Flags().BoolP("json", "j", false,
		"Output the summary in JSON format")

	return cmd
}

// ddbSummary is the JSON shape of the ddb command output.
type ddbSummary struct {
	Version      int          `json:"version"`
	Formula      string       `json:"formula,omitempty"`
	NumAtoms     int          `json:"natom,omitempty"`
	Params       ddb.Params   `json:"params"`
	QPoints      [][3]float64 `json:"qpoints"`
	GuessedNgqpt [3]int       `json:"guessed_ngqpt"`
}

// runDDBCmd executes the ddb command.
func runDDBCmd(cmd *cobra.Command, args []string) error {
	f, err := ddb.ReadFile(args[0])
	if err != nil {
		return err
	}

	summary := ddbSummary{
		Version:      f.Version,
		Params:       f.Params(),
		QPoints:      f.QPoints,
		GuessedNgqpt: f.GuessedNgqpt(),
	}

	s, err := f.Structure()
	if err == nil {
		summary.Formula = s.Formula()
		summary.NumAtoms = s.NumAtoms()
	}

	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(summary)
	}

	fmt.Printf("DDB version %d\n", summary.Version)
	if summary.Formula != "" {
		fmt.Printf("Structure: %s (%d atoms)\n", summary.Formula, summary.NumAtoms)
	}

	p := summary.Params
	fmt.Printf("Run parameters: nkpt=%d nsppol=%d ecut=%g tsmear=%g ixc=%d\n",
		p.Nkpt, p.Nsppol, p.Ecut, p.Tsmear, p.Ixc)

	fmt.Printf("\nQ-points (%d):\n", len(summary.QPoints))
	for _, q := range summary.QPoints {
		fmt.Printf("  %10.6f %10.6f %10.6f\n", q[0], q[1], q[2])
	}

	g := summary.GuessedNgqpt
	fmt.Printf("\nGuessed q-mesh: %d %d %d\n", g[0], g[1], g[2])
	return nil
}
