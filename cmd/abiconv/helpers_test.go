package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Olivier7017/abiconv/internal/deck"
	"github.com/Olivier7017/abiconv/internal/flow"
)

// testDeck is a minimal two-mesh silicon study shared by the command tests.
const testDeck = `
study "si_test" {
  pseudo_dir = "/opt/pseudos"
  pseudos    = ["14si.pspnc"]

  structure {
    acell = [10.217, 10.217, 10.217]
    rprim = [[0.0, 0.5, 0.5], [0.5, 0.0, 0.5], [0.5, 0.5, 0.0]]
    znucl = [14]
    typat = [1, 1]
    xred  = [[0.0, 0.0, 0.0], [0.25, 0.25, 0.25]]
  }

  variables {
    ecut   = 8.0
    toldfe = 1e-8
  }

  kmesh {
    ngkpt = [[2, 2, 2], [4, 4, 4]]
  }

  convergence {
    tolerance_mev_per_atom = 1.0
  }
}
`

// writeTestDeck writes the fixture deck into dir and returns its path.
func writeTestDeck(t *testing.T, dir string) string {
	t.Helper()

	path := filepath.Join(dir, "study.hcl")
	if err := os.WriteFile(path, []byte(testDeck), 0600); err != nil {
		t.Fatalf("failed to write test deck: %v", err)
	}
	return path
}

// buildTestFlow materializes the fixture study under dir and returns the
// flow directory.
func buildTestFlow(t *testing.T, dir string) string {
	t.Helper()

	study, err := deck.Load(writeTestDeck(t, dir))
	if err != nil {
		t.Fatalf("failed to load test deck: %v", err)
	}

	workdir := filepath.Join(dir, "flow_si_test")
	if _, err := flow.Build(study, workdir); err != nil {
		t.Fatalf("failed to build test flow: %v", err)
	}
	return workdir
}
