package launcher

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/Olivier7017/abiconv/internal/config"
	"github.com/Olivier7017/abiconv/internal/flow"
)

// ScriptFor renders the job script for a task. The script is relocatable:
// it changes into its own directory (or the queue's submit directory)
// before invoking the engine, so the flow tree can be moved between
// building and running.
func ScriptFor(m *config.Manager, jobName string) string {
	var sb strings.Builder
	sb.WriteString("#!/bin/bash\n")

	switch m.Adapter {
	case "slurm":
		writeSlurmDirectives(&sb, m, jobName)
	case "pbs":
		writePBSDirectives(&sb, m, jobName)
	}
	sb.WriteByte('\n')

	for _, line := range m.PreRun {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}

	envKeys := make([]string, 0, len(m.Env))
	for k := range m.Env {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	for _, k := range envKeys {
		fmt.Fprintf(&sb, "export %s=%q\n", k, m.Env[k])
	}

	switch m.Adapter {
	case "slurm":
		sb.WriteString("cd \"$SLURM_SUBMIT_DIR\"\n")
	case "pbs":
		sb.WriteString("cd \"$PBS_O_WORKDIR\"\n")
	default:
		sb.WriteString("cd \"$(dirname \"$0\")\"\n")
	}

	sb.WriteString(engineLine(m))
	sb.WriteByte('\n')
	return sb.String()
}

// engineLine builds the engine invocation with its stream redirects and,
// for parallel runs, the MPI runner prefix.
func engineLine(m *config.Manager) string {
	invocation := fmt.Sprintf("%s %s > %s 2> %s", m.Binary, flow.DeckFile, flow.LogFile, flow.ErrFile)
	if m.MpiProcs > 1 {
		return fmt.Sprintf("%s -np %d %s", m.MpiRunner, m.MpiProcs, invocation)
	}
	return invocation
}

func writeSlurmDirectives(sb *strings.Builder, m *config.Manager, jobName string) {
	fmt.Fprintf(sb, "#SBATCH --job-name=%s\n", jobName)
	fmt.Fprintf(sb, "#SBATCH --output=%s\n", QueueOutFile)
	fmt.Fprintf(sb, "#SBATCH --error=%s\n", QueueErrFile)
	fmt.Fprintf(sb, "#SBATCH --ntasks=%d\n", m.MpiProcs)
	if m.Queue.Name != "" {
		fmt.Fprintf(sb, "#SBATCH --partition=%s\n", m.Queue.Name)
	}
	if m.Queue.Walltime != "" {
		fmt.Fprintf(sb, "#SBATCH --time=%s\n", m.Queue.Walltime)
	}
	if m.Queue.Account != "" {
		fmt.Fprintf(sb, "#SBATCH --account=%s\n", m.Queue.Account)
	}
}

func writePBSDirectives(sb *strings.Builder, m *config.Manager, jobName string) {
	fmt.Fprintf(sb, "#PBS -N %s\n", jobName)
	fmt.Fprintf(sb, "#PBS -o %s\n", QueueOutFile)
	fmt.Fprintf(sb, "#PBS -e %s\n", QueueErrFile)
	fmt.Fprintf(sb, "#PBS -l select=1:mpiprocs=%d\n", m.MpiProcs)
	if m.Queue.Name != "" {
		fmt.Fprintf(sb, "#PBS -q %s\n", m.Queue.Name)
	}
	if m.Queue.Walltime != "" {
		fmt.Fprintf(sb, "#PBS -l walltime=%s\n", m.Queue.Walltime)
	}
	if m.Queue.Account != "" {
		fmt.Fprintf(sb, "#PBS -A %s\n", m.Queue.Account)
	}
}

// WriteScript writes a rendered script executable, as queue systems and
// the shell adapter both exec it directly.
func WriteScript(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0755); err != nil { //nolint:gosec // Job scripts must be executable
		return fmt.Errorf("failed to write job script: %w", err)
	}
	return nil
}
