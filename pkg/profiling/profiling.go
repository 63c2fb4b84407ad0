// Package profiling adds pprof flags to a command tree.
package profiling

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/spf13/cobra"
)

// Profiler writes CPU and heap profiles around a command run.
type Profiler struct {
	cpuPath string
	memPath string
	cpuFile *os.File
}

// AddFlags registers --cpu-profile and --mem-profile on cmd and hooks the
// profiler into its persistent run hooks.
func (p *Profiler) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&p.cpuPath, "cpu-profile", "", "Write a CPU profile to this file")
	cmd.PersistentFlags().StringVar(&p.memPath, "mem-profile", "", "Write a heap profile to this file on exit")
	cmd.PersistentPreRunE = func(*cobra.Command, []string) error { return p.Start() }
	cmd.PersistentPostRun = func(c *cobra.Command, _ []string) { p.Stop(c.ErrOrStderr()) }
}

// Start begins CPU profiling when a path was given.
func (p *Profiler) Start() error {
	if p.cpuPath == "" {
		return nil
	}
	f, err := os.Create(p.cpuPath)
	if err != nil {
		return fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		f.Close()
		return fmt.Errorf("could not start CPU profile: %w", err)
	}
	p.cpuFile = f
	return nil
}

// Stop finishes the CPU profile and writes the heap profile, reporting
// where each went on w.
func (p *Profiler) Stop(w io.Writer) {
	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		p.cpuFile.Close()
		p.cpuFile = nil
		fmt.Fprintf(w, "CPU profile written to %s\n", p.cpuPath)
	}
	if p.memPath == "" {
		return
	}
	f, err := os.Create(p.memPath)
	if err != nil {
		fmt.Fprintf(w, "could not create memory profile: %v\n", err)
		return
	}
	defer f.Close()
	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		fmt.Fprintf(w, "could not write memory profile: %v\n", err)
		return
	}
	fmt.Fprintf(w, "Memory profile written to %s\n", p.memPath)
}
