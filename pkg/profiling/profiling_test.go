package profiling

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfilesWritten(t *testing.T) {
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.pprof")
	mem := filepath.Join(dir, "mem.pprof")

	var p Profiler
	root := &cobra.Command{Use: "watchpost", RunE: func(*cobra.Command, []string) error { return nil }}
	p.AddFlags(root)

	var errOut bytes.Buffer
	root.SetErr(&errOut)
	root.SetArgs([]string{"--cpu-profile", cpu, "--mem-profile", mem})
	require.NoError(t, root.Execute())

	for _, path := range []string{cpu, mem} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.NotZero(t, info.Size(), path)
	}
	assert.Contains(t, errOut.String(), "CPU profile written")
	assert.Contains(t, errOut.String(), "Memory profile written")
}

func TestNoFlagsIsNoop(t *testing.T) {
	var p Profiler
	require.NoError(t, p.Start())
	var out bytes.Buffer
	p.Stop(&out)
	assert.Empty(t, out.String())
}
