package command

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grovetools/watchpost/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendExecutor(t *testing.T) {
	testutil.RequireShell(t)
	dir := t.TempDir()

	cmd := BackendExecutor(dir).CommandContext(context.Background(), testutil.Shell, "-c", `printf '%s %s' "$PYTHONUNBUFFERED" "$(pwd -P)"`)
	out, err := cmd.Output()
	require.NoError(t, err)

	fields := strings.Fields(string(out))
	require.Len(t, fields, 2)
	assert.Equal(t, "1", fields[0])
	want, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	assert.Equal(t, want, fields[1])
}

func TestRealExecutorInheritsEnvironment(t *testing.T) {
	cmd := (&RealExecutor{}).Command("true")
	assert.Empty(t, cmd.Dir)
	assert.Nil(t, cmd.Env)
}
