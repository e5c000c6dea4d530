package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd(viper.New())
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writePolicies(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policies.yaml")
	_, _, err := execute(t, "init", "--policies", path)
	require.NoError(t, err)
	return path
}

func TestInit_RefusesToOverwrite(t *testing.T) {
	path := writePolicies(t)

	_, _, err := execute(t, "init", "--policies", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	out, _, err := execute(t, "init", "--policies", path, "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "policies written to "+path)
}

func TestSimulate_JSON(t *testing.T) {
	path := writePolicies(t)

	out, _, err := execute(t, "simulate", "incremental", "--policies", path, "-n", "20", "--format", "json")
	require.NoError(t, err)

	var rows []statusRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 5)
	assert.Equal(t, statusRow{Iteration: 4, PreviousDelay: 40 * time.Millisecond, CumulativeDelay: 100 * time.Millisecond}, rows[4])
}

func TestSimulate_Table(t *testing.T) {
	path := writePolicies(t)

	out, _, err := execute(t, "simulate", "capped", "--policies", path, "-n", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "ITERATION")
	assert.Contains(t, out, "CUMULATIVE DELAY")
	assert.Contains(t, out, "100ms")
	assert.NotContains(t, out, "110ms", "capped delays never exceed the cap")
}

func TestSimulate_Errors(t *testing.T) {
	path := writePolicies(t)

	_, _, err := execute(t, "simulate", "missing", "--policies", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "have: backoff, capped, incremental, two_phase")

	_, _, err = execute(t, "simulate", "capped", "--policies", path, "--format", "xml")
	require.Error(t, err)

	_, _, err = execute(t, "simulate", "capped", "--policies", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	_, _, err = execute(t, "simulate")
	require.Error(t, err, "NAME is required")
}

func TestFanout_AllSucceed(t *testing.T) {
	out, _, err := execute(t, "fanout", "--members", "50", "--pool", "2", "--block", "1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "run 1: members=50 pool=2 succeeded=50 failed=0")
}

func TestFanout_FailuresAreRetriedThenCounted(t *testing.T) {
	out, _, err := execute(t, "fanout", "--members", "10", "--pool", "2", "--block", "1ms", "--fail-rate", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "succeeded=0 failed=10")
}

func TestFanout_NamedPolicyAndEnvOverride(t *testing.T) {
	path := writePolicies(t)
	t.Setenv("EFFSIM_FANOUT_MEMBERS", "7")

	out, _, err := execute(t, "fanout", "--policies", path, "--policy", "two_phase", "--pool", "2", "--block", "1ms", "--repeat", "2", "--interval", "1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "run 1: members=7")
	assert.Contains(t, out, "run 2: members=7")
}

func TestFanout_TraceWritesSpans(t *testing.T) {
	out, errOut, err := execute(t, "fanout", "--members", "3", "--pool", "2", "--block", "1ms", "--trace", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "succeeded=3 failed=0")
	assert.Contains(t, errOut, "SpanContext")
	assert.Contains(t, errOut, `"Name": "fanout.run"`)
	for _, name := range []string{"fanout.member[0]", "fanout.member[1]", "fanout.member[2]"} {
		assert.Contains(t, errOut, `"Name": "`+name+`"`)
	}

	_, errOut, err = execute(t, "fanout", "--members", "3", "--pool", "2", "--block", "1ms", "--log-level", "error")
	require.NoError(t, err)
	assert.NotContains(t, errOut, "SpanContext")
}

func TestFanout_InvalidFailRate(t *testing.T) {
	_, _, err := execute(t, "fanout", "--fail-rate", "2")
	require.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "effsim dev")
	assert.Contains(t, out, "go version:")
}
