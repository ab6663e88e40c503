package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/gymtrack/internal/testutil"
)

var start = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// cliEnv runs commands against one temp database with a frozen clock.
type cliEnv struct {
	dir   string
	db    string
	cfg   string
	clock *testutil.FakeClock
	ids   *testutil.SequenceGenerator
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	return &cliEnv{
		dir:   dir,
		db:    filepath.Join(dir, "gym.db"),
		cfg:   filepath.Join(dir, "config.yaml"),
		clock: testutil.NewFakeClock(start),
		ids:   testutil.NewSequenceGenerator("id"),
	}
}

// run executes the root command with args and returns stdout and stderr.
func (e *cliEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	return e.runContext(context.Background(), t, args...)
}

func (e *cliEnv) runContext(ctx context.Context, t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}

	cmd := newRootCommand(&RootOptions{Clock: e.clock, IDs: e.ids})
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(append([]string{"--db", e.db, "--config", e.cfg}, args...))

	err := cmd.ExecuteContext(ctx)
	return out.String(), errOut.String(), err
}

// response mirrors CLIResponse with the payload left raw.
type response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *CLIError       `json:"error"`
}

func decode(t *testing.T, out string) response {
	t.Helper()
	var resp response
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output: %s", out)
	return resp
}

func decodeData[T any](t *testing.T, out string) T {
	t.Helper()
	resp := decode(t, out)
	require.Equal(t, "ok", resp.Status, "output: %s", out)
	var v T
	require.NoError(t, json.Unmarshal(resp.Data, &v))
	return v
}

// addResource registers a machine owned by tina and returns its id.
func (e *cliEnv) addResource(t *testing.T, name string) string {
	t.Helper()
	out, _, err := e.run(t, "--format", "json", "--actor", "tina", "--role", "trainer", "resource", "add", name)
	require.NoError(t, err)
	return decodeData[resourceView](t, out).ID
}
