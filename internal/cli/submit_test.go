package cli

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lnskit/internal/api"
	"lnskit/internal/config"
	"lnskit/internal/events"
	"lnskit/internal/store"
)

func newAPIServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()
	var cfg config.Config
	cfg.SetDefaults()
	cfg.Solver.Iterations = 30
	cfg.Solver.TimeBudget = 0
	st := store.NewMemory()
	srv := api.NewServer(cfg.Server, cfg.Solver, st, events.NewMemory(), zerolog.Nop())
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(func() {
		ts.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return ts, st
}

func TestSubmitPrintsRunID(t *testing.T) {
	ts, st := newAPIServer(t)
	out, _, err := execute(t, "submit", writeInstance(t), "--server", ts.URL, "--seed", "4")
	require.NoError(t, err)

	id := strings.TrimSpace(out)
	run, err := st.GetRun(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "cli-demo", run.Instance)
	assert.JSONEq(t, `{"seed":4}`, string(run.Params))
}

func TestSubmitWatchFollowsRun(t *testing.T) {
	ts, _ := newAPIServer(t)
	out, _, err := execute(t, "submit", writeInstance(t), "--server", ts.URL, "-n", "20", "--watch")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.True(t, strings.HasPrefix(lines[0], "run "))
	last := lines[len(lines)-1]
	assert.True(t, strings.HasPrefix(last, api.MessageRunStatus+" "))
	assert.Contains(t, last, `"status":"succeeded"`)
}

func TestSubmitRejected(t *testing.T) {
	ts, _ := newAPIServer(t)
	_, _, err := execute(t, "submit", writeInstance(t), "--server", ts.URL, "-r", "100")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}
