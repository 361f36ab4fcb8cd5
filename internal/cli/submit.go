package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"lnskit/internal/api"
	"lnskit/internal/events"
	"lnskit/internal/store"
)

type submitOptions struct {
	server     string
	iterations int
	timeBudget time.Duration
	seed       int64
	restarts   int
	watch      bool
}

func newSubmitCmd() *cobra.Command {
	opts := &submitOptions{}
	cmd := &cobra.Command{
		Use:   "submit <instance.yaml|instance.json>",
		Short: "Queue an instance on a running server and optionally follow its progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSubmit(ctx, cmd, opts, args[0])
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.server, "server", "http://localhost:8080", "base URL of the lnskit API")
	f.IntVarP(&opts.iterations, "iterations", "n", 0, "iteration limit")
	f.DurationVarP(&opts.timeBudget, "time-budget", "t", 0, "wall clock limit")
	f.Int64Var(&opts.seed, "seed", 0, "random seed")
	f.IntVarP(&opts.restarts, "restarts", "r", 0, "independent parallel searches")
	f.BoolVarP(&opts.watch, "watch", "w", false, "stream run events until the run ends")
	return cmd
}

func runSubmit(ctx context.Context, cmd *cobra.Command, opts *submitOptions, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read instance: %w", err)
	}
	var req api.RunRequest
	if err := yaml.Unmarshal(data, &req.Instance); err != nil {
		return fmt.Errorf("parse instance %s: %w", path, err)
	}
	if _, err := req.Instance.Build(); err != nil {
		return err
	}
	req.Params = submitParams(cmd, opts)

	run, err := postRun(ctx, opts.server, req)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !opts.watch {
		_, err := fmt.Fprintln(out, run.ID)
		return err
	}
	fmt.Fprintf(out, "run %s %s\n", run.ID, run.Status)
	return watchRun(ctx, out, opts.server, run.ID)
}

// submitParams forwards only the flags given explicitly, so the server's
// solver defaults apply otherwise.
func submitParams(cmd *cobra.Command, opts *submitOptions) *api.RunParams {
	f := cmd.Flags()
	var p api.RunParams
	set := false
	if f.Changed("iterations") {
		p.Iterations, set = &opts.iterations, true
	}
	if f.Changed("time-budget") {
		p.TimeBudget, set = opts.timeBudget.String(), true
	}
	if f.Changed("seed") {
		p.Seed, set = &opts.seed, true
	}
	if f.Changed("restarts") {
		p.Restarts, set = &opts.restarts, true
	}
	if !set {
		return nil
	}
	return &p
}

func postRun(ctx context.Context, server string, req api.RunRequest) (store.Run, error) {
	var run store.Run
	body, err := json.Marshal(req)
	if err != nil {
		return run, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(server, "/")+"/v1/runs", bytes.NewReader(body))
	if err != nil {
		return run, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return run, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusAccepted {
		var p api.Problem
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &p) == nil && p.Detail != "" {
			return run, fmt.Errorf("submit: %s: %s", resp.Status, p.Detail)
		}
		return run, fmt.Errorf("submit: %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		return run, fmt.Errorf("decode run: %w", err)
	}
	return run, nil
}

// watchRun prints every message of the run's event stream, one per line,
// and reports an error unless the run succeeded.
func watchRun(ctx context.Context, out io.Writer, server, id string) error {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += "/v1/runs/" + id + "/events"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial events: %w", err)
	}
	defer func() { _ = conn.Close() }()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	var final store.RunStatus
	for {
		var m events.Message
		if err := conn.ReadJSON(&m); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || final != "" {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read events: %w", err)
		}
		fmt.Fprintf(out, "%s %s\n", m.Type, m.Data)
		if m.Type != api.MessageRunStatus {
			continue
		}
		var run store.Run
		if err := json.Unmarshal(m.Data, &run); err == nil && run.Status.Terminal() {
			final = run.Status
		}
	}
	switch final {
	case store.StatusSucceeded:
		return nil
	case "":
		return errors.New("event stream closed before the run ended")
	default:
		return fmt.Errorf("run %s %s", id, final)
	}
}
