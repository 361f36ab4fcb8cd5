package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const instanceYAML = `name: cli-demo
capacity: 3
vehicles: 2
depot: {name: hub, lat: 0, lng: 0}
customers:
  - {name: a, lat: 0.01, lng: 0.01, demand: 1}
  - {name: b, lat: 0.02, lng: 0.00, demand: 1}
  - {name: c, lat: 0.00, lng: 0.03, demand: 1}
  - {name: d, lat: -0.01, lng: 0.02, demand: 1}
  - {name: e, lat: 0.03, lng: 0.03, demand: 1}
`

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeInstance(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(instanceYAML), 0o644))
	return path
}

func TestSolveJSON(t *testing.T) {
	out, _, err := execute(t, "solve", writeInstance(t), "-n", "40", "--seed", "3", "-f", "json")
	require.NoError(t, err)

	var r Report
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, "cli-demo", r.Instance)
	assert.Equal(t, int64(3), r.Seed)
	assert.Equal(t, 40, r.Iterations)
	assert.LessOrEqual(t, r.Cost, r.InitialCost)
	var stops []string
	for _, rr := range r.Routes {
		stops = append(stops, rr.Stops...)
	}
	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, stops)
}

func TestSolveYAMLToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "report.yaml")
	_, _, err := execute(t, "solve", writeInstance(t), "-n", "10", "--seed", "1", "-o", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	var r Report
	require.NoError(t, yaml.Unmarshal(data, &r))
	assert.Equal(t, "cli-demo", r.Instance)
	assert.NotEmpty(t, r.Routes)
}

func TestSolveText(t *testing.T) {
	out, _, err := execute(t, "solve", writeInstance(t), "-n", "5", "--seed", "2", "-f", "text")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "cli-demo: cost"))
	assert.Contains(t, out, "vehicle")
}

func TestSolveRejects(t *testing.T) {
	_, _, err := execute(t, "solve", writeInstance(t), "-f", "xml")
	assert.ErrorContains(t, err, "unknown format")

	_, _, err = execute(t, "solve", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, _, err = execute(t, "solve")
	assert.Error(t, err)

	_, _, err = execute(t, "solve", writeInstance(t), "--log-level", "loud")
	assert.Error(t, err)
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lnskit dev")
}
