package plugin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/hypnosonore/internal/trigger"
)

// writePlugin creates a plugin directory with a manifest and a shell script.
func writePlugin(t *testing.T, root string, m Manifest, script string) string {
	t.Helper()
	dir := filepath.Join(root, m.Name)
	require.NoError(t, os.MkdirAll(dir, 0o755))

	data, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.json"), data, 0o644))
	if script != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, m.Executable), []byte(script), 0o755))
	}
	return dir
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("skipping test on Windows")
	}
}

const echoScript = `#!/bin/sh
req=$(cat)
printf '{"success":true,"data":%s}' "$req"
`

func TestManager_Discover(t *testing.T) {
	root := t.TempDir()
	dir := writePlugin(t, root, Manifest{
		Name:        "beta",
		Version:     "1.0.0",
		Description: "second",
		Executable:  "run.sh",
		Actions:     []string{"note"},
	}, "")
	writePlugin(t, root, Manifest{Name: "alpha", Executable: "run.sh"}, "")

	// Broken entries are skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "no-manifest"), 0o755))
	bad := filepath.Join(root, "bad-json")
	require.NoError(t, os.MkdirAll(bad, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bad, "plugin.json"), []byte("{"), 0o644))
	writePlugin(t, root, Manifest{Name: "no-exec"}, "")
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), nil, 0o644))

	m := NewManager(root)
	require.NoError(t, m.Discover())

	plugins := m.List()
	require.Len(t, plugins, 2)
	assert.Equal(t, "alpha", plugins[0].Manifest.Name)
	assert.Equal(t, "beta", plugins[1].Manifest.Name)

	p, err := m.Get("beta")
	require.NoError(t, err)
	assert.Equal(t, dir, p.Path)
	assert.Equal(t, filepath.Join(dir, "run.sh"), p.Executable)
	assert.Equal(t, "second", p.Manifest.Description)

	_, err = m.Get("no-exec")
	assert.ErrorIs(t, err, ErrPluginNotFound)
}

func TestManager_DiscoverMissingDir(t *testing.T) {
	m := NewManager(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, m.Discover())
	assert.Empty(t, m.List())
}

func TestManager_RediscoverDropsRemoved(t *testing.T) {
	root := t.TempDir()
	dir := writePlugin(t, root, Manifest{Name: "gone", Executable: "run.sh"}, "")

	m := NewManager(root)
	require.NoError(t, m.Discover())
	require.Len(t, m.List(), 1)

	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, m.Discover())
	assert.Empty(t, m.List())
}

func TestManifest_Supports(t *testing.T) {
	assert.True(t, Manifest{}.Supports("anything"))
	m := Manifest{Actions: []string{"note", "cc"}}
	assert.True(t, m.Supports("cc"))
	assert.False(t, m.Supports("keystroke"))
}

func TestExecutor_PassesRequest(t *testing.T) {
	skipOnWindows(t)

	root := t.TempDir()
	writePlugin(t, root, Manifest{Name: "echo", Executable: "run.sh"}, echoScript)
	m := NewManager(root)
	require.NoError(t, m.Discover())
	p, err := m.Get("echo")
	require.NoError(t, err)

	resp, err := NewExecutor(5*time.Second).Execute(context.Background(), p, &Request{
		Action:  "note",
		Pattern: "nod",
		Edge:    EdgeStart,
		Config:  json.RawMessage(`{"note":60}`),
	})
	require.NoError(t, err)
	require.True(t, resp.Success)

	var echoed Request
	require.NoError(t, json.Unmarshal(resp.Data, &echoed))
	assert.Equal(t, "note", echoed.Action)
	assert.Equal(t, "nod", echoed.Pattern)
	assert.Equal(t, EdgeStart, echoed.Edge)
	assert.JSONEq(t, `{"note":60}`, string(echoed.Config))
}

func TestExecutor_Timeout(t *testing.T) {
	skipOnWindows(t)

	root := t.TempDir()
	dir := writePlugin(t, root, Manifest{Name: "slow", Executable: "run.sh"}, "#!/bin/sh\nexec sleep 5\n")
	p := &Plugin{Manifest: Manifest{Name: "slow"}, Path: dir, Executable: filepath.Join(dir, "run.sh")}

	start := time.Now()
	_, err := NewExecutor(100*time.Millisecond).Execute(context.Background(), p, &Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestExecutor_Failures(t *testing.T) {
	skipOnWindows(t)

	tests := []struct {
		name    string
		script  string
		wantErr string
	}{
		{name: "non-zero exit", script: "#!/bin/sh\necho boom >&2\nexit 3\n", wantErr: "boom"},
		{name: "garbage output", script: "#!/bin/sh\necho not-json\n", wantErr: "failed to parse plugin response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writePlugin(t, t.TempDir(), Manifest{Name: "p", Executable: "run.sh"}, tt.script)
			p := &Plugin{Manifest: Manifest{Name: "p"}, Path: dir, Executable: filepath.Join(dir, "run.sh")}

			_, err := NewExecutor(0).Execute(context.Background(), p, &Request{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestActuator_Edges(t *testing.T) {
	skipOnWindows(t)

	root := t.TempDir()
	writePlugin(t, root, Manifest{Name: "echo", Executable: "run.sh", Actions: []string{"note"}}, echoScript)
	writePlugin(t, root, Manifest{Name: "refuse", Executable: "run.sh"},
		"#!/bin/sh\ncat >/dev/null\necho '{\"success\":false,\"error\":\"busy\"}'\n")
	m := NewManager(root)
	require.NoError(t, m.Discover())
	a := NewActuator(m, NewExecutor(0))

	ctx := context.Background()
	b := trigger.Binding{PatternID: "smile", Kind: trigger.KindPlugin, Target: "echo", Action: "note"}
	assert.NoError(t, a.Start(ctx, b))
	assert.NoError(t, a.Stop(ctx, b))

	b.Action = "keystroke"
	assert.ErrorContains(t, a.Start(ctx, b), "no action")

	b.Target = "missing"
	assert.ErrorIs(t, a.Start(ctx, b), ErrPluginNotFound)

	b.Target = "refuse"
	assert.ErrorContains(t, a.Stop(ctx, b), "busy")
}
