package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/invoke"
	"github.com/Azure/azure-functions-dotnet-worker-sub001/pkg/worker/metadata"
)

func run(t *testing.T, opts Options, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, Options{}, "version")
	require.NoError(t, err)
	assert.Contains(t, out, worker.Version)
}

func TestRoot_InvalidConfiguration(t *testing.T) {
	t.Setenv("FUNCTIONS_WORKER_PORT", "")
	t.Setenv("FUNCTIONS_WORKER_TRANSPORT", "")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no port", []string{"--host", "127.0.0.1"}, "port 0 is out of range"},
		{"bad functions uri", []string{"--functions-uri", "http://127.0.0.1/"}, "functions uri"},
		{"unknown transport", []string{"--transport", "smoke", "--port", "1"}, "unknown transport"},
		{"missing config file", []string{"--config", filepath.Join(t.TempDir(), "nope.yaml")}, "read config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, Options{}, tt.args...)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

type Handlers struct{}

func (*Handlers) Hello(name string) string { return "hello " + name }

func TestMetadataValidate(t *testing.T) {
	asm := invoke.NewAssembly("app")
	asm.MustRegisterType("app.Handlers", &Handlers{}, invoke.Method("Hello", invoke.Param("name")))
	opts := Options{Assemblies: []*invoke.Assembly{asm}, DisablePlugins: true}

	write := func(t *testing.T, content string) string {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, metadata.MetadataFileName), []byte(content), 0o600))
		return dir
	}

	t.Run("resolves entry points", func(t *testing.T) {
		dir := write(t, `[{"name":"Hello","scriptFile":"app.so","entryPoint":"app.Handlers.Hello",
			"bindings":[{"name":"name","type":"queueTrigger","direction":"In"}]}]`)
		out, err := run(t, opts, "metadata", "validate", "--resolve", dir)
		require.NoError(t, err)
		assert.Contains(t, out, "app.Handlers.Hello")
		assert.Contains(t, out, "ok")
	})

	t.Run("unresolvable entry point", func(t *testing.T) {
		dir := write(t, `[{"name":"Gone","scriptFile":"app.so","entryPoint":"app.Handlers.Gone",
			"bindings":[{"name":"name","type":"queueTrigger","direction":"In"}]}]`)
		out, err := run(t, opts, "metadata", "validate", "--resolve", dir)
		assert.ErrorContains(t, err, "1 of 1 functions failed to load")
		assert.Contains(t, out, "could not be resolved")
	})

	t.Run("no functions", func(t *testing.T) {
		_, err := run(t, opts, "metadata", "validate", t.TempDir())
		assert.ErrorContains(t, err, "no functions found")
	})
}
