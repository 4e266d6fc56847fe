package plugins

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/onboardia/onboardia/internal/config"
	"github.com/onboardia/onboardia/internal/module"
)

const sampleYAML = `id: yaml-plugin
version: 1.0.0
prompt:
  template: "Draft a short equipment checklist for {{.Hire.Name}}"
outputs:
  - artifact: yaml-plugin-doc
`

func TestRegisterStepPlugins(t *testing.T) {
	cfg := initTestConfig(t)
	if err := os.MkdirAll(cfg.PluginsDir(), 0o755); err != nil {
		t.Fatalf("mkdir plugins: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.PluginsDir(), "plugin.yaml"), []byte(sampleYAML), 0644); err != nil {
		t.Fatalf("write plugin: %v", err)
	}
	reg := module.NewRegistry()
	if err := RegisterStepPlugins(reg, cfg); err != nil {
		t.Fatalf("register plugins: %v", err)
	}
	if _, err := reg.Resolve("yaml-plugin", nil); err != nil {
		t.Fatalf("resolve plugin: %v", err)
	}
}

func TestRegisterStepPluginsNoDir(t *testing.T) {
	cfg := initTestConfig(t)
	reg := module.NewRegistry()
	if err := RegisterStepPlugins(reg, cfg); err != nil {
		t.Fatalf("missing plugin dir should be a no-op: %v", err)
	}
	if len(reg.IDs()) != 0 {
		t.Fatalf("expected empty registry, got %v", reg.IDs())
	}
}

func initTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.NewConfig(t.TempDir())
	if err != nil {
		t.Fatalf("new config: %v", err)
	}
	return cfg
}
