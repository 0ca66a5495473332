package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("package:\n  id: demo@example.org\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Package.ID != "demo@example.org" {
		t.Errorf("id: got %q", cfg.Package.ID)
	}
	if cfg.Package.Page != "main.html" {
		t.Errorf("page: got %q", cfg.Package.Page)
	}
	if len(cfg.Policy.Elements) != 1 || cfg.Policy.Elements[0] != "BUTTON" {
		t.Errorf("elements: got %v", cfg.Policy.Elements)
	}
	if cfg.Fetch.Timeout != 30*time.Second {
		t.Errorf("fetch timeout: got %v", cfg.Fetch.Timeout)
	}
	if cfg.Script.Timeout != 5*time.Second {
		t.Errorf("script timeout: got %v", cfg.Script.Timeout)
	}
}

func TestLoadFile(t *testing.T) {
	yml := `
package:
  id: toolbar
  data_dir: /srv/toolbar
policy:
  elements: [BUTTON, A]
  styles: [background-image]
fetch:
  charset: ISO-8859-1
  timeout: 2s
sinks:
  - type: stdout
  - type: journal
    path: /tmp/changes.db
http:
  addr: ":9000"
`
	path := filepath.Join(t.TempDir(), "dommirror.yaml")
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Package.DataDir != "/srv/toolbar" {
		t.Errorf("data_dir: got %q", cfg.Package.DataDir)
	}
	if len(cfg.Policy.Elements) != 2 {
		t.Errorf("elements: got %v", cfg.Policy.Elements)
	}
	if cfg.Fetch.Charset != "ISO-8859-1" || cfg.Fetch.Timeout != 2*time.Second {
		t.Errorf("fetch: got %+v", cfg.Fetch)
	}
	if len(cfg.Sinks) != 2 || cfg.Sinks[1].Path != "/tmp/changes.db" {
		t.Errorf("sinks: got %+v", cfg.Sinks)
	}
	if cfg.HTTP.Addr != ":9000" {
		t.Errorf("addr: got %q", cfg.HTTP.Addr)
	}
}

func TestParseInvalidSinks(t *testing.T) {
	tests := []struct {
		name string
		yml  string
		want string
	}{
		{"unknown type", "sinks:\n  - type: nats\n", "unknown type"},
		{"webhook without url", "sinks:\n  - type: webhook\n", "needs url"},
		{"journal without path", "sinks:\n  - type: journal\n", "needs path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}
