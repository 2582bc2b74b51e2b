package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
server:
  listen-addr: 127.0.0.1
  port: 5000
  enable-cors: true
  max-upload-mb: 64
classifier:
  type: http
  endpoint: http://models:8501
  model-name: motor_cnn
  timeout: 45s
storage:
  upload-dir: /var/lib/motorwatch/uploads
  generated-dir: /var/lib/motorwatch/generated
  journal:
    type: sqlite
    path: /var/lib/motorwatch/journal.db
generator:
  enabled: true
  interval: 5s
  keep-latest: 1
  seed: 42
parser:
  record-prefix: essais
  name-segment: last
scoring:
  port: 9090
`

func TestYAMLProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motorwatch.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	p := NewYAMLProvider(path)
	defer p.Close()

	cfg, err := p.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.Server.Port != 5000 || !cfg.Server.EnableCORS || cfg.Server.MaxUploadMB != 64 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Classifier.Type != "http" || cfg.Classifier.ModelName != "motor_cnn" || cfg.Classifier.Timeout != "45s" {
		t.Errorf("classifier = %+v", cfg.Classifier)
	}
	if cfg.Storage.Journal == nil || cfg.Storage.Journal.Type != "sqlite" {
		t.Fatalf("journal = %+v", cfg.Storage.Journal)
	}
	if !cfg.Generator.Enabled || cfg.Generator.Interval != "5s" || cfg.Generator.Seed != 42 {
		t.Errorf("generator = %+v", cfg.Generator)
	}
	if cfg.Parser.NameSegment != "last" {
		t.Errorf("parser = %+v", cfg.Parser)
	}
	if cfg.Scoring == nil || cfg.Scoring.Port != 9090 {
		t.Errorf("scoring = %+v", cfg.Scoring)
	}

	server, err := p.GetServer()
	if err != nil || server.ListenAddr != "127.0.0.1" {
		t.Errorf("GetServer = %+v, %v", server, err)
	}
	if !p.IsReadOnly() {
		t.Error("YAML provider should be read-only")
	}
}

func TestYAMLProviderLazyLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "motorwatch.yaml")
	if err := os.WriteFile(path, []byte("classifier:\n  type: static\n  static: [0.1, 0.8, 0.1]\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	c, err := NewYAMLProvider(path).GetClassifier()
	if err != nil {
		t.Fatalf("GetClassifier: %v", err)
	}
	if c.Type != "static" || len(c.Static) != 3 || c.Static[1] != 0.8 {
		t.Errorf("classifier = %+v", c)
	}

	storage, err := NewYAMLProvider(path).GetStorage()
	if err != nil || storage.Journal != nil {
		t.Errorf("GetStorage = %+v, %v", storage, err)
	}
}

func TestYAMLProviderErrors(t *testing.T) {
	if _, err := NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml")).LoadConfig(); err == nil {
		t.Error("expected an error for a missing file")
	}
	if _, err := ParseYAML([]byte("server: [not, a, map")); err == nil {
		t.Error("expected an error for malformed YAML")
	}
}
