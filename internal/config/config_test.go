package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"dstcore/internal/logger"
	"dstcore/internal/store"
	"dstcore/internal/tracing"
	"dstcore/internal/worker"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	return path
}

func TestLoadFileYAML(t *testing.T) {
	content := `
log_level: debug
pool:
  workers: 6
  pin_workers: true
  max_latency_samples: 5000
scenario:
  name: test-scenario
  description: Test scenario
  pushers: 3
  tasks_per_pusher: 40
  task_time: 2ms
  task_jitter: 500us
  fail_rate: 0.25
  seed: 42
server:
  enabled: true
  addr: ":9090"
`
	cfg, err := LoadFile(writeConfig(t, "config.yaml", content))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Scenario.Name != "test-scenario" {
		t.Errorf("expected name 'test-scenario', got '%s'", cfg.Scenario.Name)
	}
	if cfg.Pool.Workers != 6 {
		t.Errorf("expected workers 6, got %d", cfg.Pool.Workers)
	}
	if !cfg.Pool.PinWorkers {
		t.Error("expected pin_workers to be set")
	}
	if cfg.Scenario.Seed != 42 {
		t.Errorf("expected seed 42, got %d", cfg.Scenario.Seed)
	}
	if !cfg.Server.Enabled || cfg.ServerAddr() != ":9090" {
		t.Errorf("unexpected server config %+v", cfg.Server)
	}
	if level, err := cfg.Level(); err != nil || level != logger.LevelDebug {
		t.Errorf("expected debug level, got %v (%v)", level, err)
	}
}

func TestLoadFileJSON(t *testing.T) {
	content := `{
  "pool": {
    "workers": 2
  },
  "scenario": {
    "preset": "ordered",
    "name": "json-test"
  }
}`
	cfg, err := LoadFile(writeConfig(t, "config.json", content))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Scenario.Name != "json-test" {
		t.Errorf("expected name 'json-test', got '%s'", cfg.Scenario.Name)
	}
	if cfg.Scenario.Preset != "ordered" {
		t.Errorf("expected preset 'ordered', got '%s'", cfg.Scenario.Preset)
	}
	if cfg.Server.Enabled {
		t.Error("expected server to be disabled")
	}
	if cfg.ServerAddr() != DefaultServerAddr {
		t.Errorf("expected default addr, got %s", cfg.ServerAddr())
	}
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := LoadFile("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFileUnsupportedFormat(t *testing.T) {
	_, err := LoadFile(writeConfig(t, "config.txt", "test"))
	if err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	_, err := LoadFile(writeConfig(t, "config.yml", "pool: [unterminated"))
	if err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestToPoolConfig(t *testing.T) {
	cfg := &FileConfig{
		Pool: PoolConfig{Workers: 3, PinWorkers: true, MaxLatencySamples: 10},
	}

	pc := cfg.ToPoolConfig()
	if pc.Workers != 3 {
		t.Errorf("expected 3 workers, got %d", pc.Workers)
	}
	if !pc.PinWorkers {
		t.Error("expected pin workers")
	}
	if pc.Metrics.MaxLatencySamples != 10 {
		t.Errorf("expected 10 samples, got %d", pc.Metrics.MaxLatencySamples)
	}

	empty := (&FileConfig{}).ToPoolConfig()
	if empty.Workers != worker.DefaultWorkers() {
		t.Errorf("expected %d default workers, got %d", worker.DefaultWorkers(), empty.Workers)
	}
}

func TestToScenarioConfig(t *testing.T) {
	cfg := &FileConfig{
		Pool: PoolConfig{Workers: 8},
		Scenario: ScenarioConfig{
			Name:           "test",
			Description:    "Test",
			Pushers:        5,
			TasksPerPusher: 20,
			TaskTime:       "3ms",
			TaskJitter:     "1ms",
			FailRate:       0.2,
			Seed:           7,
		},
	}

	scenarioCfg, err := cfg.ToScenarioConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}

	if scenarioCfg.Name != "test" {
		t.Errorf("expected name 'test', got '%s'", scenarioCfg.Name)
	}
	if scenarioCfg.Pool.Workers != 8 {
		t.Errorf("expected workers 8, got %d", scenarioCfg.Pool.Workers)
	}
	if scenarioCfg.Pushers != 5 || scenarioCfg.TasksPerPusher != 20 {
		t.Errorf("expected 5x20, got %dx%d", scenarioCfg.Pushers, scenarioCfg.TasksPerPusher)
	}
	if scenarioCfg.TaskTime != 3*time.Millisecond {
		t.Errorf("expected 3ms, got %v", scenarioCfg.TaskTime)
	}
	if scenarioCfg.TaskJitter != time.Millisecond {
		t.Errorf("expected 1ms jitter, got %v", scenarioCfg.TaskJitter)
	}
	if scenarioCfg.FailRate != 0.2 {
		t.Errorf("expected fail rate 0.2, got %f", scenarioCfg.FailRate)
	}
	if scenarioCfg.Seed != 7 {
		t.Errorf("expected seed 7, got %d", scenarioCfg.Seed)
	}
}

func TestToScenarioConfigPreset(t *testing.T) {
	cfg := &FileConfig{
		Scenario: ScenarioConfig{Preset: "ordered", TasksPerPusher: 10},
	}

	scenarioCfg, err := cfg.ToScenarioConfig()
	if err != nil {
		t.Fatalf("failed to convert config: %v", err)
	}

	if scenarioCfg.Name != "ordered" {
		t.Errorf("expected preset name, got '%s'", scenarioCfg.Name)
	}
	if !scenarioCfg.CheckOrder || scenarioCfg.Pool.Workers != 1 {
		t.Error("expected preset fields to be kept")
	}
	if scenarioCfg.TasksPerPusher != 10 {
		t.Errorf("expected override of tasks per pusher, got %d", scenarioCfg.TasksPerPusher)
	}
	if err := scenarioCfg.Validate(); err != nil {
		t.Errorf("expected valid scenario: %v", err)
	}
}

func TestToScenarioConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		sc   ScenarioConfig
	}{
		{"unknown preset", ScenarioConfig{Preset: "nonexistent"}},
		{"invalid task time", ScenarioConfig{TaskTime: "invalid"}},
		{"invalid jitter", ScenarioConfig{TaskJitter: "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &FileConfig{Scenario: tt.sc}
			if _, err := cfg.ToScenarioConfig(); err == nil {
				t.Error("expected conversion error")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		config   FileConfig
		hasError bool
	}{
		{
			name:     "valid config",
			config:   FileConfig{},
			hasError: false,
		},
		{
			name:     "invalid log level",
			config:   FileConfig{LogLevel: "verbose"},
			hasError: true,
		},
		{
			name:     "negative workers",
			config:   FileConfig{Pool: PoolConfig{Workers: -1}},
			hasError: true,
		},
		{
			name:     "too many workers",
			config:   FileConfig{Pool: PoolConfig{Workers: worker.MaxWorkers + 1}},
			hasError: true,
		},
		{
			name:     "negative latency samples",
			config:   FileConfig{Pool: PoolConfig{MaxLatencySamples: -1}},
			hasError: true,
		},
		{
			name:     "unknown preset",
			config:   FileConfig{Scenario: ScenarioConfig{Preset: "nope"}},
			hasError: true,
		},
		{
			name:     "negative pushers",
			config:   FileConfig{Scenario: ScenarioConfig{Pushers: -1}},
			hasError: true,
		},
		{
			name:     "negative tasks",
			config:   FileConfig{Scenario: ScenarioConfig{TasksPerPusher: -1}},
			hasError: true,
		},
		{
			name:     "invalid fail rate (too high)",
			config:   FileConfig{Scenario: ScenarioConfig{FailRate: 1.5}},
			hasError: true,
		},
		{
			name:     "invalid fail rate (negative)",
			config:   FileConfig{Scenario: ScenarioConfig{FailRate: -0.1}},
			hasError: true,
		},
		{
			name:     "invalid log format",
			config:   FileConfig{LogFormat: "xml"},
			hasError: true,
		},
		{
			name:     "invalid task time",
			config:   FileConfig{Scenario: ScenarioConfig{TaskTime: "soon"}},
			hasError: true,
		},
		{
			name:     "unknown store driver",
			config:   FileConfig{Store: StoreConfig{Driver: "mysql", DSN: "x"}},
			hasError: true,
		},
		{
			name:     "unknown trace exporter",
			config:   FileConfig{Tracing: TracingConfig{Exporter: "otlp"}},
			hasError: true,
		},
		{
			name:     "zipkin without endpoint",
			config:   FileConfig{Tracing: TracingConfig{Exporter: "zipkin"}},
			hasError: true,
		},
		{
			name:     "invalid sample ratio",
			config:   FileConfig{Tracing: TracingConfig{Exporter: "stdout", SampleRatio: 2}},
			hasError: true,
		},
		{
			name: "full integrations",
			config: FileConfig{
				Store:   StoreConfig{Driver: "pgx", DSN: "postgres://localhost/dstcore"},
				NATS:    NATSConfig{URL: "nats://localhost:4222"},
				Tracing: TracingConfig{Exporter: "jaeger", Endpoint: "http://localhost:14268/api/traces", SampleRatio: 0.5},
			},
			hasError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.hasError && err == nil {
				t.Error("expected validation error")
			}
			if !tt.hasError && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestIntegrationSections(t *testing.T) {
	content := `
log_format: json
server:
  auth_secret: s3cret
store:
  dsn: runs.db
nats:
  url: nats://127.0.0.1:4222
  prefix: lab
tracing:
  exporter: stdout
  sample_ratio: 0.25
`
	cfg, err := LoadFile(writeConfig(t, "config.yml", content))
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	if format, err := cfg.Format(); err != nil || format != logger.FormatJSON {
		t.Errorf("expected json format, got %v (%v)", format, err)
	}
	if cfg.Server.AuthSecret != "s3cret" {
		t.Errorf("expected auth secret, got %q", cfg.Server.AuthSecret)
	}

	if !cfg.StoreEnabled() {
		t.Error("expected store to be enabled")
	}
	sc := cfg.ToStoreConfig()
	if sc.Driver != store.DriverSQLite || sc.DSN != "runs.db" {
		t.Errorf("unexpected store config %+v", sc)
	}

	rc := cfg.ToRelayConfig()
	if rc.URL != "nats://127.0.0.1:4222" || rc.Prefix != "lab" {
		t.Errorf("unexpected relay config %+v", rc)
	}

	tc := cfg.ToTracingConfig()
	if tc.Exporter != tracing.ExporterStdout || tc.SampleRatio != 0.25 {
		t.Errorf("unexpected tracing config %+v", tc)
	}
}

func TestStoreDisabledByDefault(t *testing.T) {
	cfg := &FileConfig{}
	if cfg.StoreEnabled() {
		t.Error("expected store to be disabled without a dsn")
	}
	if sc := (&FileConfig{Store: StoreConfig{Driver: "postgres", DSN: "postgres://x"}}).ToStoreConfig(); sc.MaxOpenConns != 0 {
		t.Errorf("expected default pool size for postgres, got %d", sc.MaxOpenConns)
	}
}
