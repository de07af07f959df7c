package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dstcore/internal/logger"
	"dstcore/internal/relay"
	"dstcore/internal/scenario"
	"dstcore/internal/store"
	"dstcore/internal/tracing"
	"dstcore/internal/worker"

	"gopkg.in/yaml.v3"
)

// DefaultServerAddr は API サーバーのデフォルト待受アドレス
const DefaultServerAddr = ":8080"

// FileConfig は設定ファイルの構造
type FileConfig struct {
	LogLevel  string         `yaml:"log_level" json:"log_level"`
	LogFormat string         `yaml:"log_format" json:"log_format"`
	Pool      PoolConfig     `yaml:"pool" json:"pool"`
	Scenario  ScenarioConfig `yaml:"scenario" json:"scenario"`
	Server    ServerConfig   `yaml:"server" json:"server"`
	Store     StoreConfig    `yaml:"store" json:"store"`
	NATS      NATSConfig     `yaml:"nats" json:"nats"`
	Tracing   TracingConfig  `yaml:"tracing" json:"tracing"`
}

// PoolConfig はワーカープール設定
type PoolConfig struct {
	Workers           int  `yaml:"workers" json:"workers"` // 0でCPU数
	PinWorkers        bool `yaml:"pin_workers" json:"pin_workers"`
	MaxLatencySamples int  `yaml:"max_latency_samples" json:"max_latency_samples"`
}

// ScenarioConfig はシナリオ設定
type ScenarioConfig struct {
	Preset         string  `yaml:"preset" json:"preset"`
	Name           string  `yaml:"name" json:"name"`
	Description    string  `yaml:"description" json:"description"`
	Pushers        int     `yaml:"pushers" json:"pushers"`
	TasksPerPusher int     `yaml:"tasks_per_pusher" json:"tasks_per_pusher"`
	TaskTime       string  `yaml:"task_time" json:"task_time"`
	TaskJitter     string  `yaml:"task_jitter" json:"task_jitter"`
	FailRate       float64 `yaml:"fail_rate" json:"fail_rate"`
	Seed           uint64  `yaml:"seed" json:"seed"`
	CheckOrder     bool    `yaml:"check_order" json:"check_order"`
}

// ServerConfig は API サーバー設定
type ServerConfig struct {
	Enabled    bool   `yaml:"enabled" json:"enabled"`
	Addr       string `yaml:"addr" json:"addr"`
	AuthSecret string `yaml:"auth_secret" json:"auth_secret"` // 空なら認証なし
}

// StoreConfig は実行履歴の保存先設定（dsn が空なら保存しない）
type StoreConfig struct {
	Driver string `yaml:"driver" json:"driver"` // sqlite3, postgres, pgx
	DSN    string `yaml:"dsn" json:"dsn"`
}

// NATSConfig はイベント転送設定（url が空なら転送しない）
type NATSConfig struct {
	URL    string `yaml:"url" json:"url"`
	Prefix string `yaml:"prefix" json:"prefix"`
}

// TracingConfig はトレース出力設定（exporter が空なら無効）
type TracingConfig struct {
	Exporter    string  `yaml:"exporter" json:"exporter"` // stdout, zipkin, jaeger
	Endpoint    string  `yaml:"endpoint" json:"endpoint"`
	SampleRatio float64 `yaml:"sample_ratio" json:"sample_ratio"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// ToPoolConfig は pool セクションを worker.PoolConfig に変換する
func (f *FileConfig) ToPoolConfig() worker.PoolConfig {
	return f.applyPool(worker.DefaultPoolConfig())
}

// applyPool は pool セクションで指定された値だけを base に上書きする
func (f *FileConfig) applyPool(base worker.PoolConfig) worker.PoolConfig {
	p := f.Pool
	if p.Workers > 0 {
		base.Workers = p.Workers
	}
	if p.PinWorkers {
		base.PinWorkers = true
	}
	if p.MaxLatencySamples > 0 {
		base.Metrics.MaxLatencySamples = p.MaxLatencySamples
	}
	return base
}

// ToScenarioConfig はFileConfigをscenario.Configに変換する
// preset が指定されていればそれを土台にする
func (f *FileConfig) ToScenarioConfig() (scenario.Config, error) {
	sc := f.Scenario

	// デフォルト値の設定
	config := scenario.DefaultConfig()
	if sc.Preset != "" {
		preset, ok := scenario.GetPreset(sc.Preset)
		if !ok {
			return config, fmt.Errorf("unknown preset: %s", sc.Preset)
		}
		config = preset
	}

	config.Pool = f.applyPool(config.Pool)

	if sc.Name != "" {
		config.Name = sc.Name
	}
	if sc.Description != "" {
		config.Description = sc.Description
	}
	if sc.Pushers > 0 {
		config.Pushers = sc.Pushers
	}
	if sc.TasksPerPusher > 0 {
		config.TasksPerPusher = sc.TasksPerPusher
	}
	if sc.TaskTime != "" {
		d, err := time.ParseDuration(sc.TaskTime)
		if err != nil {
			return config, fmt.Errorf("invalid task_time: %w", err)
		}
		config.TaskTime = d
	}
	if sc.TaskJitter != "" {
		d, err := time.ParseDuration(sc.TaskJitter)
		if err != nil {
			return config, fmt.Errorf("invalid task_jitter: %w", err)
		}
		config.TaskJitter = d
	}
	if sc.FailRate > 0 {
		config.FailRate = sc.FailRate
	}
	if sc.Seed != 0 {
		config.Seed = sc.Seed
	}
	if sc.CheckOrder {
		config.CheckOrder = true
	}

	return config, nil
}

// Level は log_level をパースする（未指定なら Info）
func (f *FileConfig) Level() (logger.Level, error) {
	return logger.ParseLevel(f.LogLevel)
}

// Format は log_format をパースする（未指定なら text）
func (f *FileConfig) Format() (logger.Format, error) {
	return logger.ParseFormat(f.LogFormat)
}

// ServerAddr は API サーバーの待受アドレスを返す
func (f *FileConfig) ServerAddr() string {
	if f.Server.Addr == "" {
		return DefaultServerAddr
	}
	return f.Server.Addr
}

// StoreEnabled は実行履歴の保存が有効かどうかを返す
func (f *FileConfig) StoreEnabled() bool {
	return f.Store.DSN != ""
}

// ToStoreConfig は store セクションを store.Config に変換する
func (f *FileConfig) ToStoreConfig() store.Config {
	config := store.DefaultConfig()
	if f.Store.Driver != "" {
		config.Driver = f.Store.Driver
	}
	config.DSN = f.Store.DSN
	if config.Driver != store.DriverSQLite {
		config.MaxOpenConns = 0
	}
	return config
}

// ToRelayConfig は nats セクションを relay.Config に変換する
func (f *FileConfig) ToRelayConfig() relay.Config {
	return relay.Config{
		URL:    f.NATS.URL,
		Prefix: f.NATS.Prefix,
		Name:   "dstcore",
	}
}

// ToTracingConfig は tracing セクションを tracing.Config に変換する
func (f *FileConfig) ToTracingConfig() tracing.Config {
	return tracing.Config{
		Exporter:    f.Tracing.Exporter,
		Endpoint:    f.Tracing.Endpoint,
		SampleRatio: f.Tracing.SampleRatio,
	}
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	if _, err := f.Level(); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if _, err := f.Format(); err != nil {
		return fmt.Errorf("log_format: %w", err)
	}

	if f.Pool.Workers < 0 {
		return fmt.Errorf("pool.workers must be non-negative")
	}
	if f.Pool.Workers > worker.MaxWorkers {
		return fmt.Errorf("pool.workers must be at most %d", worker.MaxWorkers)
	}
	if f.Pool.MaxLatencySamples < 0 {
		return fmt.Errorf("pool.max_latency_samples must be non-negative")
	}

	sc := f.Scenario
	if sc.Preset != "" {
		if _, ok := scenario.GetPreset(sc.Preset); !ok {
			return fmt.Errorf("scenario.preset %q is not a known preset", sc.Preset)
		}
	}
	if sc.Pushers < 0 {
		return fmt.Errorf("scenario.pushers must be non-negative")
	}
	if sc.TasksPerPusher < 0 {
		return fmt.Errorf("scenario.tasks_per_pusher must be non-negative")
	}
	if sc.FailRate < 0 || sc.FailRate > 1 {
		return fmt.Errorf("scenario.fail_rate must be between 0 and 1")
	}
	if sc.TaskTime != "" {
		if _, err := time.ParseDuration(sc.TaskTime); err != nil {
			return fmt.Errorf("scenario.task_time: %w", err)
		}
	}
	if sc.TaskJitter != "" {
		if _, err := time.ParseDuration(sc.TaskJitter); err != nil {
			return fmt.Errorf("scenario.task_jitter: %w", err)
		}
	}

	switch f.Store.Driver {
	case "", store.DriverSQLite, store.DriverPostgres, store.DriverPgx:
	default:
		return fmt.Errorf("store.driver %q is not supported", f.Store.Driver)
	}

	switch f.Tracing.Exporter {
	case tracing.ExporterNone, tracing.ExporterStdout:
	case tracing.ExporterZipkin, tracing.ExporterJaeger:
		if f.Tracing.Endpoint == "" {
			return fmt.Errorf("tracing.endpoint is required for the %s exporter", f.Tracing.Exporter)
		}
	default:
		return fmt.Errorf("tracing.exporter %q is not supported", f.Tracing.Exporter)
	}
	if f.Tracing.SampleRatio < 0 || f.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be between 0 and 1")
	}

	return nil
}
