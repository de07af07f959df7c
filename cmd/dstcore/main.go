// Package main is the entry point for dstcore.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dstcore/internal/api"
	"dstcore/internal/config"
	"dstcore/internal/events"
	"dstcore/internal/logger"
	"dstcore/internal/relay"
	"dstcore/internal/scenario"
	"dstcore/internal/store"
	"dstcore/internal/tracing"
	"dstcore/internal/version"
	"dstcore/internal/worker"
)

// options はコマンドラインで指定された値
// 0 や空文字は「指定なし」として扱う
type options struct {
	configFile     string
	presetName     string
	workers        int
	pin            bool
	pushers        int
	tasksPerPusher int
	taskTime       time.Duration
	taskJitter     time.Duration
	failRate       float64
	seed           uint64
	logLevel       string
	logFormat      string
	serverAddr     string
	authSecret     string
	storeDriver    string
	storeDSN       string
	natsURL        string
	traceExporter  string
	traceEndpoint  string
}

func main() {
	var opts options

	// フラグ定義
	flag.StringVar(&opts.configFile, "config", "", "設定ファイルパス (YAML/JSON)")
	flag.StringVar(&opts.presetName, "preset", "", "プリセットシナリオ名 (quick, burst, steady, ordered, faulty)")
	flag.IntVar(&opts.workers, "workers", 0, "ワーカー数 (0でCPU数)")
	flag.BoolVar(&opts.pin, "pin", false, "ワーカーをCPUに固定する (Linuxのみ)")
	flag.IntVar(&opts.pushers, "pushers", 0, "タスクを投入する goroutine 数")
	flag.IntVar(&opts.tasksPerPusher, "tasks", 0, "pusher ごとのタスク数")
	flag.DurationVar(&opts.taskTime, "task-time", 0, "タスクの実行時間 (例: 1ms)")
	flag.DurationVar(&opts.taskJitter, "task-jitter", 0, "タスク実行時間の揺らぎ (例: 500us)")
	flag.Float64Var(&opts.failRate, "fail-rate", 0, "タスクが panic する確率 (0-1)")
	flag.Uint64Var(&opts.seed, "seed", 0, "乱数シード (0で時刻から生成)")
	flag.StringVar(&opts.logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")
	flag.StringVar(&opts.logFormat, "log-format", "", "ログ形式 (text, json)")
	listPresets := flag.Bool("list-presets", false, "利用可能なプリセットを表示")
	showVersion := flag.Bool("version", false, "バージョンを表示")
	serverMode := flag.Bool("server", false, "API サーバーモードで起動")
	flag.StringVar(&opts.serverAddr, "addr", "", "サーバーアドレス (例: :8080, 0.0.0.0:3000)")
	flag.StringVar(&opts.authSecret, "auth-secret", "", "API の POST/DELETE で検証する JWT シークレット")
	printToken := flag.Duration("print-token", 0, "auth-secret で署名したトークンを指定の有効期間で発行して終了")
	flag.StringVar(&opts.storeDriver, "store-driver", "", "実行履歴の DB ドライバ (sqlite3, postgres, pgx)")
	flag.StringVar(&opts.storeDSN, "store", "", "実行履歴の保存先 DSN (例: runs.db)")
	flag.StringVar(&opts.natsURL, "nats", "", "イベントを転送する NATS の URL")
	flag.StringVar(&opts.traceExporter, "trace", "", "トレース出力 (stdout, zipkin, jaeger)")
	flag.StringVar(&opts.traceEndpoint, "trace-endpoint", "", "zipkin/jaeger のコレクター URL")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `dstcore - Worker Pool Load Harness

Usage:
  dstcore [options]

Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # プリセットシナリオを実行
  dstcore --preset quick

  # 設定ファイルから実行
  dstcore --config scenario.yaml

  # フラグでカスタマイズ
  dstcore --preset steady --workers 8 --tasks 1000 --seed 42

  # プリセット一覧を表示
  dstcore --list-presets

  # API サーバーモードで起動（履歴を SQLite に保存）
  dstcore --server --addr :3000 --store runs.db

  # イベントを NATS に流し、トレースを標準出力に出す
  dstcore --preset faulty --nats nats://127.0.0.1:4222 --trace stdout
`)
	}

	flag.Parse()

	// バージョン表示
	if *showVersion {
		fmt.Printf("dstcore version %s\n", version.Current)
		return
	}

	// プリセット一覧表示
	if *listPresets {
		printPresets()
		return
	}

	fileConfig, err := loadFileConfig(opts.configFile)
	if err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}

	// シナリオ設定の決定
	scenarioConfig, err := buildScenarioConfig(fileConfig, opts)
	if err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}

	if fileConfig == nil {
		fileConfig = &config.FileConfig{}
	}
	applyFlags(fileConfig, opts)

	// トークン発行
	if *printToken > 0 {
		token, err := api.NewToken(fileConfig.Server.AuthSecret, "dstcore-cli", *printToken)
		if err != nil {
			logger.Error("", "トークン発行エラー: %v", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	if err := applyLogging(fileConfig, opts.logLevel); err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}

	if err := run(fileConfig, scenarioConfig, *serverMode, opts.serverAddr); err != nil {
		logger.Error("", "実行エラー: %v", err)
		os.Exit(1)
	}
}

// applyFlags は連携先のフラグを設定ファイルの値より優先させる
func applyFlags(fileConfig *config.FileConfig, opts options) {
	if opts.logFormat != "" {
		fileConfig.LogFormat = opts.logFormat
	}
	if opts.authSecret != "" {
		fileConfig.Server.AuthSecret = opts.authSecret
	}
	if opts.storeDriver != "" {
		fileConfig.Store.Driver = opts.storeDriver
	}
	if opts.storeDSN != "" {
		fileConfig.Store.DSN = opts.storeDSN
	}
	if opts.natsURL != "" {
		fileConfig.NATS.URL = opts.natsURL
	}
	if opts.traceExporter != "" {
		fileConfig.Tracing.Exporter = opts.traceExporter
	}
	if opts.traceEndpoint != "" {
		fileConfig.Tracing.Endpoint = opts.traceEndpoint
	}
}

// run はトレース、履歴、イベント転送を準備してからシナリオまたはサーバーを実行する
func run(fileConfig *config.FileConfig, scenarioConfig scenario.Config, serverMode bool, serverAddr string) error {
	if err := fileConfig.Validate(); err != nil {
		return fmt.Errorf("設定検証エラー: %w", err)
	}

	shutdownTracing, err := tracing.Install(fileConfig.ToTracingConfig())
	if err != nil {
		return fmt.Errorf("トレース初期化エラー: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("", "トレース終了エラー: %v", err)
		}
	}()

	var runStore *store.Store
	if fileConfig.StoreEnabled() {
		runStore, err = store.Open(context.Background(), fileConfig.ToStoreConfig())
		if err != nil {
			return err
		}
		defer runStore.Close()
	}

	bus := events.NewBus()
	defer bus.Close()

	var natsRelay *relay.Relay
	if fileConfig.NATS.URL != "" {
		natsRelay, err = relay.Connect(fileConfig.ToRelayConfig())
		if err != nil {
			return err
		}
		defer func() {
			if err := natsRelay.Close(); err != nil {
				logger.Warn("", "NATS 切断エラー: %v", err)
			}
		}()
	}

	// API サーバーモード
	if serverMode || fileConfig.Server.Enabled {
		addr := serverAddr
		if addr == "" {
			addr = fileConfig.ServerAddr()
		}
		return runServer(addr, scenarioConfig, fileConfig.Server.AuthSecret, runStore, natsRelay)
	}

	// シナリオ実行
	if natsRelay != nil {
		natsRelay.Start(context.Background(), bus)
	}
	return runScenario(scenarioConfig, bus, runStore)
}

// loadFileConfig は設定ファイルを読み込む（未指定なら nil）
func loadFileConfig(path string) (*config.FileConfig, error) {
	if path == "" {
		return nil, nil
	}
	fileConfig, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
	}
	return fileConfig, nil
}

// applyLogging はデフォルトロガーの形式とレベルを設定する
// レベルはフラグ、設定ファイルの順で決める
func applyLogging(fileConfig *config.FileConfig, flagLevel string) error {
	format, err := fileConfig.Format()
	if err != nil {
		return err
	}
	logger.Default.SetFormat(format)

	if flagLevel != "" {
		level, err := logger.ParseLevel(flagLevel)
		if err != nil {
			return err
		}
		logger.Default.SetLevel(level)
		return nil
	}
	level, err := fileConfig.Level()
	if err != nil {
		return err
	}
	logger.Default.SetLevel(level)
	return nil
}

// buildScenarioConfig はシナリオ設定を構築する
// 設定ファイル、プリセット、デフォルト（quick）の順に土台を選び、フラグで上書きする
func buildScenarioConfig(fileConfig *config.FileConfig, opts options) (scenario.Config, error) {
	var cfg scenario.Config

	switch {
	case opts.presetName != "":
		// 1. プリセットから読み込み
		preset, ok := scenario.GetPreset(opts.presetName)
		if !ok {
			return cfg, fmt.Errorf("不明なプリセット: %s (利用可能: %v)", opts.presetName, scenario.ListPresets())
		}
		cfg = preset
		if fileConfig != nil {
			cfg.Pool = fileConfig.ToPoolConfig()
			if preset.Pool.Workers > 0 && fileConfig.Pool.Workers == 0 {
				cfg.Pool.Workers = preset.Pool.Workers
			}
		}
	case fileConfig != nil:
		// 2. 設定ファイルから読み込み
		var err error
		cfg, err = fileConfig.ToScenarioConfig()
		if err != nil {
			return cfg, fmt.Errorf("設定変換エラー: %w", err)
		}
	default:
		// 3. デフォルト（quickシナリオ）
		cfg = scenario.QuickScenario()
	}

	// フラグでオーバーライド
	if opts.workers > 0 {
		cfg.Pool.Workers = opts.workers
	}
	if opts.pin {
		cfg.Pool.PinWorkers = true
	}
	if opts.pushers > 0 {
		cfg.Pushers = opts.pushers
	}
	if opts.tasksPerPusher > 0 {
		cfg.TasksPerPusher = opts.tasksPerPusher
	}
	if opts.taskTime > 0 {
		cfg.TaskTime = opts.taskTime
	}
	if opts.taskJitter > 0 {
		cfg.TaskJitter = opts.taskJitter
	}
	if opts.failRate > 0 {
		cfg.FailRate = opts.failRate
	}
	if opts.seed != 0 {
		cfg.Seed = opts.seed
	}

	return cfg, cfg.Validate()
}

// signalContext は SIGINT/SIGTERM でキャンセルされる context を返す
func signalContext(msg string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			fmt.Println(msg)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// runScenario はシナリオを実行する
// runStore が nil でなければ結果を保存する
func runScenario(cfg scenario.Config, bus *events.Bus, runStore *store.Store) error {
	workers := cfg.Pool.Workers
	if workers < 1 {
		workers = worker.DefaultWorkers()
	}

	fmt.Println("dstcore - Worker Pool Load Harness")
	fmt.Println("====================================================")
	fmt.Printf("Scenario: %s\n", cfg.Name)
	fmt.Printf("Workers: %d (pinned: %v), Pushers: %d\n", workers, cfg.Pool.PinWorkers, cfg.Pushers)
	fmt.Printf("Tasks: %d, Task time: %v ± %v\n", cfg.TotalTasks(), cfg.TaskTime, cfg.TaskJitter)
	fmt.Printf("Fail rate: %.2f%%\n", cfg.FailRate*100)
	fmt.Println("====================================================")
	fmt.Println()

	ctx, cancel := signalContext("\n中断シグナルを受信、シナリオを終了中...")
	defer cancel()

	// シナリオ実行
	engine := scenario.New(cfg)
	engine.SetEventBus(bus)
	result, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	// レポート出力
	fmt.Println(result.Report())

	if runStore != nil {
		if err := runStore.Save(context.Background(), result); err != nil {
			return err
		}
		logger.Info("", "Run %s saved", result.RunID)
	}

	return nil
}

// printPresets は利用可能なプリセットを表示する
func printPresets() {
	fmt.Println("利用可能なプリセットシナリオ:")
	fmt.Println()

	for _, name := range scenario.ListPresets() {
		preset, _ := scenario.GetPreset(name)
		fmt.Printf("  %-10s %s (%d tasks)\n", name, preset.Description, preset.TotalTasks())
	}

	fmt.Println()
	fmt.Println("使用例: dstcore --preset quick")
}

// runServer は API サーバーを起動する
func runServer(addr string, base scenario.Config, authSecret string, runStore *store.Store, natsRelay *relay.Relay) error {
	fmt.Println("dstcore - API Server")
	fmt.Println("========================")
	fmt.Printf("Starting server on http://%s\n", addr)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ctx, cancel := signalContext("\n中断シグナルを受信、サーバーを終了中...")
	defer cancel()

	server := api.NewServer(addr)
	server.SetBaseConfig(base)
	server.SetAuthSecret(authSecret)
	if runStore != nil {
		server.SetStore(runStore)
	}
	if natsRelay != nil {
		natsRelay.Start(ctx, server.EventBus())
	}
	return server.Start(ctx)
}
