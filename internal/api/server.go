package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"dstcore/internal/events"
	"dstcore/internal/logger"
	"dstcore/internal/metrics"
	"dstcore/internal/scenario"
	"dstcore/internal/store"
	"dstcore/internal/version"
	"dstcore/internal/worker"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/websocket"
)

// Server はAPIサーバー
type Server struct {
	addr string
	log  *logger.Logger
	base scenario.Config

	bus      *events.Bus
	registry *prometheus.Registry

	mu         sync.RWMutex
	running    bool
	config     scenario.Config
	engine     *scenario.Engine
	cancel     context.CancelFunc
	lastResult *scenario.Result
	lastError  string
	wsClients  map[*websocket.Conn]bool
	baseCtx    context.Context
	store      *store.Store
	authSecret []byte

	server *http.Server
}

// NewServer は新しいAPIサーバーを作成する
func NewServer(addr string) *Server {
	s := &Server{
		addr:      addr,
		log:       logger.Default,
		base:      scenario.QuickScenario(),
		bus:       events.NewBus(),
		registry:  prometheus.NewRegistry(),
		wsClients: make(map[*websocket.Conn]bool),
		baseCtx:   context.Background(),
	}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		&poolCollector{server: s},
	)
	return s
}

// SetLogger はロガーを設定する
func (s *Server) SetLogger(l *logger.Logger) {
	s.log = l
}

// SetBaseConfig は POST /api/run でプリセット未指定時に使う設定を差し替える
func (s *Server) SetBaseConfig(config scenario.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = config
}

// SetStore は実行結果の保存先を設定する
// 設定すると完了した実行が保存され、/api/runs で参照できる
func (s *Server) SetStore(st *store.Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store = st
}

// SetAuthSecret は POST/DELETE エンドポイントで検証する JWT のシークレットを設定する
// 空文字なら認証しない
func (s *Server) SetAuthSecret(secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authSecret = []byte(secret)
}

// EventBus はサーバーが購読しているイベントバスを返す
func (s *Server) EventBus() *events.Bus {
	return s.bus
}

// Handler はルーティング済みの http.Handler を返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/presets", s.handlePresets)
	mux.HandleFunc("/api/run", s.requireAuth(s.handleRun))
	mux.HandleFunc("/api/run/stop", s.requireAuth(s.handleRunStop))
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/runs/", s.handleRunByID)

	// Prometheus
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	// WebSocket
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return mux
}

// Start はサーバーを開始する
// ctx がキャンセルされると実行中のシナリオを止め、サーバーを停止する
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// バックグラウンドでイベントとステータスを配信
	go s.forwardEvents(ctx)
	go s.broadcastLoop(ctx)

	s.log.Info("", "API Server starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	Version      string        `json:"version"`
	Running      bool          `json:"running"`
	ScenarioName string        `json:"scenario_name,omitempty"`
	Pool         *worker.Stats `json:"pool,omitempty"`
	LastRunID    string        `json:"last_run_id,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	Subscribers  int           `json:"ws_clients"`
	DroppedEvent uint64        `json:"dropped_events"`
}

func (s *Server) status() StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := StatusResponse{
		Version:      version.Current.String(),
		Running:      s.running,
		LastError:    s.lastError,
		Subscribers:  len(s.wsClients),
		DroppedEvent: s.bus.Dropped(),
	}
	if s.running {
		resp.ScenarioName = s.config.Name
	}
	if s.engine != nil {
		resp.Pool = s.engine.PoolStats()
	}
	if s.lastResult != nil {
		resp.LastRunID = s.lastResult.RunID
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.writeJSON(w, s.status())
}

// MetricsResponse はメトリクスレスポンス
// 実行中はプールの値、そうでなければ直近の実行結果を返す
type MetricsResponse struct {
	Source string            `json:"source"` // "pool", "last_run", "none"
	Pool   *metrics.Snapshot `json:"pool,omitempty"`
	Result *scenario.Result  `json:"result,omitempty"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.RLock()
	engine := s.engine
	last := s.lastResult
	s.mu.RUnlock()

	resp := MetricsResponse{Source: "none"}
	if engine != nil {
		if stats := engine.PoolStats(); stats != nil {
			resp.Source = "pool"
			resp.Pool = &stats.Metrics
		}
	}
	if resp.Pool == nil && last != nil {
		resp.Source = "last_run"
		resp.Result = last
	}

	s.writeJSON(w, resp)
}

// RunRequest はシナリオ開始リクエスト
// 0 や空文字のフィールドはプリセットの値を使う
type RunRequest struct {
	Preset         string  `json:"preset"`
	Workers        int     `json:"workers,omitempty"`
	Pushers        int     `json:"pushers,omitempty"`
	TasksPerPusher int     `json:"tasks_per_pusher,omitempty"`
	TaskTime       string  `json:"task_time,omitempty"`
	FailRate       float64 `json:"fail_rate,omitempty"`
	Seed           uint64  `json:"seed,omitempty"`
}

// RunResponse はシナリオ開始レスポンス
type RunResponse struct {
	Status   string `json:"status"`
	Scenario string `json:"scenario"`
	Tasks    int    `json:"tasks"`
}

func (s *Server) buildConfig(req RunRequest) (scenario.Config, error) {
	s.mu.RLock()
	config := s.base
	s.mu.RUnlock()

	if req.Preset != "" {
		preset, ok := scenario.GetPreset(req.Preset)
		if !ok {
			return config, fmt.Errorf("unknown preset: %s", req.Preset)
		}
		config = preset
	}

	// オーバーライド
	if req.Workers > 0 {
		config.Pool.Workers = req.Workers
	}
	if req.Pushers > 0 {
		config.Pushers = req.Pushers
	}
	if req.TasksPerPusher > 0 {
		config.TasksPerPusher = req.TasksPerPusher
	}
	if req.TaskTime != "" {
		d, err := time.ParseDuration(req.TaskTime)
		if err != nil {
			return config, err
		}
		config.TaskTime = d
	}
	if req.FailRate > 0 {
		config.FailRate = req.FailRate
	}
	if req.Seed != 0 {
		config.Seed = req.Seed
	}
	return config, config.Validate()
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	config, err := s.buildConfig(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		http.Error(w, "Scenario already running", http.StatusConflict)
		return
	}

	engine := scenario.New(config)
	engine.SetEventBus(s.bus)
	engine.SetLogger(s.log)

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.config = config
	s.engine = engine
	s.cancel = cancel
	s.running = true
	s.lastError = ""
	s.mu.Unlock()

	// バックグラウンドで実行
	go s.runScenario(ctx, cancel, engine)

	s.writeJSONStatus(w, http.StatusAccepted, RunResponse{Status: "started", Scenario: config.Name, Tasks: config.TotalTasks()})
}

func (s *Server) runScenario(ctx context.Context, cancel context.CancelFunc, engine *scenario.Engine) {
	defer cancel()

	result, err := engine.Run(ctx)

	// running を落とす前に保存し、完了後の /api/runs に必ず含める
	if st := s.runStore(); st != nil && result != nil {
		saveCtx, cancelSave := context.WithTimeout(context.Background(), 5*time.Second)
		if saveErr := st.Save(saveCtx, result); saveErr != nil {
			s.log.Error("", "Failed to save run %s: %v", result.RunID, saveErr)
		}
		cancelSave()
	}

	s.mu.Lock()
	s.running = false
	s.cancel = nil
	if result != nil {
		s.lastResult = result
	}
	if err != nil {
		s.lastError = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("", "Scenario failed: %v", err)
	} else {
		s.log.Info("", "Scenario completed: %d tasks executed", result.Executed)
	}

	s.broadcast(map[string]any{
		"type":   "scenario_complete",
		"result": result,
	})
}

func (s *Server) handleRunStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	if !s.running || s.cancel == nil {
		s.mu.Unlock()
		http.Error(w, "No scenario running", http.StatusBadRequest)
		return
	}
	s.cancel()
	s.mu.Unlock()

	s.writeJSON(w, map[string]string{"status": "stop requested"})
}

// PresetInfo はプリセット情報
type PresetInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Workers     int    `json:"workers"`
	Tasks       int    `json:"tasks"`
}

func (s *Server) handlePresets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var presets []PresetInfo
	for _, name := range scenario.ListPresets() {
		config, _ := scenario.GetPreset(name)
		presets = append(presets, PresetInfo{
			Name:        name,
			Description: config.Description,
			Workers:     config.Pool.Workers,
			Tasks:       config.TotalTasks(),
		})
	}

	s.writeJSON(w, presets)
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

func (s *Server) broadcast(data any) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

// forwardEvents はイベントバスのイベントを WebSocket クライアントへ転送する
func (s *Server) forwardEvents(ctx context.Context) {
	ch := s.bus.Subscribe()
	defer s.bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.broadcast(map[string]any{
				"type":  "event",
				"event": ev,
			})
		}
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := s.status()
			if !status.Running {
				continue
			}

			s.broadcast(map[string]any{
				"type":   "status",
				"status": status,
			})
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	s.writeJSONStatus(w, http.StatusOK, data)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("", "Failed to encode JSON: %v", err)
	}
}
