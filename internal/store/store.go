package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"dstcore/internal/scenario"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound は指定した実行結果が存在しないことを表す
var ErrNotFound = errors.New("run not found")

// 対応ドライバ名
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres" // lib/pq
	DriverPgx      = "pgx"      // pgx/v5 stdlib
)

// Config は実行履歴ストアの設定
type Config struct {
	Driver          string        // 空なら sqlite3
	DSN             string        // sqlite3 ならファイルパスまたは ":memory:"
	MaxOpenConns    int           // 0でデフォルト
	ConnMaxLifetime time.Duration // 0で無期限
}

// DefaultConfig はインメモリ SQLite の設定を返す
func DefaultConfig() Config {
	return Config{
		Driver:       DriverSQLite,
		DSN:          ":memory:",
		MaxOpenConns: 1,
	}
}

// Store はシナリオ実行結果を SQL データベースに保存する
type Store struct {
	db     *sql.DB
	driver string
}

// Open はデータベースに接続し、スキーマを作成する
func Open(ctx context.Context, config Config) (*Store, error) {
	driver := config.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	switch driver {
	case DriverSQLite, DriverPostgres, DriverPgx:
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
	if config.DSN == "" {
		return nil, fmt.Errorf("store DSN cannot be empty")
	}

	db, err := sql.Open(driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	maxOpen := config.MaxOpenConns
	// インメモリ SQLite は接続ごとに別のデータベースになる
	if driver == DriverSQLite && strings.Contains(config.DSN, ":memory:") {
		maxOpen = 1
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}
	if config.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect store: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

const schema = `CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	scenario    TEXT NOT NULL,
	pool_id     TEXT NOT NULL,
	seed        TEXT NOT NULL,
	workers     INTEGER NOT NULL,
	started_at  BIGINT NOT NULL,
	duration_ns BIGINT NOT NULL,
	pushed      BIGINT NOT NULL,
	executed    BIGINT NOT NULL,
	failed      BIGINT NOT NULL,
	cancelled   BOOLEAN NOT NULL,
	result      TEXT NOT NULL
)`

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// rebind は ? プレースホルダを Postgres 形式の $n に置き換える
func (s *Store) rebind(query string) string {
	if s.driver == DriverSQLite {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Save は実行結果を保存する（同じ RunID は上書き）
func (s *Store) Save(ctx context.Context, result *scenario.Result) error {
	if result == nil || result.RunID == "" {
		return fmt.Errorf("result must have a run id")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	// seed は uint64 全域を取るので文字列で持つ
	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO runs
		(run_id, scenario, pool_id, seed, workers, started_at, duration_ns, pushed, executed, failed, cancelled, result)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id) DO UPDATE SET result = excluded.result`),
		result.RunID,
		result.ScenarioName,
		result.PoolID,
		strconv.FormatUint(result.Seed, 10),
		result.Workers,
		result.StartTime.UnixNano(),
		int64(result.Duration),
		int64(result.Pushed),
		int64(result.Executed),
		int64(result.Failed),
		result.Cancelled,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", result.RunID, err)
	}
	return nil
}

// Get は RunID の実行結果を返す
func (s *Store) Get(ctx context.Context, runID string) (*scenario.Result, error) {
	var data string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT result FROM runs WHERE run_id = ?`), runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	return decode(data)
}

// Summary は一覧表示用の実行結果の要約
type Summary struct {
	RunID     string        `json:"run_id"`
	Scenario  string        `json:"scenario"`
	PoolID    string        `json:"pool_id"`
	Seed      uint64        `json:"seed"`
	Workers   int           `json:"workers"`
	StartTime time.Time     `json:"start_time"`
	Duration  time.Duration `json:"duration_ns"`
	Pushed    uint64        `json:"pushed"`
	Executed  uint64        `json:"executed"`
	Failed    uint64        `json:"failed"`
	Cancelled bool          `json:"cancelled"`
}

// List は新しい順に最大 limit 件の要約を返す（limit が0以下なら全件）
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	query := `SELECT run_id, scenario, pool_id, seed, workers, started_at, duration_ns, pushed, executed, failed, cancelled
		FROM runs ORDER BY started_at DESC, run_id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	summaries := make([]Summary, 0)
	for rows.Next() {
		var (
			sum                      Summary
			seed                     string
			started, duration        int64
			pushed, executed, failed int64
		)
		if err := rows.Scan(&sum.RunID, &sum.Scenario, &sum.PoolID, &seed, &sum.Workers,
			&started, &duration, &pushed, &executed, &failed, &sum.Cancelled); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if sum.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
			return nil, fmt.Errorf("corrupt seed for run %s: %w", sum.RunID, err)
		}
		sum.StartTime = time.Unix(0, started)
		sum.Duration = time.Duration(duration)
		sum.Pushed = uint64(pushed)
		sum.Executed = uint64(executed)
		sum.Failed = uint64(failed)
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

// Delete は実行結果を削除する
func (s *Store) Delete(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM runs WHERE run_id = ?`), runID)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

// Count は保存されている実行結果の件数を返す
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}

// Close はデータベース接続を閉じる
func (s *Store) Close() error {
	return s.db.Close()
}

func decode(data string) (*scenario.Result, error) {
	var result scenario.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &result, nil
}
