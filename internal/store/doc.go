// Package store はシナリオ実行結果の履歴を SQL データベースに保存する。
//
// database/sql 経由で SQLite (mattn/go-sqlite3)、PostgreSQL (lib/pq, pgx) に対応する。
//
//	s, err := store.Open(ctx, store.Config{Driver: "sqlite3", DSN: "runs.db"})
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	_ = s.Save(ctx, result)
//	runs, _ := s.List(ctx, 20)
package store
