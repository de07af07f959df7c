// Package logger は dstcore 全体で使うレベル付きのスレッドセーフなロガー。
//
// 各行には時刻、レベル、任意のスコープ、メッセージが入る。プールは短縮した
// プールID（"pool-1a2b3c4d"）をスコープにして出力する。
//
//	logger.Info("", "dstcore started")
//	logger.Warn("pool-1a2b3c4d", "worker %d: %v", 3, err)
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.SetFormat(logger.FormatJSON)
//	l.Debug("pool-1a2b3c4d", "worker 0 pinned to CPU 2")
//
// ParseLevel と ParseFormat は設定ファイルやフラグの文字列
// ("debug", "info", "warn", "error" / "text", "json") を変換する。
// 設定レベル未満のメッセージは捨てられる。
package logger
