package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

// poolCollector は実行中シナリオのプールのメトリクスをスクレイプ時に公開する
// プールは実行ごとに作り直されるため、Describe を空にして unchecked collector として登録する
type poolCollector struct {
	server *Server
}

func (c *poolCollector) Describe(chan<- *prometheus.Desc) {}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	c.server.mu.RLock()
	engine := c.server.engine
	c.server.mu.RUnlock()

	if engine == nil {
		return
	}
	if pool := engine.Pool(); pool != nil {
		pool.Collector().Collect(ch)
	}
}
