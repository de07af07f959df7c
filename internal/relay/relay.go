package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"dstcore/internal/events"
	"dstcore/internal/logger"

	"github.com/nats-io/nats.go"
)

// DefaultPrefix は Subject の既定プレフィックス
const DefaultPrefix = "dstcore"

// Config は NATS 転送の設定
type Config struct {
	URL    string // 空なら nats.DefaultURL
	Prefix string // 空なら DefaultPrefix
	Name   string // NATS 接続名（任意）
}

// Relay はイベントバスのイベントを NATS の <prefix>.events.<type> に転送する
type Relay struct {
	nc     *nats.Conn
	prefix string
	log    *logger.Logger

	published atomic.Uint64
	failed    atomic.Uint64

	mu     sync.Mutex
	bus    *events.Bus
	ch     <-chan events.Event
	cancel context.CancelFunc
	done   chan struct{}
}

// Connect は NATS に接続する
func Connect(config Config) (*Relay, error) {
	url := config.URL
	if url == "" {
		url = nats.DefaultURL
	}
	prefix := config.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	nc, err := nats.Connect(url, func(o *nats.Options) error {
		if config.Name != "" {
			o.Name = config.Name
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	return &Relay{
		nc:     nc,
		prefix: prefix,
		log:    logger.Default,
	}, nil
}

// SetLogger はロガーを設定する
func (r *Relay) SetLogger(l *logger.Logger) {
	r.log = l
}

// Subject はイベント種別に対応する Subject を返す
func (r *Relay) Subject(t events.EventType) string {
	return r.prefix + ".events." + string(t)
}

// Start は bus を購読し、ctx がキャンセルされるか Close されるまで転送を続ける
// types を指定するとその種別だけを転送する
func (r *Relay) Start(ctx context.Context, bus *events.Bus, types ...events.EventType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch != nil {
		return
	}

	ctx, r.cancel = context.WithCancel(ctx)
	r.bus = bus
	r.ch = bus.Subscribe(types...)
	r.done = make(chan struct{})

	go r.forward(ctx, r.ch, r.done)

	r.log.Info("", "NATS relay started (%s, prefix %s)", r.nc.ConnectedUrl(), r.prefix)
}

func (r *Relay) forward(ctx context.Context, ch <-chan events.Event, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := r.Publish(ev); err != nil {
				r.log.Warn("", "NATS relay: %v", err)
			}
		}
	}
}

// Publish はイベントを1件 NATS に送る
func (r *Relay) Publish(ev events.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		r.failed.Add(1)
		return fmt.Errorf("failed to encode %s event: %w", ev.Type, err)
	}

	msg := &nats.Msg{
		Subject: r.Subject(ev.Type),
		Data:    data,
		Header:  nats.Header{},
	}
	if ev.PoolID != "" {
		msg.Header.Set("X-Pool-ID", ev.PoolID)
	}
	if ev.Data.RunID != "" {
		msg.Header.Set("X-Run-ID", ev.Data.RunID)
	}

	if err := r.nc.PublishMsg(msg); err != nil {
		r.failed.Add(1)
		return fmt.Errorf("failed to publish %s: %w", msg.Subject, err)
	}
	r.published.Add(1)
	return nil
}

// Published は送信に成功したイベント数を返す
func (r *Relay) Published() uint64 {
	return r.published.Load()
}

// Failed は送信に失敗したイベント数を返す
func (r *Relay) Failed() uint64 {
	return r.failed.Load()
}

// Close は転送を止め、未送信のメッセージをフラッシュして接続を閉じる
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		<-r.done
		r.bus.Unsubscribe(r.ch)
		// Unsubscribe 済みなので残りを読み切れば終わる
		for ev := range r.ch {
			_ = r.Publish(ev)
		}
		r.cancel = nil
	}
	r.mu.Unlock()

	if r.nc.IsClosed() {
		return nil
	}
	err := r.nc.FlushTimeout(5 * time.Second)
	r.nc.Close()
	if err != nil {
		return fmt.Errorf("failed to flush NATS connection: %w", err)
	}
	return nil
}
