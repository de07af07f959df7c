package scenario

import (
	"time"

	"dstcore/internal/worker"
)

// poolWith は workers 個のワーカーを持つデフォルトのプール設定を返す
func poolWith(workers int) worker.PoolConfig {
	config := worker.DefaultPoolConfig()
	config.Workers = workers
	return config
}

// QuickScenario はクイックテスト用シナリオを返す
// 短時間での動作確認用
func QuickScenario() Config {
	return Config{
		Name:           "quick",
		Description:    "Quick test for verification",
		Pool:           poolWith(2),
		Pushers:        2,
		TasksPerPusher: 50,
		TaskTime:       time.Millisecond,
	}
}

// BurstScenario は大量の空タスクを一気に投入するシナリオを返す
// CPU数のワーカー、キューの伸長と排出を確認する
func BurstScenario() Config {
	return Config{
		Name:           "burst",
		Description:    "Many pushers flooding the queue with empty tasks",
		Pool:           worker.DefaultPoolConfig(),
		Pushers:        16,
		TasksPerPusher: 2000,
	}
}

// SteadyScenario は揺らぎのある実行時間のタスクを流し続けるシナリオを返す
func SteadyScenario() Config {
	return Config{
		Name:           "steady",
		Description:    "Steady load with jittered task durations",
		Pool:           poolWith(4),
		Pushers:        4,
		TasksPerPusher: 250,
		TaskTime:       5 * time.Millisecond,
		TaskJitter:     2 * time.Millisecond,
	}
}

// OrderedScenario は単一ワーカーで FIFO 順序を検証するシナリオを返す
func OrderedScenario() Config {
	return Config{
		Name:           "ordered",
		Description:    "Single worker FIFO ordering check",
		Pool:           poolWith(1),
		Pushers:        1,
		TasksPerPusher: 500,
		CheckOrder:     true,
	}
}

// FaultyScenario は一定確率で panic するタスクを流すシナリオを返す
// ワーカーが panic を隔離して処理を続けることを確認する
func FaultyScenario() Config {
	return Config{
		Name:           "faulty",
		Description:    "Tasks panic at random; workers must survive",
		Pool:           poolWith(4),
		Pushers:        4,
		TasksPerPusher: 200,
		TaskTime:       time.Millisecond,
		FailRate:       0.1,
	}
}

var presets = map[string]func() Config{
	"quick":   QuickScenario,
	"burst":   BurstScenario,
	"steady":  SteadyScenario,
	"ordered": OrderedScenario,
	"faulty":  FaultyScenario,
}

// GetPreset は名前からプリセットシナリオを取得する
func GetPreset(name string) (Config, bool) {
	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return Config{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	return []string{"quick", "burst", "steady", "ordered", "faulty"}
}
