// Package scenario は worker.Pool に負荷をかけるシナリオ実行機能を提供する。
//
// シナリオエンジンはプールを作成し、複数のゴルーチンから並行にタスクを
// 投入して、全タスクの完了を待ってから結果を集計する。
//
// # 機能
//
// - シナリオ定義と実行
// - 定義済みプリセットシナリオ
// - 実行結果のレポート生成（exactly-once と FIFO 順序の検証を含む）
// - シード指定による再現可能なタスク列
//
// # プリセットシナリオ
//
// - quick: 短時間の動作確認
// - burst: 大量の空タスクを一気に投入
// - steady: 揺らぎのある実行時間のタスクを継続投入
// - ordered: 単一ワーカーでの FIFO 順序検証
// - faulty: 一定確率で panic するタスク
//
// # 使用例
//
//	config := scenario.SteadyScenario()
//	engine := scenario.New(config)
//	result, err := engine.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Report())
package scenario
