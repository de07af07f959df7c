package worker

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument は nil タスクなど不正な引数を表す
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState はティアダウン開始後の Push を表す
	ErrInvalidState = errors.New("pool is not running")
	// ErrResourceExhausted はワーカー数が MaxWorkers を超えたことを表す
	ErrResourceExhausted = errors.New("resource exhausted")
	// ErrTaskExited はタスクが runtime.Goexit などで戻らずに終了したことを表す
	ErrTaskExited = errors.New("task exited without returning")
)

// TaskError はタスク実行中に発生した panic、または Goexit による中断を表す
type TaskError struct {
	Worker int    // panic したワーカーの番号
	Value  any    // recover() が返した値（Goexit なら ErrTaskExited）
	Stack  []byte // panic 時点のスタックトレース
}

func (e *TaskError) Error() string {
	if e.Value == ErrTaskExited {
		return ErrTaskExited.Error()
	}
	return fmt.Sprintf("task panicked: %v", e.Value)
}

// Unwrap は panic 値が error の場合にそれを返す
func (e *TaskError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
