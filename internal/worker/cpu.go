package worker

import "runtime"

// DefaultWorkers はこのプロセスが利用できる CPU 数を返す（最低1）
// Linux ではスケジューラのアフィニティマスクを参照する
func DefaultWorkers() int {
	if n := availableCPUs(); n > 0 {
		return n
	}
	return max(runtime.NumCPU(), 1)
}
