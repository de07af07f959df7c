//go:build linux

package worker

import (
	"golang.org/x/sys/unix"
)

// cpuSetSize は unix.CPUSet が表現できる CPU 数
const cpuSetSize = 1024

func availableCPUs() int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return 0
	}
	return set.Count()
}

// affinityCPUs はプロセスが実行を許可されている CPU 番号の一覧を返す
func affinityCPUs() []int {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil
	}
	cpus := make([]int, 0, set.Count())
	for cpu := range cpuSetSize {
		if set.IsSet(cpu) {
			cpus = append(cpus, cpu)
		}
	}
	return cpus
}

// pinThread は呼び出し元の OS スレッドを指定 CPU に固定する
// runtime.LockOSThread 済みのゴルーチンから呼ぶこと
func pinThread(cpu int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}
