//go:build !linux

package worker

import (
	"errors"
	"runtime"
)

var errPinUnsupported = errors.New("cpu pinning is only supported on linux")

func availableCPUs() int {
	return runtime.NumCPU()
}

func affinityCPUs() []int {
	return nil
}

func pinThread(int) error {
	return errPinUnsupported
}
