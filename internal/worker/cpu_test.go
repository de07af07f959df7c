package worker

import (
	"runtime"
	"testing"
)

func TestDefaultWorkers(t *testing.T) {
	n := DefaultWorkers()
	if n < 1 {
		t.Errorf("expected at least 1 worker, got %d", n)
	}
	if n > runtime.NumCPU() {
		t.Errorf("expected at most %d workers, got %d", runtime.NumCPU(), n)
	}
}

func TestAffinityCPUs(t *testing.T) {
	cpus := affinityCPUs()
	if runtime.GOOS != "linux" {
		if cpus != nil {
			t.Errorf("expected nil on %s, got %v", runtime.GOOS, cpus)
		}
		return
	}
	if len(cpus) != availableCPUs() {
		t.Errorf("expected %d CPUs, got %v", availableCPUs(), cpus)
	}
}
