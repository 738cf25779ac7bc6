// Package diagnostics samples host resource usage for the scheduler's
// metrics tick and assembles the doctor report. Many concurrent agents mean
// many node/git processes and many worktrees on disk, so CPU, memory and
// free space under the worktree base are the numbers that matter here.
package diagnostics

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/flock-cli/flock/internal/core"
)

// Collector takes CPU/memory samples. cpu.Percent with interval 0 compares
// against the previous call, so one Collector must be reused across ticks
// for meaningful numbers.
type Collector struct {
	mu sync.Mutex
}

// NewCollector returns a ready Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Sample takes one CPU/memory measurement for the metrics ring.
func (c *Collector) Sample(_ context.Context) (core.MetricSample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sample := core.MetricSample{Time: time.Now()}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		sample.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		sample.MemPercent = vm.UsedPercent
	}
	return sample, nil
}

// LoadAverages returns the 1/5/15-minute load averages, zeros where the
// platform has none.
func LoadAverages() (one, five, fifteen float64) {
	if avg, err := load.Avg(); err == nil {
		return avg.Load1, avg.Load5, avg.Load15
	}
	return 0, 0, 0
}
