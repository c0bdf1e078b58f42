package health

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostUsage holds resource usage percentages.
type HostUsage struct {
	CPU    float64
	Memory float64
	Disk   float64
}

type HostSampler interface {
	Sample(ctx context.Context) (HostUsage, error)
}

// Host samples the local machine.
type Host struct {
	Path      string        // filesystem checked for disk usage
	CPUWindow time.Duration // cpu measurement window
}

func NewHost() *Host {
	return &Host{Path: "/", CPUWindow: time.Second}
}

func (h *Host) Sample(ctx context.Context) (HostUsage, error) {
	var u HostUsage

	pct, err := cpu.PercentWithContext(ctx, h.CPUWindow, false)
	if err != nil {
		return u, fmt.Errorf("cpu: %w", err)
	}
	if len(pct) > 0 {
		u.CPU = pct[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return u, fmt.Errorf("memory: %w", err)
	}
	u.Memory = vm.UsedPercent

	du, err := disk.UsageWithContext(ctx, h.Path)
	if err != nil {
		return u, fmt.Errorf("disk %s: %w", h.Path, err)
	}
	u.Disk = du.UsedPercent
	return u, nil
}
