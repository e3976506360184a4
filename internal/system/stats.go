package system

import (
	"context"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// HostStats is a point-in-time view of the machine and this process.
type HostStats struct {
	CPUs          int
	CPUPercent    float64 // whole machine, since the previous sample
	MemTotal      uint64
	MemUsedPct    float64
	ProcessRSS    uint64
	ProcessCPUPct float64
}

// SampleHost collects host and process statistics. Fields that cannot be
// read on this platform stay zero; the first error is returned alongside.
func SampleHost(ctx context.Context) (HostStats, error) {
	var s HostStats
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	n, err := cpu.CountsWithContext(ctx, true)
	note(err)
	s.CPUs = n

	if pct, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	} else {
		note(err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		s.MemTotal = vm.Total
		s.MemUsedPct = vm.UsedPercent
	} else {
		note(err)
	}

	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfoWithContext(ctx); err == nil {
			s.ProcessRSS = mi.RSS
		} else {
			note(err)
		}
		if pct, err := p.CPUPercentWithContext(ctx); err == nil {
			s.ProcessCPUPct = pct
		} else {
			note(err)
		}
	} else {
		note(err)
	}

	if firstErr != nil {
		return s, fmt.Errorf("host stats: %w", firstErr)
	}
	return s, nil
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
