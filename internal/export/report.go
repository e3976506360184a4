package export

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/scene"
	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/system"
)

func (e *VideoExporter) report(ctx context.Context, p *scene.Project, res *Result) {
	host, err := system.SampleHost(ctx)
	if err != nil {
		e.logger().Debug("host stats incomplete", "error", err)
	}
	fps := 0.0
	if secs := res.Elapsed.Seconds(); secs > 0 {
		fps = float64(res.Frames) / secs
	}

	out := e.ReportOut
	if out == nil {
		out = os.Stdout
	}
	fmt.Fprintf(out,
		"--- [PERFORMANCE REPORT] ---\n"+
			"Project: %s\n"+
			"Scenes: %d | Frames: %d | Degraded: %d\n"+
			"Video Length: %.2fs\n"+
			"Total Time: %.2fs\n"+
			"Effective FPS: %.2f\n"+
			"Host: %d CPU @ %.1f%% | RAM %s (%.1f%% used)\n"+
			"Process: %.1f%% CPU | RSS %s\n"+
			"----------------------------\n",
		p.Title, len(p.Scenes), res.Frames, res.DegradedFrames,
		res.Duration, res.Elapsed.Seconds(), fps,
		host.CPUs, host.CPUPercent, system.FormatBytes(host.MemTotal), host.MemUsedPct,
		host.ProcessCPUPct, system.FormatBytes(host.ProcessRSS),
	)

	if e.BenchmarkLog == "" {
		return
	}
	entry := fmt.Sprintf("[%s] Project: %s | Scenes: %d | Frames: %d | Total: %.2fs | FPS: %.2f | RSS: %s\n",
		time.Now().Format("2006-01-02 15:04:05"),
		p.Title,
		len(p.Scenes),
		res.Frames,
		res.Elapsed.Seconds(),
		fps,
		system.FormatBytes(host.ProcessRSS),
	)
	f, err := os.OpenFile(e.BenchmarkLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		e.logger().Warn("benchmark log not written", "path", e.BenchmarkLog, "error", err)
		return
	}
	defer f.Close()
	if _, err := f.WriteString(entry); err != nil {
		e.logger().Warn("benchmark log not written", "path", e.BenchmarkLog, "error", err)
	}
}
