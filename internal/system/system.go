package system

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
)

// InitResourceLimits raises the open file limit. Each export holds an
// ffmpeg process with three pipes plus the asset fetches in flight.
func InitResourceLimits() {
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Printf("[!] Не удалось получить лимит файлов: %v", err)
		return
	}

	rLimit.Cur = 2048
	if rLimit.Cur > rLimit.Max {
		rLimit.Cur = rLimit.Max
	}

	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		log.Printf("[!] Не удалось установить лимит файлов: %v", err)
	}
}

// LookTool reports whether an external binary is on PATH.
func LookTool(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return path, nil
}

var (
	listingMu sync.Mutex
	listings  = map[string]string{}
)

// ffmpegListing runs `ffmpeg -<what>` once per process and caches stdout.
func ffmpegListing(ctx context.Context, what string) (string, error) {
	listingMu.Lock()
	defer listingMu.Unlock()
	if out, ok := listings[what]; ok {
		return out, nil
	}
	out, err := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-"+what).CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg -%s: %w", what, err)
	}
	listings[what] = string(out)
	return listings[what], nil
}

// HasEncoder reports whether the local ffmpeg build lists an encoder.
func HasEncoder(ctx context.Context, name string) bool {
	out, err := ffmpegListing(ctx, "encoders")
	return err == nil && containsWord(out, name)
}

func containsWord(listing, word string) bool {
	for _, line := range strings.Split(listing, "\n") {
		for _, f := range strings.Fields(line) {
			if f == word {
				return true
			}
		}
	}
	return false
}

// GetBestH264Encoder picks a hardware H.264 encoder when ffmpeg has one.
// Preference: VideoToolbox (macOS), NVENC (NVIDIA), then libx264.
func GetBestH264Encoder(ctx context.Context) string {
	for _, name := range []string{"h264_videotoolbox", "h264_nvenc"} {
		if HasEncoder(ctx, name) {
			return name
		}
	}
	return "libx264"
}

// DefaultQuality returns the quality value used when none is configured.
// For VideoToolbox it is a bitrate in 100 kbit/s units, for the rest a
// constant-quality level.
func DefaultQuality(encoder string) int {
	switch encoder {
	case "h264_videotoolbox":
		return 75
	case "h264_nvenc":
		return 28
	case "libvpx-vp9":
		return 32
	default:
		return 23
	}
}

// QualityArgs maps a quality value to encoder flags.
func QualityArgs(encoder string, quality int) []string {
	switch encoder {
	case "h264_videotoolbox":
		// VideoToolbox does not take -q:v everywhere; use a bitrate.
		return []string{"-b:v", fmt.Sprintf("%dk", quality*100)}
	case "h264_nvenc":
		return []string{"-cq", strconv.Itoa(quality)}
	case "libvpx-vp9":
		return []string{"-crf", strconv.Itoa(quality), "-b:v", "0", "-row-mt", "1"}
	default: // libx264
		return []string{"-crf", strconv.Itoa(quality), "-preset", "medium"}
	}
}

// ProbeVideoSize returns the pixel size of the first video stream.
func ProbeVideoSize(ctx context.Context, path string) (int, int, error) {
	out, err := ffprobe(ctx, path, "-select_streams", "v:0", "-show_entries", "stream=width,height", "-of", "csv=s=x:p=0")
	if err != nil {
		return 0, 0, err
	}
	var w, h int
	if _, err := fmt.Sscanf(out, "%dx%d", &w, &h); err != nil {
		return 0, 0, fmt.Errorf("parse ffprobe size %q: %w", out, err)
	}
	return w, h, nil
}

// ProbeDuration returns the container duration in seconds.
func ProbeDuration(ctx context.Context, path string) (float64, error) {
	out, err := ffprobe(ctx, path, "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1")
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe duration %q: %w", out, err)
	}
	return d, nil
}

func ffprobe(ctx context.Context, path string, args ...string) (string, error) {
	full := append([]string{"-v", "error"}, args...)
	full = append(full, path)
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "ffprobe", full...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(string(out)), nil
}
