package system

import (
	"context"
	"reflect"
	"testing"
)

func TestQualityArgs(t *testing.T) {
	tests := []struct {
		encoder string
		quality int
		want    []string
	}{
		{"h264_videotoolbox", 75, []string{"-b:v", "7500k"}},
		{"h264_nvenc", 28, []string{"-cq", "28"}},
		{"libx264", 23, []string{"-crf", "23", "-preset", "medium"}},
		{"libvpx-vp9", 32, []string{"-crf", "32", "-b:v", "0", "-row-mt", "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.encoder, func(t *testing.T) {
			if got := QualityArgs(tt.encoder, tt.quality); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("QualityArgs = %v, want %v", got, tt.want)
			}
			if DefaultQuality(tt.encoder) != tt.quality {
				t.Errorf("DefaultQuality = %d, want %d", DefaultQuality(tt.encoder), tt.quality)
			}
		})
	}
}

func TestContainsWord(t *testing.T) {
	listing := " V....D libx264              libx264 H.264 / AVC\n V....D h264_nvenc           NVIDIA NVENC"
	if !containsWord(listing, "h264_nvenc") {
		t.Error("h264_nvenc not found")
	}
	if containsWord(listing, "h264") {
		t.Error("partial name matched")
	}
}

func TestFramePool(t *testing.T) {
	p := NewFramePool()
	a := p.Get(64, 36)
	if a.Bounds().Dx() != 64 || a.Bounds().Dy() != 36 {
		t.Fatalf("bounds = %v", a.Bounds())
	}
	p.Put(a)
	b := p.Get(32, 32)
	if b.Bounds().Dx() != 32 {
		t.Errorf("pool mixed sizes: %v", b.Bounds())
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[uint64]string{
		512:             "512 B",
		2048:            "2.0 KiB",
		5 * 1024 * 1024: "5.0 MiB",
	}
	for n, want := range tests {
		if got := FormatBytes(n); got != want {
			t.Errorf("FormatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestSampleHost(t *testing.T) {
	s, err := SampleHost(context.Background())
	if err != nil {
		t.Logf("partial stats: %v", err)
	}
	if s.CPUs <= 0 && err == nil {
		t.Errorf("no CPUs reported: %+v", s)
	}
	t.Logf("host: %+v", s)
}
