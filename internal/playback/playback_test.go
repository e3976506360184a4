package playback

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/scene"
)

func project(durations ...float64) *scene.Project {
	p := &scene.Project{}
	for i, d := range durations {
		p.Scenes = append(p.Scenes, &scene.Scene{ID: string(rune('a' + i)), DurationSec: d})
	}
	return p
}

type fakeClock struct{ t time.Time }

func newFake() *fakeClock { return &fakeClock{t: time.Unix(1700000000, 0)} }

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(s float64) { f.t = f.t.Add(seconds(s)) }

func TestLocate(t *testing.T) {
	durations := []float64{3, 4}
	tests := []struct {
		t     float64
		index int
		local float64
		ended bool
	}{
		{0, 0, 0, false},
		{2.999, 0, 2.999, false},
		{3, 1, 0, false},
		{3.5, 1, 0.5, false},
		{7, 1, 4, true},
		{100, 1, 4, true},
		{-1, 0, 0, false},
	}
	for _, tt := range tests {
		index, local, ended := Locate(durations, tt.t)
		if index != tt.index || ended != tt.ended || (local-tt.local) > 1e-9 || (tt.local-local) > 1e-9 {
			t.Errorf("Locate(%v) = %d, %v, %v; want %d, %v, %v", tt.t, index, local, ended, tt.index, tt.local, tt.ended)
		}
	}
	if Total(durations) != 7 {
		t.Errorf("total = %v", Total(durations))
	}
	if i, _, _ := Locate(nil, 1); i != -1 {
		t.Errorf("empty timeline index = %d", i)
	}
}

func TestSceneForTime(t *testing.T) {
	p := project(3, 4)
	if s, local := SceneForTime(p, 3.5); s.ID != "b" || local != 0.5 {
		t.Errorf("SceneForTime(3.5) = %s, %v", s.ID, local)
	}
	if s, _ := SceneForTime(p, 7); s.ID != "b" {
		t.Errorf("end of timeline = %s, want last scene", s.ID)
	}
	if s, _ := SceneForTime(project(), 1); s != nil {
		t.Errorf("empty project = %v", s)
	}
}

func TestLocateIsMonotonic(t *testing.T) {
	durations := []float64{1.5, 2, 0.5, 6}
	prev := 0
	for ms := 0; ms <= 11000; ms += 7 {
		i, _, _ := Locate(durations, float64(ms)/1000)
		if i < prev {
			t.Fatalf("index went back from %d to %d at %dms", prev, i, ms)
		}
		prev = i
	}
	if prev != 3 {
		t.Errorf("final index = %d", prev)
	}
}

func TestClockTransitions(t *testing.T) {
	fake := newFake()
	var switches []Position
	c := NewClock(project(3, 4), WithNow(fake.now), WithOnSwitch(func(p Position) {
		switches = append(switches, p)
	}))

	if c.State() != Stopped || c.TotalDuration() != 7 {
		t.Fatalf("initial = %v total %v", c.State(), c.TotalDuration())
	}

	c.Play()
	fake.advance(1)
	if pos := c.Tick(); pos.Time != 1 || pos.Index != 0 {
		t.Errorf("after 1s = %+v", pos)
	}
	fake.advance(0.5)
	c.Tick()
	fake.advance(0.5)
	c.Tick()
	if len(switches) != 0 {
		t.Errorf("switch fired inside one scene: %+v", switches)
	}

	fake.advance(1.5) // t = 3.5
	pos := c.Tick()
	if pos.Index != 1 || pos.SceneID != "b" || pos.Local != 0.5 {
		t.Errorf("at 3.5 = %+v", pos)
	}
	if len(switches) != 1 || switches[0].Index != 1 {
		t.Fatalf("switches = %+v", switches)
	}

	c.Pause()
	fake.advance(10)
	if pos := c.Tick(); pos.Time != 3.5 || pos.State != Paused {
		t.Errorf("paused clock moved: %+v", pos)
	}

	c.Play()
	fake.advance(1)
	if pos := c.Tick(); pos.Time != 4.5 {
		t.Errorf("resume = %+v", pos)
	}

	c.Stop()
	if pos := c.Position(); pos.Time != 0 || pos.Index != 0 || pos.State != Stopped {
		t.Errorf("after stop = %+v", pos)
	}
	if len(switches) != 2 || switches[1].Index != 0 {
		t.Errorf("stop did not switch back to the first scene: %+v", switches)
	}
}

func TestClockAutoStopsAtEnd(t *testing.T) {
	fake := newFake()
	c := NewClock(project(3, 4), WithNow(fake.now))
	c.Play()
	fake.advance(9)

	pos := c.Tick()
	if pos.State != Stopped || pos.Time != 7 || pos.Index != 1 {
		t.Fatalf("end of timeline = %+v", pos)
	}

	// Play from the end restarts.
	c.Play()
	fake.advance(0.25)
	if pos := c.Tick(); pos.Time != 0.25 || pos.Index != 0 {
		t.Errorf("restart = %+v", pos)
	}
}

func TestClockSeek(t *testing.T) {
	fake := newFake()
	c := NewClock(project(3, 4), WithNow(fake.now))

	if pos := c.Seek(-2); pos.Time != 0 {
		t.Errorf("seek below 0 = %+v", pos)
	}
	if pos := c.Seek(50); pos.Time != 7 || pos.Index != 1 {
		t.Errorf("seek past end = %+v", pos)
	}
	if pos := c.Seek(math.NaN()); pos.Time != 0 || pos.Index != 0 {
		t.Errorf("seek NaN = %+v", pos)
	}

	c.Seek(5)
	c.Play()
	if c.Position().Time != 5 {
		t.Errorf("play after seek should resume at 5, got %v", c.Position().Time)
	}
	fake.advance(1)
	c.Seek(1)
	fake.advance(0.5)
	if pos := c.Tick(); pos.Time != 1.5 || pos.Index != 0 || pos.State != Playing {
		t.Errorf("seek while playing = %+v", pos)
	}

	if pos := c.SeekScene(1); pos.Time != 3 || pos.SceneID != "b" {
		t.Errorf("SeekScene = %+v", pos)
	}
}

func TestSetTimelineClamps(t *testing.T) {
	fake := newFake()
	c := NewClock(project(3, 4), WithNow(fake.now))
	c.Seek(6)
	c.SetTimeline(project(2, 2))
	if pos := c.Position(); pos.Time != 4 || pos.Index != 1 || pos.Total != 4 {
		t.Errorf("after shrink = %+v", pos)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	c := NewClock(project(1))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if err := c.Run(ctx, 5*time.Millisecond); err != context.DeadlineExceeded {
		t.Errorf("Run = %v", err)
	}
}
