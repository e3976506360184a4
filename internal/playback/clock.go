package playback

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/scene"
)

// State of the clock.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// MarshalText lets State appear as a word in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Position is a snapshot of the clock.
type Position struct {
	State   State   `json:"state"`
	Time    float64 `json:"time"`
	Total   float64 `json:"total"`
	Index   int     `json:"index"`
	SceneID string  `json:"sceneId"`
	Local   float64 `json:"local"`
}

// Clock maps wall-clock time to project time. Safe for concurrent use.
type Clock struct {
	mu        sync.Mutex
	now       func() time.Time
	onSwitch  func(Position)
	state     State
	t         float64 // project time while not playing
	anchor    time.Time
	durations []float64
	ids       []string
	index     int
}

// ClockOption configures a Clock.
type ClockOption func(*Clock)

// WithNow replaces the wall clock.
func WithNow(now func() time.Time) ClockOption {
	return func(c *Clock) { c.now = now }
}

// WithOnSwitch registers a callback fired whenever the active scene
// changes. It runs outside the clock's lock.
func WithOnSwitch(fn func(Position)) ClockOption {
	return func(c *Clock) { c.onSwitch = fn }
}

// NewClock creates a stopped clock at time 0 on the first scene of p.
func NewClock(p *scene.Project, opts ...ClockOption) *Clock {
	c := &Clock{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	c.load(p)
	return c
}

func (c *Clock) load(p *scene.Project) {
	c.durations = c.durations[:0]
	c.ids = c.ids[:0]
	if p == nil {
		return
	}
	for _, s := range p.Scenes {
		c.durations = append(c.durations, s.DurationSec)
		c.ids = append(c.ids, s.ID)
	}
}

// SetTimeline re-reads scene order and durations after the project was
// edited. Project time is clamped to the new total.
func (c *Clock) SetTimeline(p *scene.Project) {
	c.mu.Lock()
	t := c.current()
	c.load(p)
	total := Total(c.durations)
	if t > total {
		t = total
	}
	c.setTime(t)
	fire := c.relocate()
	c.mu.Unlock()
	c.fire(fire)
}

// Play starts or resumes playback. From stopped at the end of the timeline
// it restarts at 0; otherwise it continues from the current time.
func (c *Clock) Play() Position {
	c.mu.Lock()
	if c.state == Playing {
		pos := c.position()
		c.mu.Unlock()
		return pos
	}
	if c.state == Stopped && c.t >= Total(c.durations) {
		c.t = 0
	}
	c.anchor = c.now().Add(-seconds(c.t))
	c.state = Playing
	fire := c.relocate()
	pos := c.position()
	c.mu.Unlock()
	c.fire(fire)
	return pos
}

// Pause freezes project time. It is a no-op unless playing.
func (c *Clock) Pause() Position {
	c.mu.Lock()
	var fire *Position
	if c.state == Playing {
		c.t = c.elapsed()
		c.anchor = time.Time{}
		c.state = Paused
		fire = c.relocate()
	}
	pos := c.position()
	c.mu.Unlock()
	c.fire(fire)
	return pos
}

// Stop resets to time 0 on the first scene.
func (c *Clock) Stop() Position {
	c.mu.Lock()
	c.state = Stopped
	c.t = 0
	c.anchor = time.Time{}
	fire := c.relocate()
	pos := c.position()
	c.mu.Unlock()
	c.fire(fire)
	return pos
}

// Seek moves to project time t, clamped to [0, total], in any state.
// NaN seeks to 0.
func (c *Clock) Seek(t float64) Position {
	c.mu.Lock()
	total := Total(c.durations)
	switch {
	case math.IsNaN(t) || t < 0:
		t = 0
	case t > total:
		t = total
	}
	c.setTime(t)
	fire := c.relocate()
	pos := c.position()
	c.mu.Unlock()
	c.fire(fire)
	return pos
}

// SeekScene moves to the start of scene index.
func (c *Clock) SeekScene(index int) Position {
	c.mu.Lock()
	start := StartOf(c.durations, index)
	c.mu.Unlock()
	return c.Seek(start)
}

// Tick samples the wall clock. While playing it advances project time and
// stops at the end of the timeline, leaving the last scene active.
func (c *Clock) Tick() Position {
	c.mu.Lock()
	if c.state == Playing {
		t := c.elapsed()
		if t >= Total(c.durations) {
			c.t = Total(c.durations)
			c.anchor = time.Time{}
			c.state = Stopped
		}
	}
	fire := c.relocate()
	pos := c.position()
	c.mu.Unlock()
	c.fire(fire)
	return pos
}

// Run ticks every interval until ctx is done.
func (c *Clock) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Tick()
		}
	}
}

// Position returns the current snapshot without advancing state.
func (c *Clock) Position() Position {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position()
}

// State returns the current state.
func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// TotalDuration returns the timeline length in seconds.
func (c *Clock) TotalDuration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Total(c.durations)
}

// elapsed is project time for a playing clock, clamped to the timeline.
func (c *Clock) elapsed() float64 {
	t := c.now().Sub(c.anchor).Seconds()
	if t < 0 {
		t = 0
	}
	if total := Total(c.durations); t > total {
		t = total
	}
	return t
}

func (c *Clock) current() float64 {
	if c.state == Playing {
		return c.elapsed()
	}
	return c.t
}

func (c *Clock) setTime(t float64) {
	c.t = t
	if c.state == Playing {
		c.anchor = c.now().Add(-seconds(t))
	}
}

// relocate updates the active index for the current time and returns the
// position to announce if it changed.
func (c *Clock) relocate() *Position {
	i, _, _ := Locate(c.durations, c.current())
	if i < 0 {
		i = 0
	}
	if i == c.index {
		return nil
	}
	c.index = i
	pos := c.position()
	return &pos
}

func (c *Clock) position() Position {
	t := c.current()
	pos := Position{
		State: c.state,
		Time:  t,
		Total: Total(c.durations),
		Index: c.index,
	}
	if c.index < len(c.ids) {
		pos.SceneID = c.ids[c.index]
		pos.Local = t - StartOf(c.durations, c.index)
	}
	return pos
}

func (c *Clock) fire(pos *Position) {
	if pos != nil && c.onSwitch != nil {
		c.onSwitch(*pos)
	}
}

func seconds(t float64) time.Duration {
	return time.Duration(t * float64(time.Second))
}
