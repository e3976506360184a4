// Package playback maps project time to the active scene and drives the
// play/pause/stop/seek state machine used by the preview and the exporter.
package playback

import "github.com/DrewMMizzle/Video-Maker-Editor-sub000/internal/scene"

// Total sums scene durations in order.
func Total(durations []float64) float64 {
	var sum float64
	for _, d := range durations {
		sum += d
	}
	return sum
}

// Locate returns the index of the first scene whose [start, start+d)
// interval contains t, the time elapsed inside that scene, and whether t is
// at or past the end of the timeline. Past the end the last scene is
// selected. Negative t maps to the first scene. With no scenes index is -1.
func Locate(durations []float64, t float64) (index int, local float64, ended bool) {
	if len(durations) == 0 {
		return -1, 0, true
	}
	if t < 0 {
		t = 0
	}
	var start float64
	for i, d := range durations {
		if t < start+d {
			return i, t - start, false
		}
		start += d
	}
	last := len(durations) - 1
	return last, durations[last], true
}

// StartOf returns the project time at which scene index begins.
func StartOf(durations []float64, index int) float64 {
	var start float64
	for i := 0; i < index && i < len(durations); i++ {
		start += durations[i]
	}
	return start
}

// SceneForTime returns the scene active at project time t.
func SceneForTime(p *scene.Project, t float64) (*scene.Scene, float64) {
	i, local, _ := Locate(p.Durations(), t)
	if i < 0 {
		return nil, 0
	}
	return p.Scenes[i], local
}
