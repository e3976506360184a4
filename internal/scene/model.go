package scene

import (
	"errors"
	"time"
)

// SchemaVersion is written into every project document.
const SchemaVersion = "1"

// Scene duration bounds in seconds.
const (
	MinDurationSec = 1.0
	MaxDurationSec = 60.0
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid project")

// Project is the root of the scene graph.
type Project struct {
	ID        string    `json:"id"`
	Version   string    `json:"version"`
	Title     string    `json:"title"`
	Canvas    Canvas    `json:"canvas"`
	Brand     Brand     `json:"brand"`
	Scenes    []*Scene  `json:"panes"`
	ActiveID  string    `json:"activePaneId,omitempty"`
	Thumbnail string    `json:"thumbnail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Canvas describes the output surface every scene is rendered onto.
type Canvas struct {
	Width      int   `json:"width"`
	Height     int   `json:"height"`
	Background Color `json:"background"`
}

// Brand carries palette and font choices picked outside the core.
type Brand struct {
	Palette     []Color `json:"palette,omitempty"`
	HeadingFont string  `json:"headingFont,omitempty"`
	BodyFont    string  `json:"bodyFont,omitempty"`
}

// Scene is one timed segment of a project ("pane" in the document format).
type Scene struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DurationSec float64   `json:"durationSec"`
	BgColor     Color     `json:"bgColor"`
	Elements    []Element `json:"elements"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
}

// Duration returns the scene length as a time.Duration.
func (s *Scene) Duration() time.Duration {
	return time.Duration(s.DurationSec * float64(time.Second))
}

// TotalDuration is the sum of all scene durations in seconds.
func (p *Project) TotalDuration() float64 {
	total := 0.0
	for _, s := range p.Scenes {
		total += s.DurationSec
	}
	return total
}

// Durations returns scene durations in project order.
func (p *Project) Durations() []float64 {
	out := make([]float64, len(p.Scenes))
	for i, s := range p.Scenes {
		out[i] = s.DurationSec
	}
	return out
}

// SceneIndex returns the position of the scene with the given id, or -1.
func (p *Project) SceneIndex(id string) int {
	for i, s := range p.Scenes {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// SceneByID looks a scene up by id.
func (p *Project) SceneByID(id string) (*Scene, bool) {
	if i := p.SceneIndex(id); i >= 0 {
		return p.Scenes[i], true
	}
	return nil, false
}

// ActiveScene returns the active scene, falling back to the first one.
func (p *Project) ActiveScene() *Scene {
	if s, ok := p.SceneByID(p.ActiveID); ok {
		return s
	}
	if len(p.Scenes) > 0 {
		return p.Scenes[0]
	}
	return nil
}

// ElementByID searches every scene for an element.
func (p *Project) ElementByID(id string) (Element, *Scene, bool) {
	for _, s := range p.Scenes {
		if el, _ := s.element(id); el != nil {
			return el, s, true
		}
	}
	return nil, nil, false
}

// ImageSources lists the distinct image refs used by a scene, in paint order.
func (s *Scene) ImageSources() []string {
	seen := map[string]struct{}{}
	var refs []string
	for _, el := range SortByZ(s.Elements) {
		img, ok := el.(*Image)
		if !ok || img.Src == "" {
			continue
		}
		if _, dup := seen[img.Src]; dup {
			continue
		}
		seen[img.Src] = struct{}{}
		refs = append(refs, img.Src)
	}
	return refs
}

// ImageSources lists the distinct image refs used across the project.
func (p *Project) ImageSources() []string {
	seen := map[string]struct{}{}
	var refs []string
	for _, s := range p.Scenes {
		for _, ref := range s.ImageSources() {
			if _, dup := seen[ref]; dup {
				continue
			}
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
	}
	return refs
}

func (s *Scene) element(id string) (Element, int) {
	for i, el := range s.Elements {
		if el.Base().ID == id {
			return el, i
		}
	}
	return nil, -1
}
