package scene

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// IDFunc produces fresh element and scene identifiers.
var IDFunc = uuid.NewString

// Now stamps UpdatedAt on every mutation.
var Now = func() time.Time { return time.Now().UTC() }

// duplicateOffset is how far a duplicated element is moved from its source.
const duplicateOffset = 20.0

// NewProject creates a project holding one empty, active scene.
func NewProject(title string, canvas Canvas) *Project {
	now := Now()
	first := NewScene("Scene 1", canvas.Background)
	return &Project{
		ID:        IDFunc(),
		Version:   SchemaVersion,
		Title:     title,
		Canvas:    canvas,
		Scenes:    []*Scene{first},
		ActiveID:  first.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewScene returns an empty five second scene.
func NewScene(name string, bg Color) *Scene {
	if bg == "" {
		bg = "#ffffff"
	}
	return &Scene{ID: IDFunc(), Name: name, DurationSec: 5, BgColor: bg, Elements: []Element{}}
}

func (p *Project) touch() {
	p.UpdatedAt = Now()
}

// SetActiveScene marks a scene as active.
func (p *Project) SetActiveScene(id string) error {
	if p.SceneIndex(id) < 0 {
		return fmt.Errorf("scene %q not found", id)
	}
	p.ActiveID = id
	p.touch()
	return nil
}

// AddScene appends a new empty scene and makes it active.
func (p *Project) AddScene(name string) *Scene {
	if name == "" {
		name = fmt.Sprintf("Scene %d", len(p.Scenes)+1)
	}
	s := NewScene(name, p.Canvas.Background)
	p.Scenes = append(p.Scenes, s)
	p.ActiveID = s.ID
	p.touch()
	return s
}

// DuplicateScene deep-copies a scene with fresh ids and inserts it right
// after the original.
func (p *Project) DuplicateScene(id string) (*Scene, error) {
	i := p.SceneIndex(id)
	if i < 0 {
		return nil, fmt.Errorf("scene %q not found", id)
	}
	src := p.Scenes[i]
	dup := &Scene{
		ID:          IDFunc(),
		Name:        src.Name + " (copy)",
		DurationSec: src.DurationSec,
		BgColor:     src.BgColor,
		Elements:    make([]Element, 0, len(src.Elements)),
		Thumbnail:   src.Thumbnail,
	}
	for _, el := range src.Elements {
		c := el.clone()
		c.Base().ID = IDFunc()
		dup.Elements = append(dup.Elements, c)
	}
	p.Scenes = append(p.Scenes[:i+1], append([]*Scene{dup}, p.Scenes[i+1:]...)...)
	p.touch()
	return dup, nil
}

// DeleteScene removes a scene. The last remaining scene cannot be deleted;
// when the active scene goes away its neighbour becomes active.
func (p *Project) DeleteScene(id string) error {
	i := p.SceneIndex(id)
	if i < 0 {
		return fmt.Errorf("scene %q not found", id)
	}
	if len(p.Scenes) == 1 {
		return fmt.Errorf("scene %q: cannot delete the last scene", id)
	}
	p.Scenes = append(p.Scenes[:i], p.Scenes[i+1:]...)
	if p.ActiveID == id {
		next := i
		if next >= len(p.Scenes) {
			next = len(p.Scenes) - 1
		}
		p.ActiveID = p.Scenes[next].ID
	}
	p.touch()
	return nil
}

// MoveScene moves a scene to index, clamped to the list bounds.
func (p *Project) MoveScene(id string, index int) error {
	i := p.SceneIndex(id)
	if i < 0 {
		return fmt.Errorf("scene %q not found", id)
	}
	s := p.Scenes[i]
	rest := append(p.Scenes[:i:i], p.Scenes[i+1:]...)
	if index < 0 {
		index = 0
	}
	if index > len(rest) {
		index = len(rest)
	}
	p.Scenes = append(rest[:index:index], append([]*Scene{s}, rest[index:]...)...)
	p.touch()
	return nil
}

// ScenePatch is a partial scene update; nil fields are left alone.
type ScenePatch struct {
	Name        *string  `json:"name,omitempty"`
	DurationSec *float64 `json:"durationSec,omitempty"`
	BgColor     *Color   `json:"bgColor,omitempty"`
}

// UpdateScene applies a partial update to a scene.
func (p *Project) UpdateScene(id string, patch ScenePatch) error {
	s, ok := p.SceneByID(id)
	if !ok {
		return fmt.Errorf("scene %q not found", id)
	}
	next := *s
	if patch.Name != nil {
		next.Name = *patch.Name
	}
	if patch.DurationSec != nil {
		next.DurationSec = *patch.DurationSec
	}
	if patch.BgColor != nil {
		next.BgColor = *patch.BgColor
	}
	if err := next.validate(true); err != nil {
		return err
	}
	*s = next
	p.touch()
	return nil
}

// AddElement appends an element to a scene. A missing id is filled in.
func (p *Project) AddElement(sceneID string, el Element) error {
	s, ok := p.SceneByID(sceneID)
	if !ok {
		return fmt.Errorf("scene %q not found", sceneID)
	}
	if el.Base().ID == "" {
		el.Base().ID = IDFunc()
	}
	if _, _, dup := p.ElementByID(el.Base().ID); dup {
		return fmt.Errorf("%w: element id %q already used", ErrInvalid, el.Base().ID)
	}
	if err := validateElement(el, true); err != nil {
		return err
	}
	s.Elements = append(s.Elements, el)
	p.touch()
	return nil
}

// UpdateElement merges a JSON object over the element's document form.
// The id and type cannot change; the result must validate.
func (p *Project) UpdateElement(sceneID, elementID string, patch json.RawMessage) (Element, error) {
	s, ok := p.SceneByID(sceneID)
	if !ok {
		return nil, fmt.Errorf("scene %q not found", sceneID)
	}
	el, idx := s.element(elementID)
	if el == nil {
		return nil, fmt.Errorf("element %q not found in scene %q", elementID, sceneID)
	}

	var changes map[string]json.RawMessage
	if err := json.Unmarshal(patch, &changes); err != nil {
		return nil, fmt.Errorf("element patch: %w", err)
	}
	delete(changes, "id")
	delete(changes, "type")

	current, err := json.Marshal(el)
	if err != nil {
		return nil, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(current, &doc); err != nil {
		return nil, err
	}
	for k, v := range changes {
		if string(v) == "null" {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}
	merged, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	next, err := DecodeElement(merged)
	if err != nil {
		return nil, err
	}
	if err := validateElement(next, true); err != nil {
		return nil, err
	}
	s.Elements[idx] = next
	p.touch()
	return next, nil
}

// RemoveElement deletes an element from a scene.
func (p *Project) RemoveElement(sceneID, elementID string) error {
	s, ok := p.SceneByID(sceneID)
	if !ok {
		return fmt.Errorf("scene %q not found", sceneID)
	}
	_, idx := s.element(elementID)
	if idx < 0 {
		return fmt.Errorf("element %q not found in scene %q", elementID, sceneID)
	}
	s.Elements = append(s.Elements[:idx], s.Elements[idx+1:]...)
	p.touch()
	return nil
}

// DuplicateElement copies an element with a fresh id, offset down-right and
// placed above everything else in the scene.
func (p *Project) DuplicateElement(sceneID, elementID string) (Element, error) {
	s, ok := p.SceneByID(sceneID)
	if !ok {
		return nil, fmt.Errorf("scene %q not found", sceneID)
	}
	el, idx := s.element(elementID)
	if el == nil {
		return nil, fmt.Errorf("element %q not found in scene %q", elementID, sceneID)
	}
	dup := el.clone()
	b := dup.Base()
	b.ID = IDFunc()
	b.X += duplicateOffset
	b.Y += duplicateOffset
	b.Z = s.maxZ() + 1
	s.Elements = append(s.Elements[:idx+1], append([]Element{dup}, s.Elements[idx+1:]...)...)
	p.touch()
	return dup, nil
}

// BringToFront raises an element above all others in its scene.
func (p *Project) BringToFront(sceneID, elementID string) error {
	s, ok := p.SceneByID(sceneID)
	if !ok {
		return fmt.Errorf("scene %q not found", sceneID)
	}
	el, _ := s.element(elementID)
	if el == nil {
		return fmt.Errorf("element %q not found in scene %q", elementID, sceneID)
	}
	el.Base().Z = s.maxZ() + 1
	p.touch()
	return nil
}

func (s *Scene) maxZ() int {
	max := 0
	for i, el := range s.Elements {
		if z := el.Base().Z; i == 0 || z > max {
			max = z
		}
	}
	return max
}
