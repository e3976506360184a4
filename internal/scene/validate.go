package scene

import (
	"errors"
	"fmt"
	"math"
)

// Validate checks every model invariant and reports all violations at once.
// Colors are normalized in place as a side effect.
func (p *Project) Validate() error {
	return p.validate(true)
}

// Check is Validate without the color normalization. It never writes to
// the project, so it is safe on a project shared with readers.
func (p *Project) Check() error {
	return p.validate(false)
}

func (p *Project) validate(fix bool) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if p.Canvas.Width <= 0 || p.Canvas.Height <= 0 {
		add("canvas: size %dx%d must be positive", p.Canvas.Width, p.Canvas.Height)
	}
	if err := normalizeColor(&p.Canvas.Background, true, fix); err != nil {
		add("canvas background: %v", err)
	}
	if len(p.Scenes) == 0 {
		add("project has no scenes")
	}
	if p.ActiveID != "" && p.SceneIndex(p.ActiveID) < 0 {
		add("active scene %q is not in the project", p.ActiveID)
	}

	sceneIDs := map[string]struct{}{}
	elementIDs := map[string]struct{}{}
	for i, s := range p.Scenes {
		if s == nil {
			add("scene %d is nil", i)
			continue
		}
		if _, dup := sceneIDs[s.ID]; dup || s.ID == "" {
			add("scene %d: id %q is empty or duplicated", i, s.ID)
		}
		sceneIDs[s.ID] = struct{}{}
		if err := s.validate(fix); err != nil {
			errs = append(errs, err)
		}
		for _, el := range s.Elements {
			id := el.Base().ID
			if _, dup := elementIDs[id]; dup || id == "" {
				add("scene %q: element id %q is empty or duplicated", s.ID, id)
			}
			elementIDs[id] = struct{}{}
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func (s *Scene) validate(fix bool) error {
	var errs []error
	if math.IsNaN(s.DurationSec) || s.DurationSec < MinDurationSec || s.DurationSec > MaxDurationSec {
		errs = append(errs, fmt.Errorf("scene %q: duration %.2fs outside [%.0f, %.0f]", s.ID, s.DurationSec, MinDurationSec, MaxDurationSec))
	}
	if err := normalizeColor(&s.BgColor, true, fix); err != nil {
		errs = append(errs, fmt.Errorf("scene %q background: %v", s.ID, err))
	}
	for _, el := range s.Elements {
		if err := validateElement(el, fix); err != nil {
			errs = append(errs, fmt.Errorf("scene %q: %w", s.ID, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func validateElement(el Element, fix bool) error {
	b := el.Base()
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("element %q: "+format, append([]any{b.ID}, args...)...))
	}
	if b.Opacity < 0 || b.Opacity > 1 || math.IsNaN(b.Opacity) {
		add("opacity %.2f outside [0, 1]", b.Opacity)
	}

	switch e := el.(type) {
	case *Text:
		if e.FontSize <= 0 {
			add("font size must be positive")
		}
		if e.LineHeight <= 0 {
			add("line height must be positive")
		}
		if e.Padding < 0 {
			add("padding must not be negative")
		}
		switch e.Align {
		case AlignLeft, AlignCenter, AlignRight:
		default:
			add("unknown align %q", e.Align)
		}
		if err := normalizeColor(&e.Color, true, fix); err != nil {
			add("color: %v", err)
		}
		if err := normalizeColor(&e.BgColor, false, fix); err != nil {
			add("background: %v", err)
		}
	case *Image:
		if e.Width <= 0 || e.Height <= 0 {
			add("render box %.0fx%.0f must be positive", e.Width, e.Height)
		}
		if e.Radius < 0 {
			add("radius must not be negative")
		}
		if c := e.Crop; c != nil && (c.Width <= 0 || c.Height <= 0 || c.X < 0 || c.Y < 0) {
			add("crop %+v is not a positive rectangle", *c)
		}
	case *Icon:
		if e.Name == "" {
			add("icon name is empty")
		}
		if e.Size <= 0 {
			add("size must be positive")
		}
		if e.StrokeWidth < 0 {
			add("stroke width must not be negative")
		}
		if err := normalizeColor(&e.Color, true, fix); err != nil {
			add("color: %v", err)
		}
	default:
		add("unsupported element %T", el)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

func normalizeColor(c *Color, required, fix bool) error {
	if *c == "" && !required {
		return nil
	}
	n, err := c.Normalize()
	if err != nil {
		return err
	}
	if fix && n != *c {
		*c = n
	}
	return nil
}
