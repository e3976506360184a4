package scene

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind discriminates the element union in documents.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
	KindIcon  Kind = "icon"
)

// Align is the horizontal text alignment.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Element is one of *Text, *Image or *Icon. The set is closed: the
// unexported marker keeps other packages from adding variants, so a type
// switch over the three is exhaustive.
type Element interface {
	Kind() Kind
	Base() *Common
	clone() Element
}

// Common holds the fields every element shares. X and Y are the center anchor.
type Common struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	Z        int     `json:"z"`
	Opacity  float64 `json:"opacity"`
}

// Text is a block of one or more lines.
type Text struct {
	Common
	Content    string  `json:"content"`
	FontFamily string  `json:"fontFamily"`
	FontSize   float64 `json:"fontSize"`
	FontWeight int     `json:"fontWeight"`
	LineHeight float64 `json:"lineHeight"`
	Color      Color   `json:"color"`
	Align      Align   `json:"align"`
	Padding    float64 `json:"padding"`
	BgColor    Color   `json:"bgColor,omitempty"`
}

// Crop is a rectangle in the natural pixel space of an image.
type Crop struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Image draws a raster source into a Width x Height box.
type Image struct {
	Common
	Src     string  `json:"src"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Radius  float64 `json:"radius,omitempty"`
	Crop    *Crop   `json:"crop,omitempty"`
	Looping bool    `json:"looping,omitempty"`
}

// Icon references a glyph from the icon catalog.
type Icon struct {
	Common
	Name        string  `json:"name"`
	Size        float64 `json:"size"`
	StrokeWidth float64 `json:"strokeWidth"`
	Color       Color   `json:"color"`
}

func (t *Text) Kind() Kind     { return KindText }
func (t *Text) Base() *Common  { return &t.Common }
func (i *Image) Kind() Kind    { return KindImage }
func (i *Image) Base() *Common { return &i.Common }
func (i *Icon) Kind() Kind     { return KindIcon }
func (i *Icon) Base() *Common  { return &i.Common }

func (t *Text) clone() Element {
	c := *t
	return &c
}

func (i *Image) clone() Element {
	c := *i
	if i.Crop != nil {
		crop := *i.Crop
		c.Crop = &crop
	}
	return &c
}

func (i *Icon) clone() Element {
	c := *i
	return &c
}

// Clone deep-copies an element. The copy keeps the original id.
func Clone(el Element) Element {
	return el.clone()
}

// NewText returns a text element with the editor defaults.
func NewText(id, content string) *Text {
	return &Text{
		Common:     Common{ID: id, Opacity: 1},
		Content:    content,
		FontFamily: "Inter",
		FontSize:   48,
		FontWeight: 400,
		LineHeight: 1.2,
		Color:      "#111827",
		Align:      AlignCenter,
	}
}

// NewImage returns an image element with the editor defaults.
func NewImage(id, src string, w, h float64) *Image {
	return &Image{Common: Common{ID: id, Opacity: 1}, Src: src, Width: w, Height: h}
}

// NewIcon returns an icon element with the editor defaults.
func NewIcon(id, name string) *Icon {
	return &Icon{Common: Common{ID: id, Opacity: 1}, Name: name, Size: 96, StrokeWidth: 2, Color: "#111827"}
}

// SortByZ returns the elements in paint order: ascending z, ties keep
// their original relative order. The input slice is not modified.
func SortByZ(elements []Element) []Element {
	out := make([]Element, len(elements))
	copy(out, elements)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Base().Z < out[j].Base().Z
	})
	return out
}

type (
	textAlias  Text
	imageAlias Image
	iconAlias  Icon
)

func (t *Text) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*textAlias
	}{KindText, (*textAlias)(t)})
}

func (i *Image) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*imageAlias
	}{KindImage, (*imageAlias)(i)})
}

func (i *Icon) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type Kind `json:"type"`
		*iconAlias
	}{KindIcon, (*iconAlias)(i)})
}

// DecodeElement decodes one element document, dispatching on "type".
func DecodeElement(data []byte) (Element, error) {
	var head struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decode element: %w", err)
	}
	var el Element
	switch head.Type {
	case KindText:
		el = &Text{Common: Common{Opacity: 1}, LineHeight: 1.2, Align: AlignCenter}
	case KindImage:
		el = &Image{Common: Common{Opacity: 1}}
	case KindIcon:
		el = &Icon{Common: Common{Opacity: 1}, StrokeWidth: 2}
	default:
		return nil, fmt.Errorf("decode element: unknown type %q", head.Type)
	}
	if err := json.Unmarshal(data, el); err != nil {
		return nil, fmt.Errorf("decode %s element: %w", head.Type, err)
	}
	return el, nil
}

// UnmarshalJSON decodes the element list through DecodeElement.
func (s *Scene) UnmarshalJSON(data []byte) error {
	type sceneAlias Scene
	var raw struct {
		*sceneAlias
		Elements []json.RawMessage `json:"elements"`
	}
	raw.sceneAlias = (*sceneAlias)(s)
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.Elements = make([]Element, 0, len(raw.Elements))
	for i, msg := range raw.Elements {
		el, err := DecodeElement(msg)
		if err != nil {
			return fmt.Errorf("scene %q element %d: %w", s.ID, i, err)
		}
		s.Elements = append(s.Elements, el)
	}
	return nil
}
