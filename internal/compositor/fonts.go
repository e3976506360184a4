package compositor

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomedium"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Weight buckets a CSS weight (100..900) into the faces a family provides.
type Weight int

const (
	Regular Weight = iota
	Medium
	Bold
)

// WeightOf maps a numeric font weight to its bucket.
func WeightOf(w int) Weight {
	switch {
	case w >= 600:
		return Bold
	case w >= 500:
		return Medium
	default:
		return Regular
	}
}

// Built-in family names. Any unknown family falls back to DefaultFamily.
const (
	DefaultFamily = "go"
	MonoFamily    = "go mono"
	ItalicFamily  = "go italic"
)

type faceKey struct {
	family string
	weight Weight
	size   float64
}

// cachedFace pairs a face with the lock guarding it: opentype faces keep
// scratch buffers and must not be used from two goroutines at once.
type cachedFace struct {
	mu   sync.Mutex
	face font.Face
}

// FontSet resolves (family, weight, size) to font faces. Safe for
// concurrent use.
type FontSet struct {
	mu    sync.Mutex
	fonts map[string]map[Weight]*opentype.Font
	faces map[faceKey]*cachedFace
}

// NewFontSet returns a set preloaded with the Go font family.
func NewFontSet() *FontSet {
	fs := &FontSet{
		fonts: map[string]map[Weight]*opentype.Font{},
		faces: map[faceKey]*cachedFace{},
	}
	builtin := []struct {
		family string
		weight Weight
		ttf    []byte
	}{
		{DefaultFamily, Regular, goregular.TTF},
		{DefaultFamily, Medium, gomedium.TTF},
		{DefaultFamily, Bold, gobold.TTF},
		{MonoFamily, Regular, gomono.TTF},
		{MonoFamily, Bold, gomonobold.TTF},
		{ItalicFamily, Regular, goitalic.TTF},
	}
	for _, b := range builtin {
		if err := fs.Register(b.family, b.weight, b.ttf); err != nil {
			panic(err)
		}
	}
	return fs
}

// Register adds a TTF/OTF font under family and weight.
func (fs *FontSet) Register(family string, weight Weight, data []byte) error {
	f, err := opentype.Parse(data)
	if err != nil {
		return fmt.Errorf("parse font %q: %w", family, err)
	}
	key := normalizeFamily(family)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.fonts[key] == nil {
		fs.fonts[key] = map[Weight]*opentype.Font{}
	}
	fs.fonts[key][weight] = f
	for k := range fs.faces {
		if k.family == key {
			delete(fs.faces, k)
		}
	}
	return nil
}

// RegisterFile reads a font file and registers it.
func (fs *FontSet) RegisterFile(family string, weight Weight, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read font: %w", err)
	}
	return fs.Register(family, weight, data)
}

// WithFace runs fn with the face for family/weight at size pixels. The face
// is exclusively held for the duration of fn.
func (fs *FontSet) WithFace(family string, weight Weight, size float64, fn func(font.Face) error) error {
	cf, err := fs.face(family, weight, size)
	if err != nil {
		return err
	}
	cf.mu.Lock()
	defer cf.mu.Unlock()
	return fn(cf.face)
}

func (fs *FontSet) face(family string, weight Weight, size float64) (*cachedFace, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	fam := normalizeFamily(family)
	weights, ok := fs.fonts[fam]
	if !ok {
		fam = DefaultFamily
		weights = fs.fonts[fam]
	}
	f := pickWeight(weights, weight)
	if f == nil {
		return nil, fmt.Errorf("no faces registered for family %q", family)
	}

	key := faceKey{family: fam, weight: weight, size: size}
	if cf, ok := fs.faces[key]; ok {
		return cf, nil
	}
	// DPI 72 makes Size a pixel size.
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("font face: %w", err)
	}
	cf := &cachedFace{face: face}
	fs.faces[key] = cf
	return cf, nil
}

// pickWeight returns the requested weight, the nearest lighter one, or
// failing both the lightest registered weight.
func pickWeight(weights map[Weight]*opentype.Font, w Weight) *opentype.Font {
	for ; w >= Regular; w-- {
		if f, ok := weights[w]; ok {
			return f
		}
	}
	var (
		lightest Weight
		found    *opentype.Font
	)
	for k, f := range weights {
		if found == nil || k < lightest {
			lightest, found = k, f
		}
	}
	return found
}

func normalizeFamily(family string) string {
	return strings.ToLower(strings.TrimSpace(family))
}
