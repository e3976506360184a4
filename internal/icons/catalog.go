// Package icons resolves icon identifiers to vector glyphs.
//
// The built-in catalog carries a small outline set drawn on a 24 unit grid
// plus generated QR code glyphs for ids of the form "qr:<payload>".
package icons

import (
	"fmt"
	"strings"
	"sync"

	"github.com/skip2/go-qrcode"
)

// Provider is the icon boundary: id -> glyph or not found.
type Provider interface {
	Lookup(id string) (*Glyph, bool)
}

// QRPrefix marks ids whose glyph is a QR code of the rest of the id.
const QRPrefix = "qr:"

var builtin = map[string]string{
	"check":         "M20 6 9 17l-5-5",
	"x":             "M18 6 6 18M6 6l12 12",
	"plus":          "M5 12h14M12 5v14",
	"minus":         "M5 12h14",
	"arrow-right":   "M5 12h14M12 5l7 7-7 7",
	"arrow-left":    "M19 12H5M12 19l-7-7 7-7",
	"chevron-right": "m9 18 6-6-6-6",
	"chevron-left":  "m15 18-6-6 6-6",
	"star":          "M12 2l3.09 6.26L22 9.27l-5 4.87 1.18 6.88L12 17.77l-6.18 3.25L7 14.14 2 9.27l6.91-1.01L12 2z",
	"heart":         "M12 21C12 21 3 14.5 3 8.5 3 5.5 5.5 3 8.5 3c1.7 0 3 1 3.5 2 .5-1 1.8-2 3.5-2C18.5 3 21 5.5 21 8.5 21 14.5 12 21 12 21z",
	"play":          "M6 3l14 9-14 9V3z",
	"square":        "M3 3h18v18H3z",
	"home":          "M3 10l9-7 9 7v11h-6v-7H9v7H3z",
	"zap":           "M13 2 3 14h9l-1 8 10-12h-9l1-8z",
	"menu":          "M4 6h16M4 12h16M4 18h16",
}

// Catalog is a concurrency-safe Provider.
type Catalog struct {
	mu     sync.RWMutex
	glyphs map[string]*Glyph
	qr     map[string]*Glyph
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{glyphs: map[string]*Glyph{}, qr: map[string]*Glyph{}}
}

// Default returns a catalog preloaded with the built-in outline icons.
func Default() *Catalog {
	c := NewCatalog()
	for name, d := range builtin {
		if err := c.Register(name, d); err != nil {
			panic(err)
		}
	}
	c.glyphs["circle"] = &Glyph{Name: "circle", ViewBox: 24, Commands: Circle(12, 12, 10), Stroke: true}
	return c
}

// Register adds an outline glyph from 24 unit SVG path data.
func (c *Catalog) Register(name, pathData string) error {
	cmds, err := ParsePath(pathData)
	if err != nil {
		return fmt.Errorf("icon %q: %w", name, err)
	}
	c.mu.Lock()
	c.glyphs[name] = &Glyph{Name: name, ViewBox: 24, Commands: cmds, Stroke: true}
	c.mu.Unlock()
	return nil
}

// Lookup implements Provider. Names are matched case-insensitively.
func (c *Catalog) Lookup(id string) (*Glyph, bool) {
	if payload, ok := strings.CutPrefix(id, QRPrefix); ok {
		return c.qrGlyph(payload)
	}
	c.mu.RLock()
	g, ok := c.glyphs[strings.ToLower(strings.TrimSpace(id))]
	c.mu.RUnlock()
	return g, ok
}

func (c *Catalog) qrGlyph(payload string) (*Glyph, bool) {
	if payload == "" {
		return nil, false
	}
	c.mu.RLock()
	g, ok := c.qr[payload]
	c.mu.RUnlock()
	if ok {
		return g, true
	}

	q, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, false
	}
	q.DisableBorder = true
	bits := q.Bitmap()

	g = &Glyph{Name: QRPrefix + payload, ViewBox: float64(len(bits)), Fill: true}
	for y, row := range bits {
		for x, dark := range row {
			if !dark {
				continue
			}
			fx, fy := float64(x), float64(y)
			g.Commands = append(g.Commands,
				Command{Op: MoveTo, Pts: [3]Point{{fx, fy}}},
				Command{Op: LineTo, Pts: [3]Point{{fx + 1, fy}}},
				Command{Op: LineTo, Pts: [3]Point{{fx + 1, fy + 1}}},
				Command{Op: LineTo, Pts: [3]Point{{fx, fy + 1}}},
				Command{Op: Close},
			)
		}
	}

	c.mu.Lock()
	c.qr[payload] = g
	c.mu.Unlock()
	return g, true
}
