package scene

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sequentialIDs(t *testing.T) {
	t.Helper()
	n := 0
	prev := IDFunc
	IDFunc = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	t.Cleanup(func() { IDFunc = prev })
}

func testProject(t *testing.T) *Project {
	t.Helper()
	sequentialIDs(t)
	p := NewProject("demo", Canvas{Width: 1080, Height: 1080, Background: "#ffffff"})
	p.Scenes[0].DurationSec = 3
	second := p.AddScene("")
	second.DurationSec = 4
	return p
}

func TestTotalDuration(t *testing.T) {
	p := testProject(t)
	if got := p.TotalDuration(); got != 7 {
		t.Errorf("TotalDuration = %v, want 7", got)
	}
	sum := 0.0
	for _, d := range p.Durations() {
		sum += d
	}
	if sum != p.TotalDuration() {
		t.Errorf("Durations sum %v != TotalDuration %v", sum, p.TotalDuration())
	}
}

func TestDuplicateSceneDeepCopy(t *testing.T) {
	p := testProject(t)
	src := p.Scenes[0]
	img := NewImage("", "data:image/png;base64,AAAA", 100, 80)
	img.Crop = &Crop{X: 1, Y: 2, Width: 10, Height: 10}
	if err := p.AddElement(src.ID, img); err != nil {
		t.Fatalf("AddElement: %v", err)
	}
	if err := p.AddElement(src.ID, NewText("", "hello")); err != nil {
		t.Fatalf("AddElement: %v", err)
	}

	dup, err := p.DuplicateScene(src.ID)
	if err != nil {
		t.Fatalf("DuplicateScene: %v", err)
	}
	if p.Scenes[1] != dup {
		t.Fatalf("duplicate should be inserted after the original")
	}
	if dup.ID == src.ID {
		t.Errorf("duplicate reused scene id %q", dup.ID)
	}
	for i, el := range dup.Elements {
		if el.Base().ID == src.Elements[i].Base().ID {
			t.Errorf("element %d reused id %q", i, el.Base().ID)
		}
	}

	dupImg := dup.Elements[0].(*Image)
	dupImg.Crop.X = 99
	dupImg.X = 500
	if img.Crop.X != 1 || img.X != 0 {
		t.Errorf("mutating the copy changed the original: %+v", img)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate after duplicate: %v", err)
	}
}

func TestDeleteScene(t *testing.T) {
	p := testProject(t)
	first, second := p.Scenes[0].ID, p.Scenes[1].ID

	if err := p.SetActiveScene(second); err != nil {
		t.Fatal(err)
	}
	if err := p.DeleteScene(second); err != nil {
		t.Fatalf("DeleteScene: %v", err)
	}
	if p.ActiveID != first {
		t.Errorf("ActiveID = %q, want %q", p.ActiveID, first)
	}
	if err := p.DeleteScene(first); err == nil {
		t.Error("deleting the last scene should fail")
	}
	if len(p.Scenes) != 1 {
		t.Errorf("scenes = %d, want 1", len(p.Scenes))
	}
}

func TestMoveScene(t *testing.T) {
	p := testProject(t)
	third := p.AddScene("third")
	if err := p.MoveScene(third.ID, 0); err != nil {
		t.Fatal(err)
	}
	if p.Scenes[0].ID != third.ID || len(p.Scenes) != 3 {
		t.Errorf("unexpected order: %v", []string{p.Scenes[0].ID, p.Scenes[1].ID, p.Scenes[2].ID})
	}
}

func TestUpdateScene(t *testing.T) {
	p := testProject(t)
	id := p.Scenes[0].ID

	bad := 0.0
	if err := p.UpdateScene(id, ScenePatch{DurationSec: &bad}); !errors.Is(err, ErrInvalid) {
		t.Errorf("zero duration: err = %v, want ErrInvalid", err)
	}
	if p.Scenes[0].DurationSec != 3 {
		t.Errorf("failed update must not change the scene")
	}

	d, bg := 6.0, Color("3B82F6")
	if err := p.UpdateScene(id, ScenePatch{DurationSec: &d, BgColor: &bg}); err != nil {
		t.Fatal(err)
	}
	if p.Scenes[0].DurationSec != 6 || p.Scenes[0].BgColor != "#3b82f6" {
		t.Errorf("got %+v", p.Scenes[0])
	}
}

func TestUpdateElementMergesPatch(t *testing.T) {
	p := testProject(t)
	sid := p.Scenes[0].ID
	txt := NewText("", "A")
	txt.BgColor = "#000000"
	if err := p.AddElement(sid, txt); err != nil {
		t.Fatal(err)
	}

	el, err := p.UpdateElement(sid, txt.ID, json.RawMessage(`{"content":"A\nB","x":10,"type":"image","id":"other","bgColor":null}`))
	if err != nil {
		t.Fatalf("UpdateElement: %v", err)
	}
	got, ok := el.(*Text)
	if !ok {
		t.Fatalf("type changed to %T", el)
	}
	if got.ID != txt.ID || got.Content != "A\nB" || got.X != 10 || got.BgColor != "" || got.FontSize != 48 {
		t.Errorf("unexpected merge result %+v", got)
	}

	if _, err := p.UpdateElement(sid, txt.ID, json.RawMessage(`{"opacity":2}`)); !errors.Is(err, ErrInvalid) {
		t.Errorf("opacity 2: err = %v, want ErrInvalid", err)
	}
}

func TestDuplicateElement(t *testing.T) {
	p := testProject(t)
	sid := p.Scenes[0].ID
	a := NewIcon("", "star")
	a.Z = 3
	b := NewText("", "b")
	b.Z = 7
	for _, el := range []Element{a, b} {
		if err := p.AddElement(sid, el); err != nil {
			t.Fatal(err)
		}
	}
	dup, err := p.DuplicateElement(sid, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if dup.Base().Z != 8 || dup.Base().X != 20 || dup.Base().Y != 20 {
		t.Errorf("dup common = %+v", *dup.Base())
	}
	if p.Scenes[0].Elements[1] != dup {
		t.Errorf("duplicate should follow the original in list order")
	}
}

func TestBringToFront(t *testing.T) {
	p := testProject(t)
	sid := p.Scenes[0].ID
	low, high := NewText("", "low"), NewText("", "high")
	high.Z = 5
	for _, el := range []Element{low, high} {
		if err := p.AddElement(sid, el); err != nil {
			t.Fatal(err)
		}
	}
	if err := p.BringToFront(sid, low.ID); err != nil {
		t.Fatal(err)
	}
	if low.Z != 6 {
		t.Errorf("z = %d, want 6", low.Z)
	}
	if got := SortByZ(p.Scenes[0].Elements); got[len(got)-1] != low {
		t.Errorf("top element = %v", got[len(got)-1].Base().ID)
	}
	if err := p.BringToFront(sid, "missing"); err == nil {
		t.Error("missing element accepted")
	}
}

func TestSortByZStable(t *testing.T) {
	mk := func(id string, z int) Element {
		e := NewText(id, id)
		e.Z = z
		return e
	}
	in := []Element{mk("a", 2), mk("b", 1), mk("c", 2), mk("d", 0), mk("e", 1)}
	var order []string
	for _, el := range SortByZ(in) {
		order = append(order, el.Base().ID)
	}
	if got := strings.Join(order, ""); got != "dbeac" {
		t.Errorf("paint order = %s, want dbeac", got)
	}
	if in[0].Base().ID != "a" {
		t.Error("SortByZ modified its input")
	}
}

func TestCheckLeavesColorsAlone(t *testing.T) {
	p := testProject(t)
	p.Canvas.Background = "#FFAA00"
	p.Scenes[1].BgColor = "00FF00"

	if err := p.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if p.Canvas.Background != "#FFAA00" || p.Scenes[1].BgColor != "00FF00" {
		t.Errorf("Check rewrote colors: %q %q", p.Canvas.Background, p.Scenes[1].BgColor)
	}

	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p.Canvas.Background != "#ffaa00" || p.Scenes[1].BgColor != "#00ff00" {
		t.Errorf("Validate did not normalize: %q %q", p.Canvas.Background, p.Scenes[1].BgColor)
	}

	p.Scenes[0].BgColor = "blue"
	if err := p.Check(); !errors.Is(err, ErrInvalid) {
		t.Errorf("Check(bad color) = %v", err)
	}
}

func TestValidateReportsEveryViolation(t *testing.T) {
	p := testProject(t)
	p.Canvas.Width = 0
	p.ActiveID = "missing"
	p.Scenes[0].BgColor = "blue"
	p.Scenes[1].Elements = []Element{&Icon{Common: Common{ID: "i", Opacity: 1}}}

	err := p.Validate()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
	for _, want := range []string{"canvas", "active scene", "background", "icon name"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestDecodeProjectDocument(t *testing.T) {
	doc := `{
	  "id": "p1", "title": "t",
	  "canvas": {"width": 1080, "height": 1080, "background": "#FFFFFF"},
	  "panes": [{
	    "id": "s1", "name": "Intro", "durationSec": 3, "bgColor": "#3b82f6",
	    "elements": [
	      {"type": "text", "id": "e1", "x": 540, "y": 540, "z": 1, "content": "A\nB", "fontSize": 40, "color": "#ffffff", "align": "center"},
	      {"type": "image", "id": "e2", "src": "logo.png", "width": 100, "height": 50, "crop": {"x": 0, "y": 0, "width": 10, "height": 10}},
	      {"type": "icon", "id": "e3", "name": "star", "size": 64, "color": "#000000"}
	    ]
	  }],
	  "activePaneId": "s1"
	}`
	p, err := DecodeProject(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("DecodeProject: %v", err)
	}
	els := p.Scenes[0].Elements
	if _, ok := els[0].(*Text); !ok {
		t.Errorf("element 0 is %T", els[0])
	}
	if img, ok := els[1].(*Image); !ok || img.Crop == nil || img.Opacity != 1 {
		t.Errorf("element 1 = %#v", els[1])
	}
	if icon, ok := els[2].(*Icon); !ok || icon.StrokeWidth != 2 {
		t.Errorf("element 2 = %#v", els[2])
	}
	if p.Canvas.Background != "#ffffff" || p.Version != SchemaVersion {
		t.Errorf("canvas/version not normalized: %+v %q", p.Canvas, p.Version)
	}

	var buf bytes.Buffer
	if err := EncodeProject(&buf, p); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"type": "icon"`) || !strings.Contains(buf.String(), `"panes"`) {
		t.Errorf("encoded document lacks discriminators:\n%s", buf.String())
	}
}

func TestDecodeUnknownElementType(t *testing.T) {
	doc := `{"canvas":{"width":1,"height":1,"background":"#000000"},"panes":[{"id":"s","durationSec":1,"bgColor":"#000000","elements":[{"type":"video","id":"v"}]}]}`
	if _, err := DecodeProject(strings.NewReader(doc)); err == nil || !strings.Contains(err.Error(), "video") {
		t.Errorf("err = %v, want unknown type error", err)
	}
}

func TestWriteReadAndFindLatest(t *testing.T) {
	dir := t.TempDir()
	p := testProject(t)

	older := filepath.Join(dir, "a.json")
	newer := filepath.Join(dir, "b.json")
	for _, path := range []string{older, newer} {
		if err := WriteProject(path, p); err != nil {
			t.Fatalf("WriteProject: %v", err)
		}
	}
	past := time.Now().Add(-time.Hour)
	os.Chtimes(older, past, past)

	latest, err := FindLatestProject(dir)
	if err != nil {
		t.Fatal(err)
	}
	if latest != newer {
		t.Errorf("latest = %s, want %s", latest, newer)
	}

	back, err := ReadProject(latest)
	if err != nil {
		t.Fatal(err)
	}
	if back.TotalDuration() != 7 || len(back.Scenes) != 2 {
		t.Errorf("read back %+v", back)
	}
}
