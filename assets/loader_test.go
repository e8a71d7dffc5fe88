package assets

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"
	"testing/fstest"

	"go.uber.org/zap/zaptest"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func testFS(t *testing.T) fstest.MapFS {
	return fstest.MapFS{
		"pic.png": {Data: pngBytes(t, 10, 20)},
		"logo.svg": {Data: []byte(
			`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 30 40"><rect width="30" height="40"/></svg>`)},
	}
}

func TestLoaderDimensions(t *testing.T) {
	l := NewLoader(testFS(t), zaptest.NewLogger(t))
	l.Prefetch([]string{"pic.png", "logo.svg", "missing.jpg"})
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if w, h, ok := l.Size("pic.png"); !ok || w != 10 || h != 20 {
		t.Errorf("png size: %d x %d, ok %v", w, h, ok)
	}
	if w, h, ok := l.Size("logo.svg"); !ok || w != 30 || h != 40 {
		t.Errorf("svg size: %d x %d, ok %v", w, h, ok)
	}
	// broken assets settle with a placeholder box
	if w, h, ok := l.Size("missing.jpg"); !ok || w != placeholderWidth || h != placeholderHeight {
		t.Errorf("missing asset size: %d x %d, ok %v", w, h, ok)
	}
	if _, err := l.Data("missing.jpg"); err == nil {
		t.Error("expected read error for missing asset")
	}
	if data, err := l.Data("pic.png"); err != nil || len(data) == 0 {
		t.Errorf("png data: %d bytes, %v", len(data), err)
	}
}

func TestLoaderWaitCancellation(t *testing.T) {
	l := NewLoader(testFS(t), zaptest.NewLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l.Prefetch([]string{"pic.png"})
	// canceled context may still win the race against an instant load, only
	// assert we return either way
	_ = l.Wait(ctx)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, _, ok := l.Size("pic.png"); !ok {
		t.Error("asset did not settle")
	}
}

func TestLoaderNormalized(t *testing.T) {
	l := NewLoader(testFS(t), zaptest.NewLogger(t))
	l.Prefetch([]string{"pic.png"})
	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}

	out, err := l.Normalized("pic.png", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("normalized output does not decode: %v", err)
	}
	if cfg.Width != 5 {
		t.Errorf("normalized width: %d", cfg.Width)
	}

	// already narrow enough, returned unchanged
	same, err := l.Normalized("pic.png", 100)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(same, pngBytes(t, 10, 20)) {
		t.Error("narrow image was re-encoded")
	}
}
