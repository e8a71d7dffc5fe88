// Package assets prefetches media referenced by a book and serves intrinsic
// dimensions to the layout engine. Loading is asynchronous, pagination blocks
// in Wait only when it actually needs a measurement that depends on an asset
// still in flight.
package assets

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"github.com/srwiley/oksvg"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Dimensions used when an asset cannot be loaded or decoded. Pagination must
// keep going with a placeholder box rather than stall on a broken image.
const (
	placeholderWidth  = 800
	placeholderHeight = 600
)

type asset struct {
	data          []byte
	width, height int
	mime          string
	err           error
}

// Loader resolves asset references against a filesystem (book directory or
// archive). Safe for concurrent use.
type Loader struct {
	fsys fs.FS
	log  *zap.Logger

	mu     sync.Mutex
	loaded map[string]*asset
	wg     sync.WaitGroup
}

func NewLoader(fsys fs.FS, log *zap.Logger) *Loader {
	return &Loader{fsys: fsys, log: log.Named("assets"), loaded: make(map[string]*asset)}
}

// Prefetch starts loading the given references in the background. Already
// known references are skipped.
func (l *Loader) Prefetch(hrefs []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, href := range hrefs {
		if href == "" {
			continue
		}
		if _, ok := l.loaded[href]; ok {
			continue
		}
		l.loaded[href] = nil // reserve, Size reports not ready until filled
		l.wg.Add(1)
		go func(href string) {
			defer l.wg.Done()
			a := l.fetch(href)
			l.mu.Lock()
			l.loaded[href] = a
			l.mu.Unlock()
		}(href)
	}
}

// Wait blocks until every prefetch in flight settles, or the context is
// canceled.
func (l *Loader) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Size implements the layout sizer. Settled assets always report dimensions,
// broken ones get a placeholder box so the text flow never stalls on them.
func (l *Loader) Size(href string) (int, int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, known := l.loaded[href]
	if !known {
		// never prefetched, nothing will ever settle it
		return placeholderWidth, placeholderHeight, true
	}
	if a == nil {
		return 0, 0, false
	}
	return a.width, a.height, true
}

// Data returns the raw bytes of a loaded asset.
func (l *Loader) Data(href string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, known := l.loaded[href]
	if !known || a == nil {
		return nil, fmt.Errorf("asset %q is not loaded", href)
	}
	if a.err != nil {
		return nil, a.err
	}
	return a.data, nil
}

// Hrefs lists every reference the loader knows about.
func (l *Loader) Hrefs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.loaded))
	for href := range l.loaded {
		out = append(out, href)
	}
	return out
}

func (l *Loader) fetch(href string) *asset {
	data, err := fs.ReadFile(l.fsys, href)
	if err != nil {
		l.log.Warn("Unable to read asset, using placeholder box", zap.String("href", href), zap.Error(err))
		return &asset{width: placeholderWidth, height: placeholderHeight, err: err}
	}
	a := &asset{data: data, width: placeholderWidth, height: placeholderHeight}

	kind, _ := filetype.Match(data)
	a.mime = kind.MIME.Value

	switch {
	case isSVG(data):
		a.mime = "image/svg+xml"
		if w, h, err := svgSize(data); err == nil {
			a.width, a.height = w, h
		} else {
			l.log.Warn("Unable to read SVG dimensions", zap.String("href", href), zap.Error(err))
		}
	case kind.MIME.Type == "image":
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			l.log.Warn("Unable to decode image dimensions", zap.String("href", href), zap.Error(err))
			a.err = err
			break
		}
		a.width, a.height = cfg.Width, cfg.Height
	case kind == matchers.TypeMp3 || kind.MIME.Type == "audio":
		// audio has no layout box
		a.width, a.height = 0, 0
	default:
		l.log.Debug("Asset of unrecognized type", zap.String("href", href), zap.String("mime", a.mime))
	}
	return a
}

// Normalized re-encodes a raster image so it is no wider than maxWidth,
// keeping aspect ratio. Non-raster assets are returned unchanged.
func (l *Loader) Normalized(href string, maxWidth int) ([]byte, error) {
	data, err := l.Data(href)
	if err != nil {
		return nil, err
	}
	if isSVG(data) || maxWidth <= 0 {
		return data, nil
	}
	kind, _ := filetype.Match(data)
	if kind.MIME.Type != "image" {
		return data, nil
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unable to decode %q: %w", href, err)
	}
	if img.Bounds().Dx() <= maxWidth {
		return data, nil
	}
	resized := imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.PNG); err != nil {
		return nil, fmt.Errorf("unable to encode %q: %w", href, err)
	}
	return buf.Bytes(), nil
}

func isSVG(data []byte) bool {
	probe := data
	if len(probe) > 512 {
		probe = probe[:512]
	}
	return bytes.Contains(probe, []byte("<svg"))
}

func svgSize(data []byte) (int, int, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	w, h := int(icon.ViewBox.W), int(icon.ViewBox.H)
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("svg has no usable viewBox")
	}
	return w, h, nil
}
