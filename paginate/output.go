package paginate

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/beevik/etree"
	fixzip "github.com/hidez8891/zip"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"github.com/tianBreznik/overstimulata-sub000/assets"
	"github.com/tianBreznik/overstimulata-sub000/book"
	"github.com/tianBreznik/overstimulata-sub000/config"
	"github.com/tianBreznik/overstimulata-sub000/layout"
	"github.com/tianBreznik/overstimulata-sub000/narration"
)

const mediaDir = "media"

// Serializable projection of the pagination result. Markup is carried as an
// XML string so consumers do not need our DOM types.
type (
	resultDump struct {
		ID        string                       `json:"id" yaml:"id"`
		Title     string                       `json:"title,omitempty" yaml:"title,omitempty"`
		Language  string                       `json:"language,omitempty" yaml:"language,omitempty"`
		Pages     []pageDump                   `json:"pages" yaml:"pages"`
		PageCount map[string]int               `json:"page_count" yaml:"page_count"`
		FirstPage map[string]int               `json:"first_page" yaml:"first_page"`
		Slices    map[string][]narration.Slice `json:"slices,omitempty" yaml:"slices,omitempty"`
		Footnotes []footnoteDump               `json:"footnotes,omitempty" yaml:"footnotes,omitempty"`
	}

	pageDump struct {
		Chapter    string         `json:"chapter" yaml:"chapter"`
		Subchapter string         `json:"subchapter,omitempty" yaml:"subchapter,omitempty"`
		Index      int            `json:"index" yaml:"index"`
		HasHeading bool           `json:"has_heading,omitempty" yaml:"has_heading,omitempty"`
		Hash       uint64         `json:"hash" yaml:"hash"`
		Fragments  []fragmentDump `json:"fragments" yaml:"fragments"`
		Footnotes  []int          `json:"footnotes,omitempty" yaml:"footnotes,omitempty"`
	}

	fragmentDump struct {
		Block  string           `json:"block,omitempty" yaml:"block,omitempty"`
		Type   string           `json:"type" yaml:"type"`
		Start  int              `json:"start" yaml:"start"`
		End    int              `json:"end" yaml:"end"`
		Text   string           `json:"text,omitempty" yaml:"text,omitempty"`
		Markup string           `json:"markup,omitempty" yaml:"markup,omitempty"`
		Href   string           `json:"href,omitempty" yaml:"href,omitempty"`
		Slice  *narration.Slice `json:"slice,omitempty" yaml:"slice,omitempty"`
	}

	footnoteDump struct {
		Number int    `json:"number" yaml:"number"`
		ID     string `json:"id" yaml:"id"`
		Text   string `json:"text" yaml:"text"`
	}
)

func makeDump(bk *book.Book, result *layout.Result) *resultDump {
	dump := &resultDump{
		ID:        bk.ID,
		Title:     bk.Title,
		Language:  bk.Lang.String(),
		Pages:     make([]pageDump, 0, len(result.Pages)),
		PageCount: result.PageCount,
		FirstPage: result.FirstPage,
		Slices:    result.Slices,
	}
	for i := range result.Pages {
		dump.Pages = append(dump.Pages, makePageDump(&result.Pages[i]))
	}
	for _, fn := range bk.Footnotes.All() {
		dump.Footnotes = append(dump.Footnotes, footnoteDump{Number: fn.Number, ID: fn.ID, Text: fn.Text})
	}
	return dump
}

func makePageDump(p *layout.Page) pageDump {
	pd := pageDump{
		Chapter:    p.ChapterID,
		Subchapter: p.SubchapterID,
		Index:      p.Index,
		HasHeading: p.HasHeading,
		Hash:       p.Key.Hash,
		Fragments:  make([]fragmentDump, 0, len(p.Fragments)),
		Footnotes:  p.Footnotes,
	}
	for i := range p.Fragments {
		pd.Fragments = append(pd.Fragments, makeFragmentDump(&p.Fragments[i]))
	}
	return pd
}

func makeFragmentDump(f *layout.Fragment) fragmentDump {
	fd := fragmentDump{
		Block: f.Block.ID,
		Type:  f.Block.Type.String(),
		Start: f.Start,
		End:   f.End,
		Text:  f.Text(),
		Slice: f.Slice,
	}
	switch {
	case f.Block.Image != nil:
		fd.Href = f.Block.Image.Href
	case f.Block.Video != nil:
		fd.Href = f.Block.Video.Href
	case f.Block.Narration != nil:
		fd.Href = f.Block.Narration.Audio
	}
	if f.Markup != nil && f.Block.Type != book.BlockNarration {
		fd.Markup = serializeMarkup(f.Markup)
	}
	return fd
}

func serializeMarkup(el *etree.Element) string {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	out, err := doc.WriteToString()
	if err != nil {
		// etree string writer does not actually fail
		return ""
	}
	return out
}

func marshalDump(dump *resultDump, format config.OutputFmt) ([]byte, error) {
	switch format {
	case config.OutputFmtYAML:
		return yaml.Marshal(dump)
	default:
		return json.MarshalIndent(dump, "", "  ")
	}
}

// writeResult dumps the pagination result into a single JSON or YAML file.
func writeResult(bk *book.Book, result *layout.Result, outputName string, format config.OutputFmt) error {
	data, err := marshalDump(makeDump(bk, result), format)
	if err != nil {
		return fmt.Errorf("unable to marshal pagination result: %w", err)
	}
	return os.WriteFile(outputName, data, 0644)
}

// writeBundle produces a zip archive with the JSON result, the effective
// stylesheet and all media assets the book references. Raster images wider
// than the page are downscaled to it, a reader never needs more pixels than
// the page box can show.
func writeBundle(ctx context.Context, bk *book.Book, result *layout.Result, loader *assets.Loader, outputName string, css []byte, maxWidth int, log *zap.Logger) error {
	if err := loader.Wait(ctx); err != nil {
		return err
	}

	f, err := os.Create(outputName)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	data, err := marshalDump(makeDump(bk, result), config.OutputFmtJSON)
	if err != nil {
		return fmt.Errorf("unable to marshal pagination result: %w", err)
	}
	if err := writeDataToZip(zw, "pages.json", data); err != nil {
		return err
	}
	if err := writeDataToZip(zw, "stylesheet.css", css); err != nil {
		return err
	}

	for _, href := range loader.Hrefs() {
		data, err := loader.Normalized(href, maxWidth)
		if err != nil {
			log.Warn("Skipping unavailable asset", zap.String("href", href), zap.Error(err))
			continue
		}
		if err := writeDataToZip(zw, path.Join(mediaDir, path.Base(href)), data); err != nil {
			return err
		}
	}

	// make sure buffers are flushed before rewriting entry headers
	if err := zw.Close(); err != nil {
		return fmt.Errorf("unable to close output archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to finalize output file: %w", err)
	}

	// Some readers refuse archives with data descriptors, rewrite without
	// them.
	tmpName := outputName + ".tmp"
	if err := copyZipWithoutDataDescriptors(outputName, tmpName); err != nil {
		return err
	}
	return os.Rename(tmpName, outputName)
}

func copyZipWithoutDataDescriptors(from, to string) error {
	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("unable to create target file (%s): %w", to, err)
	}
	defer out.Close()

	r, err := fixzip.OpenReader(from)
	if err != nil {
		return fmt.Errorf("unable to read archive file (%s): %w", from, err)
	}
	defer r.Close()

	w := fixzip.NewWriter(out)
	defer w.Close()

	for _, file := range r.File {
		// unset data descriptor flag.
		file.Flags &= ^fixzip.FlagDataDescriptor

		// copy zip entry
		if err := w.CopyFile(file); err != nil {
			return fmt.Errorf("unable to write target file (%s): %w", to, err)
		}
	}
	return nil
}

func writeDataToZip(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(filepath.ToSlash(name))
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
