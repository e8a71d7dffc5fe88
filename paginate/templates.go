package paginate

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"github.com/tianBreznik/overstimulata-sub000/book"
	"github.com/tianBreznik/overstimulata-sub000/config"
	"github.com/tianBreznik/overstimulata-sub000/layout"
)

type ChapterDefinition struct {
	ID    string
	Title string
	Pages int
}

// Values is a struct that holds variables we make available for template expansion
type Values struct {
	Context    string
	Title      string
	Language   string
	Format     string
	SourceFile string
	BookID     string
	Chapters   []ChapterDefinition
	Pages      int
	Footnotes  int
	Narrations int
}

func buildChapters(bk *book.Book, result *layout.Result) []ChapterDefinition {
	defs := make([]ChapterDefinition, 0, len(bk.Chapters))
	for i := range bk.Chapters {
		defs = append(defs, ChapterDefinition{
			ID:    bk.Chapters[i].ID,
			Title: bk.Chapters[i].Title,
			Pages: result.PageCount[bk.Chapters[i].ID],
		})
	}
	return defs
}

func expandTemplate(bk *book.Book, result *layout.Result, src string, name config.TemplateFieldName, field string, format config.OutputFmt) (string, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	values := Values{
		Context:    string(name),
		Title:      bk.Title,
		Language:   bk.Lang.String(),
		Format:     format.String(),
		SourceFile: strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)),
		BookID:     bk.ID,
		Chapters:   buildChapters(bk, result),
		Pages:      len(result.Pages),
		Footnotes:  bk.Footnotes.Len(),
		Narrations: len(bk.Narrations),
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}
