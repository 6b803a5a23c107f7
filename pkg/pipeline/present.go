package pipeline

import (
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"regexp"
	"strings"

	"github.com/plantpipe/plantpipe/pkg/cache"
	"github.com/plantpipe/plantpipe/pkg/plantuml"
)

// Presenter consumes a finished render, one callback per output kind.
// The key passed to PresentImageWithMap identifies the diagram for element
// naming; the map markup may be empty.
type Presenter interface {
	PresentText(text string) error
	PresentSVG(svg string) error
	PresentImageWithMap(image []byte, mapHTML, key string) error
}

// Present routes the result to the presenter callback for its format.
func (res *Result) Present(p Presenter) error {
	switch res.Format {
	case plantuml.FormatASCII:
		return p.PresentText(string(res.Artifact))
	case plantuml.FormatSVG:
		return p.PresentSVG(string(res.Artifact))
	case plantuml.FormatPNG:
		return p.PresentImageWithMap(res.Artifact, res.Map, res.Key)
	}
	return fmt.Errorf("unknown format %q", res.Format)
}

// RenderTo renders the request and hands the result to the presenter.
// A failed render presents nothing.
func (r *Runner) RenderTo(ctx context.Context, req Request, p Presenter) (*Result, error) {
	result, err := r.Render(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := result.Present(p); err != nil {
		return nil, err
	}
	return result, nil
}

// RawPresenter writes the bare artifact to W: text and svg as-is, png as raw
// image bytes with the map discarded.
type RawPresenter struct {
	W io.Writer
}

func (p RawPresenter) PresentText(text string) error {
	_, err := io.WriteString(p.W, text)
	return err
}

func (p RawPresenter) PresentSVG(svg string) error {
	_, err := io.WriteString(p.W, svg)
	return err
}

func (p RawPresenter) PresentImageWithMap(image []byte, mapHTML, key string) error {
	_, err := p.W.Write(image)
	return err
}

// HTMLPresenter writes a standalone HTML page embedding the artifact.
// Text renders inside <pre>, svg inlines as markup, and png becomes a
// base64 data URI with the image map attached via usemap when present.
type HTMLPresenter struct {
	W io.Writer
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>diagram</title>
</head>
<body>
{{.}}
</body>
</html>
`))

func (p HTMLPresenter) PresentText(text string) error {
	return p.page(template.HTML("<pre>" + template.HTMLEscapeString(text) + "</pre>"))
}

func (p HTMLPresenter) PresentSVG(svg string) error {
	return p.page(template.HTML(svg))
}

func (p HTMLPresenter) PresentImageWithMap(image []byte, mapHTML, key string) error {
	var b strings.Builder
	fmt.Fprintf(&b, `<img id="diagram-%s" src="data:image/png;base64,`, cache.Hash([]byte(key))[:12])
	b.WriteString(base64.StdEncoding.EncodeToString(image))
	b.WriteString(`" alt="diagram"`)
	if name := mapName(mapHTML); name != "" {
		fmt.Fprintf(&b, ` usemap="#%s"`, name)
	}
	b.WriteString(">\n")
	b.WriteString(mapHTML)
	return p.page(template.HTML(b.String()))
}

func (p HTMLPresenter) page(body template.HTML) error {
	return pageTemplate.Execute(p.W, body)
}

// mapNamePattern matches the name attribute of the <map> element emitted by
// the map renderer.
var mapNamePattern = regexp.MustCompile(`<map[^>]*\sname="([^"]+)"`)

// mapName extracts the map element's name so the image can reference it.
func mapName(mapHTML string) string {
	m := mapNamePattern.FindStringSubmatch(mapHTML)
	if m == nil {
		return ""
	}
	return m[1]
}
