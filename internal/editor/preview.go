package editor

import (
	"bytes"
	"html/template"

	"github.com/debemdeboas/lending-admin/internal/model"
	"github.com/debemdeboas/lending-admin/internal/render"
)

var servicesPreview = template.Must(template.New("services").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Services preview</title>
<style>{{.CSS}}</style>
</head>
<body>
<main class="services-preview">
{{- range .Blocks}}
<section id="{{.ID}}">
<h2>{{.Heading}}</h2>
{{.Body}}
</section>
{{- else}}
<p class="empty">No service blocks yet.</p>
{{- end}}
</main>
</body>
</html>
`))

type previewBlock struct {
	ID      model.ItemID
	Heading string
	Body    template.HTML
}

// previewServices renders the unsaved service blocks in display order. With
// source set the markdown is shown highlighted instead of rendered.
func previewServices(r *render.Renderer, items model.Collection[model.ServiceBlock], source bool) ([]byte, error) {
	blocks := make([]previewBlock, 0, len(items))
	for _, it := range items.Sorted() {
		var body template.HTML
		if source {
			highlighted, err := r.HighlightSource(it.Fields.Body)
			if err != nil {
				editorLogger.Warn().Err(err).Str("id", string(it.ID)).Msg("Error highlighting service block")
				body = template.HTML(template.HTMLEscapeString(it.Fields.Body))
			} else {
				body = template.HTML(highlighted)
			}
		} else {
			body = template.HTML(r.RenderCached([]byte(it.Fields.Body)))
		}
		blocks = append(blocks, previewBlock{ID: it.ID, Heading: it.Fields.Heading, Body: body})
	}

	var buf bytes.Buffer
	err := servicesPreview.Execute(&buf, struct {
		CSS    template.CSS
		Blocks []previewBlock
	}{
		CSS:    r.SyntaxCSS(),
		Blocks: blocks,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
