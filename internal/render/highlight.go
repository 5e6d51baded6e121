package render

import (
	"bytes"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// HighlightSource shows the raw markdown of a block with syntax colouring,
// for the preview's source view.
func (r *Renderer) HighlightSource(md string) (string, error) {
	lexer := lexers.Get("markdown")
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := styles.Get(r.syntaxTheme)
	if style == nil {
		style = styles.Fallback
	}

	formatter := chromahtml.New(
		chromahtml.WithClasses(true),
		chromahtml.WithLineNumbers(false),
		chromahtml.PreventSurroundingPre(true),
	)

	var buf bytes.Buffer
	iterator, err := lexer.Tokenise(nil, md)
	if err != nil {
		return md, err
	}
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return md, err
	}

	result := `<div class="markdown-source">` + buf.String() + `</div>`
	return strings.ReplaceAll(result, "\n", "<br>\n"), nil
}
