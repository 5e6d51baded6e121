// Package render turns service block markdown into preview HTML with
// highlighted code blocks.
package render

import (
	"fmt"
	"html"
	"html/template"
	"io"
	"strings"
	"sync"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	md_html "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mmarkdown/mmark/v2/lang"
	"github.com/mmarkdown/mmark/v2/mast"
	"github.com/mmarkdown/mmark/v2/mparser"
	"github.com/mmarkdown/mmark/v2/render/mhtml"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/lending-admin/internal/cache"
	"github.com/debemdeboas/lending-admin/internal/config"
	"github.com/debemdeboas/lending-admin/internal/util"
)

var renderLogger = zerolog.Nop()

func SetLogger(l zerolog.Logger) {
	renderLogger = l
}

type Renderer struct {
	kind        string
	syntaxTheme string
	formatter   *chromahtml.Formatter

	// mu protects the check-render-set sequence of RenderCached.
	mu sync.Mutex

	cssOnce sync.Once
	css     template.CSS
}

func New(cfg config.RenderConfig) *Renderer {
	kind := cfg.Renderer
	if kind != config.RendererClassic {
		kind = config.RendererMmark
	}
	theme := cfg.SyntaxTheme
	if styles.Get(theme) == styles.Fallback {
		renderLogger.Warn().Str("syntax_theme", theme).Msg("Unknown syntax theme, using fallback")
	}

	return &Renderer{
		kind:        kind,
		syntaxTheme: theme,
		formatter: chromahtml.New(
			chromahtml.WithClasses(true),
			chromahtml.TabWidth(4),
			chromahtml.WithLineNumbers(true),
			chromahtml.WrapLongLines(true),
		),
	}
}

func (r *Renderer) variant() string {
	return r.kind + ":" + r.syntaxTheme
}

func (r *Renderer) Render(md []byte) []byte {
	if r.kind == config.RendererClassic {
		return r.renderClassic(md)
	}
	return r.renderMmark(md)
}

// RenderCached renders md once per content hash and renderer variant.
func (r *Renderer) RenderCached(md []byte) []byte {
	contentHash := util.ContentHash(md)

	if cached, found := cache.GetRendered(contentHash, r.variant()); found {
		renderLogger.Debug().Str("contentHash", contentHash).Msg("Cache hit for rendered markdown")
		return cached
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, found := cache.GetRendered(contentHash, r.variant()); found {
		return cached
	}

	renderLogger.Debug().Str("contentHash", contentHash).Msg("Cache miss for rendered markdown")
	rendered := r.Render(md)
	cache.SetRendered(contentHash, r.variant(), rendered)
	return rendered
}

func (r *Renderer) HighlightCode(code, language string) string {
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	iterator, err := lexer.Tokenise(nil, code)
	if err != nil {
		return code
	}

	var buf strings.Builder
	if err := r.formatter.Format(&buf, styles.Get(r.syntaxTheme), iterator); err != nil {
		return code
	}

	res := html.UnescapeString(buf.String())
	return config.RegexCallout.ReplaceAllString(res, "<span class=\"callout\">$1</span>")
}

func (r *Renderer) codeBlockHook(w io.Writer, node ast.Node, entering bool) bool {
	code, ok := node.(*ast.CodeBlock)
	if !ok || !entering {
		return false
	}

	var language string
	if info := code.Info; info != nil {
		language = string(info)
	}
	fmt.Fprintf(w, "<div class=\"highlight\">%s</div>", r.HighlightCode(string(code.Literal), language))
	return true
}

func (r *Renderer) renderClassic(md []byte) []byte {
	opts := md_html.RendererOptions{
		Flags:    md_html.CommonFlags | md_html.HrefTargetBlank | md_html.FootnoteReturnLinks,
		Comments: [][]byte{[]byte("//"), []byte("#")},
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if r.codeBlockHook(w, node, entering) {
				return ast.GoToNext, true
			}
			if callout, ok := node.(*ast.Callout); ok && entering {
				fmt.Fprintf(w, "<span class=\"callout\">%s</span>", callout.ID)
				return ast.GoToNext, true
			}
			return ast.GoToNext, false
		},
	}

	doc := parser.NewWithExtensions(
		parser.Tables | parser.FencedCode | parser.Autolink | parser.Strikethrough | parser.SpaceHeadings |
			parser.HeadingIDs | parser.BackslashLineBreak | parser.SuperSubscript | parser.DefinitionLists |
			parser.AutoHeadingIDs | parser.Footnotes | parser.OrderedListStart | parser.Attributes |
			parser.NonBlockingSpace,
	).Parse(md)
	return markdown.Render(doc, md_html.NewRenderer(opts))
}

func (r *Renderer) renderMmark(md []byte) []byte {
	md = markdown.NormalizeNewlines(md)

	p := parser.NewWithExtensions(mparser.Extensions | parser.NoIntraEmphasis)

	init := mparser.NewInitial("")
	var info *mast.TitleData

	p.Opts = parser.Options{
		ParserHook: func(data []byte) (ast.Node, []byte, int) {
			node, data, consumed := mparser.Hook(data)
			if t, ok := node.(*mast.Title); ok {
				info = t.TitleData
			}
			return node, data, consumed
		},
		ReadIncludeFn: init.ReadInclude,
		Flags:         parser.FlagsNone,
	}

	doc := markdown.Parse(md, p)
	mparser.AddIndex(doc)

	language := "en"
	if info != nil && info.Language != "" {
		language = info.Language
	}
	mhtmlOpts := mhtml.RendererOptions{
		Language: lang.New(language),
	}

	opts := md_html.RendererOptions{
		Comments: [][]byte{[]byte("//"), []byte("#")},
		RenderNodeHook: func(w io.Writer, node ast.Node, entering bool) (ast.WalkStatus, bool) {
			if r.codeBlockHook(w, node, entering) {
				return ast.GoToNext, true
			}
			return mhtmlOpts.RenderHook(w, node, entering)
		},
		Flags: md_html.CommonFlags | md_html.FootnoteNoHRTag | md_html.FootnoteReturnLinks,
	}

	return markdown.Render(doc, md_html.NewRenderer(opts))
}

// SyntaxCSS returns the stylesheet for highlighted code in the configured theme.
func (r *Renderer) SyntaxCSS() template.CSS {
	r.cssOnce.Do(func() {
		var buf strings.Builder
		style := styles.Get(r.syntaxTheme)

		bg := style.Get(chroma.Background)
		if !bg.Colour.IsSet() {
			// Dark text when the theme leaves it unset on a light background.
			luminance := (0.299*float64(bg.Background.Red()) +
				0.587*float64(bg.Background.Green()) +
				0.114*float64(bg.Background.Blue())) / 255
			if luminance > 0.5 {
				buf.WriteString(".chroma { color: #181818; }\n")
			}
		}

		if err := r.formatter.WriteCSS(&buf, style); err != nil {
			renderLogger.Error().Err(err).Str("syntax_theme", r.syntaxTheme).Msg("Error generating syntax CSS")
		}
		r.css = template.CSS(buf.String())
	})
	return r.css
}
