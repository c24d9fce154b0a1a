package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// DefaultMathDelimiter encloses inline math when math_delimiter is unset.
const DefaultMathDelimiter = "$"

// MathTag marks a post whose body contains math. Matched case
// insensitively.
const MathTag = "math"

// Markdown converts post bodies to HTML. Posts tagged math are converted
// with math spans passed through untouched for MathJax.
type Markdown struct {
	delim string
	plain goldmark.Markdown
	math  goldmark.Markdown
}

// NewMarkdown returns a converter using delim to find math spans.
func NewMarkdown(delim string) *Markdown {
	if delim == "" {
		delim = DefaultMathDelimiter
	}
	return &Markdown{
		delim: delim,
		plain: newGoldmark(),
		math: newGoldmark(goldmark.WithParserOptions(
			parser.WithInlineParsers(util.Prioritized(&mathParser{delim: []byte(delim)}, 150)),
		)),
	}
}

func newGoldmark(opts ...goldmark.Option) goldmark.Markdown {
	base := []goldmark.Option{
		goldmark.WithExtensions(extension.GFM, extension.Footnote),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	}
	return goldmark.New(append(base, opts...)...)
}

// Delimiter returns the math delimiter.
func (m *Markdown) Delimiter() string { return m.delim }

// Convert renders body to HTML.
func (m *Markdown) Convert(body string, math bool) (string, error) {
	md := m.plain
	if math {
		md = m.math
	}
	var buf bytes.Buffer
	if err := md.Convert([]byte(body), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// mathParser keeps delimited spans, delimiters included, as raw text so
// emphasis and escapes inside formulas are left alone.
type mathParser struct {
	delim []byte
}

func (p *mathParser) Trigger() []byte {
	return []byte{p.delim[0]}
}

func (p *mathParser) Parse(_ ast.Node, block text.Reader, _ parser.Context) ast.Node {
	line, _ := block.PeekLine()
	if !bytes.HasPrefix(line, p.delim) {
		return nil
	}
	end := bytes.Index(line[len(p.delim):], p.delim)
	if end < 1 {
		return nil
	}
	n := 2*len(p.delim) + end
	node := ast.NewString(bytes.Clone(line[:n]))
	node.SetRaw(true)
	block.Advance(n)
	return node
}

const mathJaxScript = `<script type="text/x-mathjax-config">
MathJax.Hub.Config({
  asciimath2jax: {
    delimiters: [['%[1]s','%[1]s']]
  }
});
</script>
<script type="text/javascript" src="https://cdnjs.cloudflare.com/ajax/libs/mathjax/2.7.9/MathJax.js?config=TeX-MML-AM_HTMLorMML"></script>
</head>`

// injectMathJax loads MathJax configured for delim before </head>.
func injectMathJax(page, delim string) string {
	return strings.Replace(page, "</head>", fmt.Sprintf(mathJaxScript, delim), 1)
}
