package voice

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"golang.org/x/text/unicode/norm"
)

// Normalize prepares raw response text for synthesis: markdown markers
// are stripped by walking the parsed AST, the result is NFC-normalized
// so visually identical strings hash identically, whitespace collapses
// to single spaces, and the text is truncated to maxLen runes.
func Normalize(raw string, maxLen int) string {
	plain := stripMarkup(raw)
	plain = norm.NFC.String(plain)
	plain = strings.Join(strings.Fields(plain), " ")
	return truncate(plain, maxLen)
}

// stripMarkup extracts speakable text from markdown. Markers (emphasis,
// headings, fences, link syntax) disappear; the text they wrap stays.
func stripMarkup(markdown string) string {
	md := goldmark.New()
	reader := gmtext.NewReader([]byte(markdown))
	doc := md.Parser().Parse(reader)
	source := reader.Source()

	var buf strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			// Block boundaries become soft separators so adjacent
			// paragraphs do not fuse into one word.
			if n.Type() == ast.TypeBlock {
				buf.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.AutoLink:
			buf.Write(t.URL(source))
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			writeBlockLines(n, source, &buf)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func writeBlockLines(n ast.Node, source []byte, buf *strings.Builder) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(source))
		buf.WriteByte(' ')
	}
}

// truncate cuts at a rune boundary, preferring the last space inside the
// window so words are not cut in half.
func truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	cut := string(runes[:maxLen])
	if idx := strings.LastIndexByte(cut, ' '); idx > maxLen/2 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ")
}
