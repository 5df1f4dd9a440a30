package httpdto

import "github.com/tradmak/aixos/internal/mdlite"

// RenderedBlock is the wire form of a display block. AI replies ship both
// the raw text and its block partition so the browser never re-parses.
type RenderedBlock struct {
	Kind   string     `json:"kind"` // prose | spacing | table
	Text   string     `json:"text,omitempty"`
	Header []string   `json:"header,omitempty"`
	Rows   [][]string `json:"rows,omitempty"`
}

func RenderBlocks(content string) []RenderedBlock {
	blocks := mdlite.Render(content)
	out := make([]RenderedBlock, 0, len(blocks))
	for _, b := range blocks {
		rb := RenderedBlock{Text: b.Text, Header: b.Header, Rows: b.Rows}
		switch b.Kind {
		case mdlite.BlockTable:
			rb.Kind = "table"
		case mdlite.BlockSpacing:
			rb.Kind = "spacing"
		default:
			rb.Kind = "prose"
		}
		out = append(out, rb)
	}
	return out
}
