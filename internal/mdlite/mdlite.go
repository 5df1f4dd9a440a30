// Package mdlite partitions AI reply text into prose and pipe-table blocks
// for display. It is deliberately not a markdown implementation: text is
// preserved verbatim except that table divider rows (---|---) are
// suppressed.
package mdlite

import "strings"

type BlockKind int

const (
	BlockProse BlockKind = iota
	BlockSpacing
	BlockTable
)

type Block struct {
	Kind   BlockKind
	Text   string     // prose only, verbatim
	Header []string   // table only
	Rows   [][]string // table only, body rows
}

// Render scans content line by line. A line is a table row iff it contains
// a pipe; leading and trailing pipes are optional because the reasoning
// gateway emits both "| a | b |" and "a | b" forms. Consecutive table rows
// accumulate into one table; the first retained row is the header. A row
// whose cells consist only of ':', '-' and whitespace is the markdown
// header divider and is dropped. The first non-table line flushes the
// buffered table. Blank non-table lines become spacing; anything else is a
// prose paragraph, verbatim.
func Render(content string) []Block {
	var blocks []Block
	var table [][]string

	flush := func() {
		if len(table) == 0 {
			return
		}
		block := Block{Kind: BlockTable, Header: table[0]}
		if len(table) > 1 {
			block.Rows = table[1:]
		}
		blocks = append(blocks, block)
		table = nil
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.Contains(trimmed, "|") {
			cells := splitCells(trimmed)
			if isDivider(cells) {
				continue
			}
			table = append(table, cells)
			continue
		}
		flush()
		if trimmed == "" {
			blocks = append(blocks, Block{Kind: BlockSpacing})
		} else {
			blocks = append(blocks, Block{Kind: BlockProse, Text: line})
		}
	}
	flush()
	return blocks
}

func splitCells(row string) []string {
	row = strings.TrimPrefix(row, "|")
	row = strings.TrimSuffix(row, "|")
	parts := strings.Split(row, "|")
	cells := make([]string, len(parts))
	for i, p := range parts {
		cells[i] = strings.TrimSpace(p)
	}
	return cells
}

func isDivider(cells []string) bool {
	if len(cells) == 0 {
		return false
	}
	for _, c := range cells {
		if c == "" {
			return false
		}
		for _, r := range c {
			switch r {
			case ':', '-', ' ', '\t':
			default:
				return false
			}
		}
	}
	return true
}
