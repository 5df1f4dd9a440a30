package mdlite

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderTableWithoutEdgePipes(t *testing.T) {
	content := "Name | Score\n---|---\nAlice | 9\nBob | 7"

	blocks := Render(content)

	require.Len(t, blocks, 1)
	table := blocks[0]
	require.Equal(t, BlockTable, table.Kind)
	require.Equal(t, []string{"Name", "Score"}, table.Header)
	require.Equal(t, [][]string{{"Alice", "9"}, {"Bob", "7"}}, table.Rows)
}

func TestRenderTableWithEdgePipes(t *testing.T) {
	content := "| Metric | Value |\n|---|---|\n| Contacts | 42 |"

	blocks := Render(content)

	require.Len(t, blocks, 1)
	require.Equal(t, BlockTable, blocks[0].Kind)
	require.Equal(t, []string{"Metric", "Value"}, blocks[0].Header)
	require.Equal(t, [][]string{{"Contacts", "42"}}, blocks[0].Rows)
}

func TestRenderDividerVariantsSuppressed(t *testing.T) {
	for _, divider := range []string{"---|---", ":--|--:", " :-: | :-: ", "|---|---|"} {
		blocks := Render("a | b\n" + divider + "\nc | d")
		require.Len(t, blocks, 1, "divider %q", divider)
		require.Equal(t, [][]string{{"c", "d"}}, blocks[0].Rows, "divider %q", divider)
	}
}

func TestRenderProseFlushesTable(t *testing.T) {
	content := "Here are the results:\na | b\n1 | 2\nThat is all."

	blocks := Render(content)

	require.Len(t, blocks, 3)
	require.Equal(t, BlockProse, blocks[0].Kind)
	require.Equal(t, "Here are the results:", blocks[0].Text)
	require.Equal(t, BlockTable, blocks[1].Kind)
	require.Equal(t, BlockProse, blocks[2].Kind)
}

func TestRenderBlankLinesBecomeSpacing(t *testing.T) {
	blocks := Render("first\n\nsecond")

	require.Len(t, blocks, 3)
	require.Equal(t, BlockProse, blocks[0].Kind)
	require.Equal(t, BlockSpacing, blocks[1].Kind)
	require.Equal(t, BlockProse, blocks[2].Kind)
}

func TestRenderProseIsVerbatim(t *testing.T) {
	// No markdown interpretation: emphasis markers and indentation survive.
	line := "  **bold** and _underscore_ stay as-is"

	blocks := Render(line)

	require.Len(t, blocks, 1)
	require.Equal(t, line, blocks[0].Text)
}

func TestRenderHeaderOnlyTable(t *testing.T) {
	blocks := Render("a | b")

	require.Len(t, blocks, 1)
	require.Equal(t, BlockTable, blocks[0].Kind)
	require.Equal(t, []string{"a", "b"}, blocks[0].Header)
	require.Empty(t, blocks[0].Rows)
}

func TestRenderTwoTablesSeparatedByProse(t *testing.T) {
	content := "a | b\n1 | 2\nand now\nc | d\n3 | 4"

	blocks := Render(content)

	require.Len(t, blocks, 3)
	require.Equal(t, BlockTable, blocks[0].Kind)
	require.Equal(t, BlockProse, blocks[1].Kind)
	require.Equal(t, BlockTable, blocks[2].Kind)
	require.Equal(t, []string{"c", "d"}, blocks[2].Header)
}
