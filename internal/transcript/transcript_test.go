package transcript

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBasicExchange(t *testing.T) {
	raw := "user:- Hi there\nbot:- Hello! How can I help?\n"

	turns := Parse(raw)

	require.Equal(t, []Turn{
		{Role: RoleUser, Content: "Hi there"},
		{Role: RoleAI, Content: "Hello! How can I help?"},
	}, turns)
}

func TestParseQuotedBlobWithEscapedNewlines(t *testing.T) {
	// The logging side stores the blob JSON-quoted with literal \n sequences.
	raw := `"user:- What are your prices?\nbot:- Plans start at $29/mo.\nuser:- Thanks"`

	turns := Parse(raw)

	require.Equal(t, []Turn{
		{Role: RoleUser, Content: "What are your prices?"},
		{Role: RoleAI, Content: "Plans start at $29/mo."},
		{Role: RoleUser, Content: "Thanks"},
	}, turns)
}

func TestParseDropsUnmarkedLinesSilently(t *testing.T) {
	raw := "session-id: 99812\nuser:- Hello\nsome stray metadata\nbot:- Hi!\n\n"

	turns := Parse(raw)

	require.Equal(t, []Turn{
		{Role: RoleUser, Content: "Hello"},
		{Role: RoleAI, Content: "Hi!"},
	}, turns)
}

func TestParsePreservesInputOrder(t *testing.T) {
	raw := "bot:- Welcome!\nuser:- Hi\nbot:- How can I help?\nuser:- Pricing please"

	turns := Parse(raw)

	require.Len(t, turns, 4)
	require.Equal(t, RoleAI, turns[0].Role)
	require.Equal(t, RoleUser, turns[1].Role)
	require.Equal(t, RoleAI, turns[2].Role)
	require.Equal(t, RoleUser, turns[3].Role)
}

func TestParseEmptyAndBlankBlobs(t *testing.T) {
	require.Nil(t, Parse(""))
	require.Nil(t, Parse("   \n  \n"))
	require.Nil(t, Parse(`""`))
}

func TestTurnsIsRestartable(t *testing.T) {
	seq := Turns("user:- one\nbot:- two")

	var first, second []Turn
	for turn := range seq {
		first = append(first, turn)
	}
	for turn := range seq {
		second = append(second, turn)
	}

	require.Equal(t, first, second)
	require.Len(t, first, 2)
}

func TestTurnsStopsWhenYieldReturnsFalse(t *testing.T) {
	seq := Turns("user:- one\nbot:- two\nuser:- three")

	var got []Turn
	for turn := range seq {
		got = append(got, turn)
		if len(got) == 2 {
			break
		}
	}

	require.Len(t, got, 2)
}

func TestParseTrimsMarkerWhitespace(t *testing.T) {
	raw := "user:-    padded input   \nbot:-answer"

	turns := Parse(raw)

	require.Equal(t, []Turn{
		{Role: RoleUser, Content: "padded input"},
		{Role: RoleAI, Content: "answer"},
	}, turns)
}
