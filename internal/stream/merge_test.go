package stream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradmak/aixos/internal/domain"
)

func msgAt(id string, at time.Time) domain.Message {
	return domain.Message{ID: id, ConversationID: "c1", Content: "m-" + id, CreatedAt: at}
}

func ids(list []domain.Message) []string {
	out := make([]string, 0, len(list))
	for _, m := range list {
		out = append(out, m.ID)
	}
	return out
}

func TestMergeKeepsAscendingOrder(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var list []domain.Message
	// Deliberately out of order.
	list = merge(list, msgAt("c", base.Add(2*time.Second)))
	list = merge(list, msgAt("a", base))
	list = merge(list, msgAt("d", base.Add(3*time.Second)))
	list = merge(list, msgAt("b", base.Add(1*time.Second)))

	require.Equal(t, []string{"a", "b", "c", "d"}, ids(list))
}

func TestMergeTimestampTieBreaksOnID(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var list []domain.Message
	list = merge(list, msgAt("b", at))
	list = merge(list, msgAt("a", at))

	require.Equal(t, []string{"a", "b"}, ids(list))
}

func TestMergeIsIdempotent(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := msgAt("x", at)

	var list []domain.Message
	list = merge(list, m)
	list = merge(list, m)
	list = merge(list, m)

	require.Len(t, list, 1)
}

func TestMergeReplacesAndResortsOnTimestampChange(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var list []domain.Message
	list = merge(list, msgAt("a", base))
	list = merge(list, msgAt("b", base.Add(time.Second)))
	list = merge(list, msgAt("c", base.Add(2*time.Second)))

	// "a" arrives again with an authoritative later timestamp.
	list = merge(list, msgAt("a", base.Add(3*time.Second)))

	require.Equal(t, []string{"b", "c", "a"}, ids(list))
	require.Len(t, list, 3)
}

func TestMergeUpdatesContentInPlace(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var list []domain.Message
	list = merge(list, msgAt("a", at))

	edited := msgAt("a", at)
	edited.Content = "edited"
	list = merge(list, edited)

	require.Len(t, list, 1)
	require.Equal(t, "edited", list[0].Content)
}
