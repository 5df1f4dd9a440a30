package stream

import (
	"sort"

	"github.com/tradmak/aixos/internal/domain"
)

// merge folds one message into an ordered sequence, keeping it sorted
// ascending by (created_at, id) with no duplicate ids. Replaying the same
// message is a no-op beyond the first application.
func merge(list []domain.Message, msg domain.Message) []domain.Message {
	for i := range list {
		if list[i].ID == msg.ID {
			moved := !list[i].CreatedAt.Equal(msg.CreatedAt)
			list[i] = msg
			if moved {
				sort.SliceStable(list, func(a, b int) bool { return list[a].Before(list[b]) })
			}
			return list
		}
	}

	pos := sort.Search(len(list), func(i int) bool { return !list[i].Before(msg) })
	list = append(list, domain.Message{})
	copy(list[pos+1:], list[pos:])
	list[pos] = msg
	return list
}
