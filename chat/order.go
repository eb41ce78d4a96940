package chat

import (
	"cmp"
	"slices"

	"github.com/klipach/chatroom/contract"
	"github.com/samber/lo"
)

// Order projects a snapshot onto a list sorted by timestamp. Messages sent in
// the same millisecond are ordered by their store id.
func Order(records map[string]contract.Message) []contract.Message {
	messages := lo.MapToSlice(records, func(id string, m contract.Message) contract.Message {
		m.ID = id
		return m
	})
	slices.SortFunc(messages, func(a, b contract.Message) int {
		if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return messages
}
