package chat

import (
	"math/rand/v2"
	"strconv"
	"testing"

	"github.com/klipach/chatroom/contract"
	"github.com/stretchr/testify/require"
)

func TestOrder(t *testing.T) {
	tests := []struct {
		name     string
		records  map[string]contract.Message
		expected []string
	}{
		{
			name:     "nil snapshot",
			records:  nil,
			expected: []string{},
		},
		{
			name: "by timestamp",
			records: map[string]contract.Message{
				"c": {Text: "third", Timestamp: 30},
				"a": {Text: "first", Timestamp: 10},
				"b": {Text: "second", Timestamp: 20},
			},
			expected: []string{"a", "b", "c"},
		},
		{
			name: "same millisecond falls back to id",
			records: map[string]contract.Message{
				"-Nb": {Text: "later key", Timestamp: 10},
				"-Na": {Text: "earlier key", Timestamp: 10},
				"-Mz": {Text: "older", Timestamp: 5},
			},
			expected: []string{"-Mz", "-Na", "-Nb"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := []string{}
			for _, m := range Order(tt.records) {
				ids = append(ids, m.ID)
			}
			require.Equal(t, tt.expected, ids)
		})
	}
}

func TestOrderIsSortedForRandomSnapshots(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for range 50 {
		records := make(map[string]contract.Message)
		for i := range r.IntN(40) {
			records[strconv.Itoa(i)] = contract.Message{Timestamp: r.Int64N(10)}
		}
		ordered := Order(records)
		require.Len(t, ordered, len(records))
		for i := 1; i < len(ordered); i++ {
			require.LessOrEqual(t, ordered[i-1].Timestamp, ordered[i].Timestamp)
		}
	}
}

func TestOrderUsesSnapshotKeyAsID(t *testing.T) {
	ordered := Order(map[string]contract.Message{"key": {ID: "stale", Timestamp: 1}})
	require.Equal(t, "key", ordered[0].ID)
}
