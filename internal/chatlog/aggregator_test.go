package chatlog_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/cambio/internal/chat"
	"github.com/MrJamesThe3rd/cambio/internal/chatlog"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func at(id int64, offset time.Duration, content string) chat.Message {
	return chat.Message{ID: id, TransactionID: 42, Content: content, Timestamp: t0.Add(offset)}
}

func contents(msgs []chat.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Content)
	}

	return out
}

func TestAggregator_Append(t *testing.T) {
	type testCase struct {
		name  string
		input []chat.Message
		want  []string
	}

	tests := []testCase{
		{
			name:  "OutOfOrder",
			input: []chat.Message{at(2, 2*time.Second, "T2"), at(1, time.Second, "T1"), at(3, 3*time.Second, "T3")},
			want:  []string{"T1", "T2", "T3"},
		},
		{
			name:  "TiesKeepArrivalOrder",
			input: []chat.Message{at(1, time.Second, "a"), at(2, 0, "first"), at(3, time.Second, "b"), at(4, time.Second, "c")},
			want:  []string{"first", "a", "b", "c"},
		},
		{
			name:  "DuplicateServerID",
			input: []chat.Message{at(1, time.Second, "hola"), at(1, time.Second, "hola")},
			want:  []string{"hola"},
		},
		{
			name:  "IDLessNeverDeduplicated",
			input: []chat.Message{at(0, time.Second, "x"), at(0, time.Second, "x")},
			want:  []string{"x", "x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := chatlog.New()

			for _, m := range tt.input {
				agg.Append(42, m)
			}

			got := agg.MessagesFor(42)
			assert.Equal(t, tt.want, contents(got))

			for i := 1; i < len(got); i++ {
				assert.False(t, got[i].Timestamp.Before(got[i-1].Timestamp))
			}
		})
	}
}

func TestAggregator_AppendReportsDuplicates(t *testing.T) {
	agg := chatlog.New()

	assert.True(t, agg.Append(42, at(1, 0, "hola")))
	assert.False(t, agg.Append(42, at(1, 0, "hola")))
	assert.True(t, agg.Append(7, at(1, 0, "other chat")))
}

func TestAggregator_ClearAndEmpty(t *testing.T) {
	agg := chatlog.New()

	empty := agg.MessagesFor(42)
	require.NotNil(t, empty)
	assert.Empty(t, empty)

	agg.Append(42, at(1, 0, "hola"))
	agg.Append(7, at(2, 0, "untouched"))
	agg.Clear(42)
	agg.Clear(42)

	assert.NotNil(t, agg.MessagesFor(42))
	assert.Empty(t, agg.MessagesFor(42))
	assert.Len(t, agg.MessagesFor(7), 1)
}

func TestAggregator_AppendError(t *testing.T) {
	agg := chatlog.New(chatlog.WithClock(func() time.Time { return t0.Add(5 * time.Second) }))

	agg.Append(42, at(1, time.Second, "hola"))
	agg.AppendError(42, "could not send")
	agg.AppendError(42, "still failing")

	got := agg.MessagesFor(42)
	require.Len(t, got, 3)

	assert.False(t, got[0].Error)
	assert.True(t, got[1].Error)
	assert.Equal(t, "could not send", got[1].Description)
	assert.Negative(t, got[1].ID)
	assert.NotEqual(t, got[1].ID, got[2].ID)
}

func TestAggregator_StampsMissingTimestamp(t *testing.T) {
	agg := chatlog.New(chatlog.WithClock(func() time.Time { return t0.Add(90 * time.Second) }))

	agg.Append(42, at(1, 0, "first"))
	agg.Append(42, chat.Message{ID: 2, TransactionID: 42, Content: "unstamped"})
	agg.Append(42, at(3, time.Minute, "second"))

	msgs := agg.MessagesFor(42)
	assert.Equal(t, []string{"first", "second", "unstamped"}, contents(msgs))
	assert.True(t, t0.Add(90*time.Second).Equal(msgs[2].Timestamp))
}

func TestAggregator_ReturnsCopy(t *testing.T) {
	agg := chatlog.New()
	agg.Append(42, at(1, 0, "hola"))

	got := agg.MessagesFor(42)
	got[0].Content = "changed"

	assert.Equal(t, "hola", agg.MessagesFor(42)[0].Content)
}

func TestAggregator_Notify(t *testing.T) {
	var changed []int64

	agg := chatlog.New(chatlog.WithNotify(func(id int64) { changed = append(changed, id) }))

	agg.Append(42, at(1, 0, "hola"))
	agg.Append(42, at(1, 0, "hola"))
	agg.Clear(42)
	agg.Clear(99)

	assert.Equal(t, []int64{42, 42}, changed)
}
