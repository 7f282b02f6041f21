package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadSSE(t *testing.T) {
	stream := strings.Join([]string{
		"event: connected",
		`data: {"game_id":"game-1"}`,
		"",
		": keepalive",
		"",
		"event: change",
		"data: line one",
		"data: line two",
		"",
	}, "\n")

	var events []SSEEvent
	err := ReadSSE(strings.NewReader(stream), func(evt SSEEvent) error {
		events = append(events, evt)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, events, 2)
	assert.Equal(t, SSEEvent{Event: "connected", Data: `{"game_id":"game-1"}`}, events[0])
	assert.Equal(t, SSEEvent{Event: "change", Data: "line one\nline two"}, events[1])
}

func TestReadSSE_StopsOnCallbackError(t *testing.T) {
	stream := "event: change\ndata: 1\n\nevent: change\ndata: 2\n\n"

	calls := 0
	err := ReadSSE(strings.NewReader(stream), func(evt SSEEvent) error {
		calls++
		return errStopStream
	})
	assert.True(t, errors.Is(err, errStopStream))
	assert.Equal(t, 1, calls)
}

func TestReadSSE_IncompleteEventIsDropped(t *testing.T) {
	stream := "event: change\ndata: partial"

	called := false
	err := ReadSSE(strings.NewReader(stream), func(evt SSEEvent) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}
