package inference

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversation_SendsSystemPromptAndHistory(t *testing.T) {
	mock := &Mock{}
	conv := NewConversation(mock, "be brief", 5)
	ctx := context.Background()

	_, err := conv.Chat(ctx, "first")
	require.NoError(t, err)
	reply, err := conv.Chat(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, "Mock response", reply)

	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "first"},
		{Role: RoleAssistant, Content: "Mock response"},
		{Role: RoleUser, Content: "second"},
	}, reqs[1].Messages)
}

func TestConversation_TrimsHistory(t *testing.T) {
	mock := &Mock{Respond: func(req Request) (Reply, error) {
		last := req.Messages[len(req.Messages)-1].Content
		return Reply{Text: "  re: " + last + "\n"}, nil
	}}
	conv := NewConversation(mock, "", 2)

	for i := range 4 {
		_, err := conv.Chat(context.Background(), fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	history := conv.History()
	require.Len(t, history, 4)
	assert.Equal(t, "msg 2", history[0].Content)
	assert.Equal(t, "re: msg 3", history[3].Content)

	conv.Reset()
	assert.Empty(t, conv.History())
}

func TestConversation_FailedTurnNotRecorded(t *testing.T) {
	boom := errors.New("rate limited")
	conv := NewConversation(NewMock(boom), "sys", 0)

	_, err := conv.Chat(context.Background(), "hello")
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, conv.History())
}

func TestConversation_NilProvider(t *testing.T) {
	conv := NewConversation(nil, "", 0)
	_, err := conv.Chat(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrUnavailable)
}
