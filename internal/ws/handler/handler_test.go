package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Khuzaim123/nomadnet-messaging/internal/auth"
	"github.com/Khuzaim123/nomadnet-messaging/internal/checkin"
	"github.com/Khuzaim123/nomadnet-messaging/internal/conversations"
	"github.com/Khuzaim123/nomadnet-messaging/internal/marketplace"
	"github.com/Khuzaim123/nomadnet-messaging/internal/messages"
	"github.com/Khuzaim123/nomadnet-messaging/internal/messaging"
	usersrepo "github.com/Khuzaim123/nomadnet-messaging/internal/users/repo"
	wsevents "github.com/Khuzaim123/nomadnet-messaging/internal/ws"
	"github.com/Khuzaim123/nomadnet-messaging/internal/ws/hub"
)

// stubConversations knows exactly one conversation; everything else is not
// found. Enough for the membership gate the socket handler relies on.
type stubConversations struct {
	conv conversations.Conversation
}

func (s stubConversations) GetOrCreate(_ context.Context, _, _ uuid.UUID) (conversations.Conversation, bool, error) {
	return s.conv, false, nil
}

func (s stubConversations) GetByID(_ context.Context, id uuid.UUID) (conversations.Conversation, error) {
	if id != s.conv.ID {
		return conversations.Conversation{}, conversations.ErrConversationNotFound
	}
	return s.conv, nil
}

func (s stubConversations) GetMember(_ context.Context, _, _ uuid.UUID) (conversations.Member, error) {
	return conversations.Member{}, nil
}

func (s stubConversations) List(_ context.Context, _ uuid.UUID, _ bool, _, _ int) ([]conversations.Summary, error) {
	return nil, nil
}

func (s stubConversations) ToggleArchive(_ context.Context, _, _ uuid.UUID) (bool, error) {
	return false, nil
}

func (s stubConversations) UnreadTotal(_ context.Context, _ uuid.UUID) (int64, error) {
	return 0, nil
}

func (s stubConversations) RecountUnread(_ context.Context, _ uuid.UUID) error { return nil }

func (s stubConversations) ListIDs(_ context.Context) ([]uuid.UUID, error) { return nil, nil }

type stubMessages struct{}

func (stubMessages) Create(_ context.Context, _ *messages.Message) error { return nil }

func (stubMessages) GetByID(_ context.Context, _ uuid.UUID) (messages.Message, error) {
	return messages.Message{}, messages.ErrMessageNotFound
}

func (stubMessages) List(_ context.Context, _, _ uuid.UUID, _, _ int) ([]messages.Message, error) {
	return nil, nil
}

func (stubMessages) MarkAllRead(_ context.Context, _, _ uuid.UUID, _ time.Time) ([]uuid.UUID, error) {
	return nil, nil
}

func (stubMessages) MarkRead(_ context.Context, _, _ uuid.UUID, _ time.Time) (bool, error) {
	return false, nil
}

func (stubMessages) Delete(_ context.Context, _, _ uuid.UUID) (bool, error) { return false, nil }

func (stubMessages) DeleteAllFor(_ context.Context, _, _ uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (stubMessages) Edit(_ context.Context, _ uuid.UUID, _ string, _ time.Time) (messages.Message, error) {
	return messages.Message{}, messages.ErrMessageNotFound
}

func newTestServer(t *testing.T, h *hub.Hub, conv conversations.Conversation) *httptest.Server {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	service := messaging.New(
		stubConversations{conv: conv},
		stubMessages{},
		usersrepo.NewPermissive(),
		marketplace.NewStaticLister(),
		checkin.NewMemoryService(),
		h,
		messaging.DefaultLimits(),
		log,
	)

	srv := httptest.NewServer(auth.WithUser(WSHandler(h, service, nil, log)))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, userID uuid.UUID) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	header.Set("Cookie", "user_id="+userID.String())

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEvent returns the next conversation-level event, skipping the hello
// frame and presence updates.
func readEvent(t *testing.T, conn *websocket.Conn, timeout time.Duration) (wsevents.Event, bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, data, err := conn.ReadMessage()
		if err != nil {
			return wsevents.Event{}, false
		}

		var ev wsevents.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		if ev.Type == wsevents.Hello || ev.Type == wsevents.WorkspaceStatusUpdate {
			continue
		}
		return ev, true
	}
}

func writeFrame(t *testing.T, conn *websocket.Conn, msg ClientMsg) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func testConversation(a, b uuid.UUID) conversations.Conversation {
	low, high := conversations.NormalizePair(a, b)
	return conversations.Conversation{ID: uuid.New(), MemberLow: low, MemberHigh: high}
}

func TestWSHandler_JoinRequiresMembership(t *testing.T) {
	memberA := uuid.New()
	memberB := uuid.New()
	conv := testConversation(memberA, memberB)

	h := hub.NewHub()
	go h.Run()
	srv := newTestServer(t, h, conv)

	member := dial(t, srv, memberA)
	outsider := dial(t, srv, uuid.New())

	writeFrame(t, member, ClientMsg{Type: wsevents.JoinChat, ConversationID: conv.ID})
	writeFrame(t, outsider, ClientMsg{Type: wsevents.JoinChat, ConversationID: conv.ID})
	time.Sleep(200 * time.Millisecond)

	payload, err := wsevents.NewEvent(conv.ID, wsevents.MessageReceived, map[string]any{"ok": true})
	require.NoError(t, err)
	h.ToConversation(conv.ID, payload)

	ev, ok := readEvent(t, member, time.Second)
	require.True(t, ok, "member joined the room and must receive the event")
	assert.Equal(t, wsevents.MessageReceived, ev.Type)

	_, ok = readEvent(t, outsider, 300*time.Millisecond)
	assert.False(t, ok, "join by a non-member must be rejected")
}

func TestWSHandler_JoinUnknownConversationRejected(t *testing.T) {
	memberA := uuid.New()
	memberB := uuid.New()
	conv := testConversation(memberA, memberB)

	h := hub.NewHub()
	go h.Run()
	srv := newTestServer(t, h, conv)

	member := dial(t, srv, memberA)

	unknown := uuid.New()
	writeFrame(t, member, ClientMsg{Type: wsevents.JoinChat, ConversationID: unknown})
	time.Sleep(200 * time.Millisecond)

	payload, err := wsevents.NewEvent(unknown, wsevents.MessageReceived, map[string]any{"ok": true})
	require.NoError(t, err)
	h.ToConversation(unknown, payload)

	_, ok := readEvent(t, member, 300*time.Millisecond)
	assert.False(t, ok)
}

func TestWSHandler_TypingOnlyAfterJoin(t *testing.T) {
	memberA := uuid.New()
	memberB := uuid.New()
	conv := testConversation(memberA, memberB)

	h := hub.NewHub()
	go h.Run()
	srv := newTestServer(t, h, conv)

	typer := dial(t, srv, memberA)
	reader := dial(t, srv, memberB)

	writeFrame(t, reader, ClientMsg{Type: wsevents.JoinChat, ConversationID: conv.ID})
	time.Sleep(200 * time.Millisecond)

	// Typing from a socket that never joined the room is dropped.
	writeFrame(t, typer, ClientMsg{Type: wsevents.Typing, ConversationID: conv.ID})
	_, ok := readEvent(t, reader, 300*time.Millisecond)
	assert.False(t, ok, "typing before join_chat must not be relayed")

	writeFrame(t, typer, ClientMsg{Type: wsevents.JoinChat, ConversationID: conv.ID})
	time.Sleep(200 * time.Millisecond)
	writeFrame(t, typer, ClientMsg{Type: wsevents.Typing, ConversationID: conv.ID})

	ev, ok := readEvent(t, reader, time.Second)
	require.True(t, ok)
	assert.Equal(t, wsevents.Typing, ev.Type)

	var typing wsevents.TypingPayload
	require.NoError(t, json.Unmarshal(ev.Payload, &typing))
	assert.Equal(t, memberA, typing.UserID)
	assert.Equal(t, conv.ID, typing.ConversationID)
}
