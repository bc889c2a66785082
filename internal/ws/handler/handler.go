package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Khuzaim123/nomadnet-messaging/internal/auth"
	"github.com/Khuzaim123/nomadnet-messaging/internal/lib/logger/sl"
	"github.com/Khuzaim123/nomadnet-messaging/internal/messages"
	"github.com/Khuzaim123/nomadnet-messaging/internal/messaging"
	"github.com/Khuzaim123/nomadnet-messaging/internal/presence"
	"github.com/Khuzaim123/nomadnet-messaging/internal/ws"
	"github.com/Khuzaim123/nomadnet-messaging/internal/ws/hub"
)

type ClientMsg struct {
	Type           string                `json:"type"`
	ConversationID uuid.UUID             `json:"conversation_id"`
	UserID         uuid.UUID             `json:"user_id"`
	Message        *messages.SendRequest `json:"message"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades the connection and runs the read loop. Identity is
// established by the auth middleware before any join is honored; presence
// may be nil, in which case workspace status carries no online roster.
func WSHandler(h *hub.Hub, service *messaging.Service, pres *presence.Store, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ws.WSHandler"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID := auth.UserID(r)
		if userID == uuid.Nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("ws upgrade error", sl.Err(err))
			return
		}
		defer conn.Close()

		hc := hub.NewConnection(conn, userID)
		go hc.WritePump()

		h.Register(hc)
		defer h.Unregister(hc)

		announcePresence(h, pres, userID, "online", log)
		defer announcePresence(h, pres, userID, "offline", log)

		_ = conn.SetReadDeadline(time.Now().Add(hub.PongWait))
		conn.SetPongHandler(func(string) error {
			_ = conn.SetReadDeadline(time.Now().Add(hub.PongWait))
			return nil
		})

		hello, _ := json.Marshal(map[string]any{"type": ws.Hello, "ok": true})
		hc.Send(hello)

		// Rooms this loop has joined; typing is only honored for them.
		joined := make(map[uuid.UUID]struct{})

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var msg ClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				log.Error("ws bad json", sl.Err(err))
				continue
			}

			switch msg.Type {
			case ws.JoinChat:
				if err := service.EnsureMember(r.Context(), userID, msg.ConversationID); err != nil {
					log.Info("ws join rejected",
						slog.String("conversation_id", msg.ConversationID.String()),
						sl.Err(err),
					)
					continue
				}
				h.Subscribe(hc, []uuid.UUID{msg.ConversationID})
				joined[msg.ConversationID] = struct{}{}

			case ws.LeaveChat:
				h.Unsubscribe(hc, msg.ConversationID)
				delete(joined, msg.ConversationID)

			case ws.Typing, ws.StopTyping:
				if _, ok := joined[msg.ConversationID]; !ok {
					continue
				}
				payload, err := ws.NewEvent(msg.ConversationID, msg.Type, ws.TypingPayload{
					ConversationID: msg.ConversationID,
					UserID:         userID,
				})
				if err != nil {
					log.Error("failed to build typing event", sl.Err(err))
					continue
				}
				h.ToConversationExcept(msg.ConversationID, payload, userID)

			case ws.SendMessage:
				if msg.Message == nil {
					continue
				}
				req := *msg.Message
				if req.ConversationID == nil && msg.ConversationID != uuid.Nil {
					conversationID := msg.ConversationID
					req.ConversationID = &conversationID
				}
				// Same path as the REST send: validation, persistence and
				// fan-out all included.
				if _, err := service.SendMessage(r.Context(), userID, req); err != nil {
					log.Error("ws send failed", sl.Err(err))
				}

			default:
				log.Info("ws unknown message type", slog.String("message_type", msg.Type))
			}
		}
	}
}

func announcePresence(h *hub.Hub, pres *presence.Store, userID uuid.UUID, status string, log *slog.Logger) {
	payload := ws.WorkspaceStatusPayload{UserID: userID, Status: status}

	if pres != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		var transitioned bool
		var err error
		if status == "online" {
			transitioned, err = pres.SetOnline(ctx, userID)
		} else {
			transitioned, err = pres.SetOffline(ctx, userID)
		}
		if err != nil {
			log.Error("presence update failed", sl.Err(err))
		} else if !transitioned {
			// Another device keeps the previous status alive.
			return
		}

		if online, err := pres.OnlineUsers(ctx); err == nil {
			payload.OnlineUsers = online
		}
	}

	event, err := ws.NewEvent(uuid.Nil, ws.WorkspaceStatusUpdate, payload)
	if err != nil {
		log.Error("failed to build workspace status event", sl.Err(err))
		return
	}
	h.ToAll(event)
}
