package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/Khuzaim123/nomadnet-messaging/internal/auth"
	resp "github.com/Khuzaim123/nomadnet-messaging/internal/lib/api/response"
	"github.com/Khuzaim123/nomadnet-messaging/internal/lib/logger/sl"
	"github.com/Khuzaim123/nomadnet-messaging/internal/messages"
	"github.com/Khuzaim123/nomadnet-messaging/internal/messaging"
	"github.com/Khuzaim123/nomadnet-messaging/internal/transport/httpapi"
)

type Handler struct {
	service *messaging.Service
	log     *slog.Logger
}

func New(service *messaging.Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

type MessageResponse struct {
	resp.Response
	Message messages.Message `json:"message"`
}

type MessagesResponse struct {
	resp.Response
	Messages []messages.Message `json:"messages"`
}

type EditMessageRequest struct {
	Content string `json:"content"`
}

type UnreadCountResponse struct {
	resp.Response
	UnreadCount int64 `json:"unread_count"`
}

func (h *Handler) Send() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.send"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req messages.SendRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("decode request error", sl.Err(err))
			httpapi.WriteDecodeError(w, r)
			return
		}

		msg, err := h.service.SendMessage(r.Context(), auth.UserID(r), req)
		if err != nil {
			log.Error("failed to send message", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, MessageResponse{
			Response: resp.OK(),
			Message:  msg,
		})
	}
}

func (h *Handler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.list"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		conversationID, err := uuid.Parse(chi.URLParam(r, "conversationId"))
		if err != nil || conversationID == uuid.Nil {
			log.Error("invalid conversationId", sl.Err(err))
			httpapi.WriteError(w, r, messages.ErrMessageNotFound)
			return
		}

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		msgs, err := h.service.GetMessages(r.Context(), auth.UserID(r), conversationID, page, limit)
		if err != nil {
			log.Error("failed to get messages", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, MessagesResponse{
			Response: resp.OK(),
			Messages: msgs,
		})
	}
}

func (h *Handler) MarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.read"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		messageID, ok := messageIDParam(w, r, log)
		if !ok {
			return
		}

		if err := h.service.MarkMessageRead(r.Context(), auth.UserID(r), messageID); err != nil {
			log.Error("failed to mark message read", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.Status(r, http.StatusNoContent)
		render.NoContent(w, r)
	}
}

func (h *Handler) Edit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.edit"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		messageID, ok := messageIDParam(w, r, log)
		if !ok {
			return
		}

		var req EditMessageRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("decode request error", sl.Err(err))
			httpapi.WriteDecodeError(w, r)
			return
		}

		msg, err := h.service.EditMessage(r.Context(), auth.UserID(r), messageID, req.Content)
		if err != nil {
			log.Error("failed to edit message", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, MessageResponse{
			Response: resp.OK(),
			Message:  msg,
		})
	}
}

func (h *Handler) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.delete"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		messageID, ok := messageIDParam(w, r, log)
		if !ok {
			return
		}

		if err := h.service.DeleteMessage(r.Context(), auth.UserID(r), messageID); err != nil {
			log.Error("failed to delete message", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.Status(r, http.StatusNoContent)
		render.NoContent(w, r)
	}
}

func (h *Handler) UnreadCount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.messages.unread.count"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		total, err := h.service.UnreadTotal(r.Context(), auth.UserID(r))
		if err != nil {
			log.Error("failed to count unread messages", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, UnreadCountResponse{
			Response:    resp.OK(),
			UnreadCount: total,
		})
	}
}

func messageIDParam(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "messageId")
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		log.Error("invalid messageId", slog.String("raw", raw))
		httpapi.WriteError(w, r, messages.ErrMessageNotFound)
		return uuid.Nil, false
	}
	return id, true
}
