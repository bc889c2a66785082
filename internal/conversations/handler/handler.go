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
	"github.com/Khuzaim123/nomadnet-messaging/internal/conversations"
	resp "github.com/Khuzaim123/nomadnet-messaging/internal/lib/api/response"
	"github.com/Khuzaim123/nomadnet-messaging/internal/lib/logger/sl"
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

type CreateConversationRequest struct {
	ParticipantID uuid.UUID `json:"participant_id"`
}

type ConversationResponse struct {
	resp.Response
	Conversation conversations.Conversation `json:"conversation"`
}

type SummaryResponse struct {
	resp.Response
	Conversation conversations.Summary `json:"conversation"`
}

type ListResponse struct {
	resp.Response
	Conversations []conversations.Summary `json:"conversations"`
}

type ArchiveResponse struct {
	resp.Response
	Archived bool `json:"archived"`
}

func (h *Handler) CreateOrGet() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.conversations.create"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req CreateConversationRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("decode request error", sl.Err(err))
			httpapi.WriteDecodeError(w, r)
			return
		}

		conv, err := h.service.GetOrCreateConversation(r.Context(), auth.UserID(r), req.ParticipantID)
		if err != nil {
			log.Error("failed to get or create conversation", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, ConversationResponse{
			Response:     resp.OK(),
			Conversation: conv,
		})
	}
}

func (h *Handler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.conversations.list"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		archived := r.URL.Query().Get("archived") == "true"
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		summaries, err := h.service.ListConversations(r.Context(), auth.UserID(r), archived, page, limit)
		if err != nil {
			log.Error("failed to list conversations", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, ListResponse{
			Response:      resp.OK(),
			Conversations: summaries,
		})
	}
}

func (h *Handler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.conversations.get"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		conversationID, ok := conversationIDParam(w, r, log)
		if !ok {
			return
		}

		summary, err := h.service.GetConversation(r.Context(), auth.UserID(r), conversationID)
		if err != nil {
			log.Error("failed to get conversation", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, SummaryResponse{
			Response:     resp.OK(),
			Conversation: summary,
		})
	}
}

func (h *Handler) ToggleArchive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.conversations.archive"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		conversationID, ok := conversationIDParam(w, r, log)
		if !ok {
			return
		}

		archived, err := h.service.ToggleArchive(r.Context(), auth.UserID(r), conversationID)
		if err != nil {
			log.Error("failed to toggle archive", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.JSON(w, r, ArchiveResponse{
			Response: resp.OK(),
			Archived: archived,
		})
	}
}

func (h *Handler) MarkRead() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.conversations.read"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		conversationID, ok := conversationIDParam(w, r, log)
		if !ok {
			return
		}

		if err := h.service.MarkConversationRead(r.Context(), auth.UserID(r), conversationID); err != nil {
			log.Error("failed to mark conversation read", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.Status(r, http.StatusNoContent)
		render.NoContent(w, r)
	}
}

func (h *Handler) Clear() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.conversations.clear"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		conversationID, ok := conversationIDParam(w, r, log)
		if !ok {
			return
		}

		if err := h.service.ClearConversation(r.Context(), auth.UserID(r), conversationID); err != nil {
			log.Error("failed to clear conversation", sl.Err(err))
			httpapi.WriteError(w, r, err)
			return
		}

		render.Status(r, http.StatusNoContent)
		render.NoContent(w, r)
	}
}

func conversationIDParam(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	raw := chi.URLParam(r, "conversationId")
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		log.Error("invalid conversationId", slog.String("raw", raw))
		httpapi.WriteError(w, r, conversations.ErrConversationNotFound)
		return uuid.Nil, false
	}
	return id, true
}
