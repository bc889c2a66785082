package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	resp "github.com/Khuzaim123/nomadnet-messaging/internal/lib/api/response"
	"github.com/Khuzaim123/nomadnet-messaging/internal/lib/logger/sl"
	"github.com/Khuzaim123/nomadnet-messaging/internal/uploads"
)

type Handler struct {
	service uploads.Service
	log     *slog.Logger
}

func New(service uploads.Service, log *slog.Logger) *Handler {
	return &Handler{service: service, log: log}
}

type PresignUploadRequest struct {
	ContentType string `json:"content_type"`
	Filename    string `json:"filename"`
}

type PresignUploadResponse struct {
	resp.Response
	Key string `json:"key"`
	URL string `json:"url"`
}

type PresignDownloadRequest struct {
	Key string `json:"key"`
}

type PresignDownloadResponse struct {
	resp.Response
	URL string `json:"url"`
}

func (h *Handler) PresignUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.uploads.presign.upload"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req PresignUploadRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("decode request error", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid request body"))
			return
		}

		if req.ContentType == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("content_type is required"))
			return
		}

		key, url, err := h.service.PresignUpload(r.Context(), req.ContentType, req.Filename)
		if err != nil {
			log.Error("failed to presign upload", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("failed to presign upload"))
			return
		}

		render.JSON(w, r, PresignUploadResponse{
			Response: resp.OK(),
			Key:      key,
			URL:      url,
		})
	}
}

func (h *Handler) PresignDownload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.uploads.presign.download"

		log := h.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req PresignDownloadRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("decode request error", sl.Err(err))
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("invalid request body"))
			return
		}

		url, err := h.service.PresignDownload(r.Context(), req.Key)
		if err != nil {
			if errors.Is(err, uploads.ErrInvalidKey) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("invalid key"))
				return
			}
			log.Error("failed to presign download", sl.Err(err))
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("failed to presign download"))
			return
		}

		render.JSON(w, r, PresignDownloadResponse{
			Response: resp.OK(),
			URL:      url,
		})
	}
}
