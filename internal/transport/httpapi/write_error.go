package httpapi

import (
	"net/http"

	"github.com/go-chi/render"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// WriteDecodeError answers a request whose body could not be parsed at all.
func WriteDecodeError(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, ErrorResponse{
		Error: ErrorBody{
			Code:    "invalid_payload",
			Message: "malformed request body",
		},
	})
}

func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, msg := MapError(err)
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{
		Error: ErrorBody{
			Code:    code,
			Message: msg,
		},
	})
}
