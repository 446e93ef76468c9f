package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ytget/yolo-vision/internal/preview"
	"github.com/ytget/yolo-vision/internal/render"
	"github.com/ytget/yolo-vision/internal/session"
	"github.com/ytget/yolo-vision/internal/youtube"
)

// errBadRequest marks request validation failures
var errBadRequest = errors.New("bad request")

// ErrorBody is the JSON shape of every API error
type ErrorBody struct {
	Error    string   `json:"error"`
	Category string   `json:"category,omitempty"`
	Hints    []string `json:"hints,omitempty"`
}

// fail writes err as JSON with a status derived from its type
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	body := ErrorBody{Error: err.Error()}

	var rerr *youtube.ResolveError
	switch {
	case errors.As(err, &rerr):
		body.Category = string(rerr.Category)
		body.Hints = rerr.Hints()
	case errors.Is(err, youtube.ErrInvalidURL), errors.Is(err, youtube.ErrInvalidPlaylistURL):
		body.Category = string(youtube.CategoryInvalidURL)
		body.Hints = youtube.Hints(youtube.CategoryInvalidURL)
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

func statusFor(err error) int {
	var rerr *youtube.ResolveError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, youtube.ErrInvalidURL),
		errors.Is(err, youtube.ErrInvalidPlaylistURL),
		errors.Is(err, render.ErrDecodeImage),
		errors.Is(err, session.ErrInvalidRequest),
		errors.Is(err, session.ErrImageSource):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound), errors.Is(err, preview.ErrNoPreview):
		return http.StatusNotFound
	case errors.Is(err, session.ErrDuplicate),
		errors.Is(err, session.ErrNotActive),
		errors.Is(err, session.ErrActive):
		return http.StatusConflict
	case errors.As(err, &rerr):
		switch rerr.Category {
		case youtube.CategoryInvalidURL:
			return http.StatusBadRequest
		case youtube.CategoryExtraction:
			return http.StatusUnprocessableEntity
		default:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}
