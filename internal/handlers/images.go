package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tomymiron/ETH-Global/internal/services"
)

// ImageService renders stored profile images.
type ImageService interface {
	Thumbnail(ctx context.Context, name string) ([]byte, error)
}

// ImageHandler serves profile pictures.
type ImageHandler struct {
	images ImageService
	logger *zap.Logger
}

func NewImageHandler(images ImageService, logger *zap.Logger) *ImageHandler {
	return &ImageHandler{images: images, logger: logger}
}

// ImageRouter registers image routes on the given router.
func ImageRouter(r chi.Router, images ImageService, logger *zap.Logger) {
	handler := NewImageHandler(images, logger)

	r.Get("/profile/{name}", handler.Profile)
}

// Profile answers the named profile image as a 360x360 JPEG.
func (h *ImageHandler) Profile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	data, err := h.images.Thumbnail(r.Context(), name)
	if err != nil {
		if !errors.Is(err, services.ErrImageNotFound) {
			h.logger.Error("render profile image", zap.String("name", name), zap.Error(err))
		}
		http.Error(w, "Error al procesar la imagen", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
