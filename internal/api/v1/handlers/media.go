package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/medicman/assist/internal/services/media"
	"github.com/medicman/assist/pkg/httpext"
	"github.com/rs/zerolog/log"
)

// Uploads larger than this are rejected before they reach the analysis
// backends.
const maxUploadBytes = 20 << 20

// HandleAnalyzeMedia accepts a multipart form with an image and an audio
// recording of the patient's complaint, and responds with the transcript,
// the vision analysis and a spoken rendition of it.
func HandleAnalyzeMedia(mediaService *media.Service, w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		log.Warn().Err(err).Msg("Failed to parse multipart upload")
		httpext.JsonError(w, "Invalid multipart request", http.StatusBadRequest)
		return
	}

	imageFile, imageHeader, err := r.FormFile("image")
	if err != nil {
		httpext.JsonError(w, "image file is required", http.StatusBadRequest)
		return
	}
	defer imageFile.Close()

	image, err := io.ReadAll(imageFile)
	if err != nil {
		httpext.JsonError(w, "Failed to read image", http.StatusBadRequest)
		return
	}
	imageMime := imageHeader.Header.Get("Content-Type")
	if imageMime == "" {
		imageMime = "image/jpeg"
	}

	audioFile, audioHeader, err := r.FormFile("audio")
	if err != nil {
		httpext.JsonError(w, "audio file is required", http.StatusBadRequest)
		return
	}
	defer audioFile.Close()

	result, err := mediaService.Analyze(r.Context(), image, imageMime, audioHeader.Filename, audioFile)
	if err != nil {
		switch {
		case errors.Is(err, media.ErrNoImage), errors.Is(err, media.ErrNoAudio):
			httpext.JsonError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, media.ErrEngineUnavailable):
			httpext.JsonError(w, "Analysis backend unavailable", http.StatusServiceUnavailable)
		default:
			log.Error().Err(err).Msg("Media analysis failed")
			httpext.JsonError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	httpext.JsonResponse(w, result, http.StatusOK)
}
