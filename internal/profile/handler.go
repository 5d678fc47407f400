package profile

import (
	"errors"
	"io"
	"net/http"

	"github.com/redmonkez12/fmea-api/internal/auth"
	"github.com/redmonkez12/fmea-api/internal/httputil"
	"github.com/redmonkez12/fmea-api/internal/logging"
	"github.com/redmonkez12/fmea-api/internal/storage"
)

// multipart overhead on top of the image limit enforced by the upload store
const maxUploadBytes = 6 << 20

// Uploads stores images until a profile update claims them
type Uploads interface {
	Save(r io.Reader) (string, error)
}

type Handler struct {
	service *Service
	uploads Uploads
}

func NewHandler(service *Service, uploads Uploads) *Handler {
	return &Handler{service: service, uploads: uploads}
}

// UploadResponse carries the reference to pass as "avatar"
type UploadResponse struct {
	Ref string `json:"ref" example:"upload-3f1c.png"`
}

// Get returns the signed-in user's profile
// @Summary      Get profile
// @Tags         profile
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} user.User
// @Failure      401 {object} httputil.ErrorResponse "Not signed in"
// @Failure      404 {object} httputil.ErrorResponse "Account no longer exists"
// @Router       /profile [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	u, err := h.service.Get(r.Context(), userID)
	if err != nil {
		respondServiceError(w, logger.With("user_id", userID), "get profile", err)
		return
	}

	httputil.RespondJSON(w, u, http.StatusOK)
}

// Update changes the signed-in user's profile
// @Summary      Update profile
// @Description  Only fields present in the body change. "avatar" takes an http(s) URL or a reference from POST /uploads; an empty string removes it.
// @Tags         profile
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body UpdateRequest true "Profile fields"
// @Success      200 {object} user.User
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Not signed in"
// @Failure      502 {object} httputil.ErrorResponse "Image host failed"
// @Router       /profile [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}
	logger = logger.With("user_id", userID)

	var req UpdateRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		logger.Warn("invalid request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	u, err := h.service.Update(r.Context(), userID, req)
	if err != nil {
		respondServiceError(w, logger, "update profile", err)
		return
	}

	logger.Info("profile updated")

	httputil.RespondJSON(w, u, http.StatusOK)
}

// Upload stores an image for a later profile update
// @Summary      Upload avatar image
// @Tags         profile
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file formData file true "PNG, JPEG or GIF image up to 5 MB"
// @Success      201 {object} UploadResponse
// @Failure      400 {object} httputil.ErrorResponse "Missing or invalid image"
// @Failure      401 {object} httputil.ErrorResponse "Not signed in"
// @Router       /uploads [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		logger.Warn("invalid upload", "error", err.Error())
		httputil.RespondErrorWithCode(w, "a file field with an image is required", httputil.CodeInvalidUpload, http.StatusBadRequest)
		return
	}
	defer file.Close()

	ref, err := h.uploads.Save(file)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidAvatar) {
			logger.Warn("rejected upload", "error", err.Error())
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeInvalidUpload, http.StatusBadRequest)
			return
		}
		logger.Error("failed to store upload", "error", err.Error())
		httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("upload stored", "ref", ref)

	httputil.RespondJSON(w, UploadResponse{Ref: ref}, http.StatusCreated)
}

func respondServiceError(w http.ResponseWriter, logger *logging.Logger, action string, err error) {
	var verr *auth.ValidationError

	switch {
	case errors.As(err, &verr):
		logger.Warn(action+" failed: validation error", "field", verr.Field, "error", verr.Message)
		httputil.RespondErrorWithCode(w, verr.Message, httputil.CodeValidationFailed, http.StatusBadRequest)
	case errors.Is(err, ErrNotFound):
		logger.Warn(action + " failed: account not found")
		httputil.RespondErrorWithCode(w, "account not found", httputil.CodeUserNotFound, http.StatusNotFound)
	case errors.Is(err, auth.ErrUpstream):
		logger.Error(action+" failed: upstream error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "an external service failed, please try again later", httputil.CodeUpstreamFailure, http.StatusBadGateway)
	default:
		logger.Error(action+" failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
	}
}
