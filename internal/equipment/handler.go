package equipment

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/redmonkez12/fmea-api/internal/auth"
	"github.com/redmonkez12/fmea-api/internal/httputil"
	"github.com/redmonkez12/fmea-api/internal/logging"
)

// Store is the persistence used by Handler
type Store interface {
	List(ctx context.Context, f ListFilter) ([]Equipment, error)
	Get(ctx context.Context, id uuid.UUID) (*Equipment, error)
	Create(ctx context.Context, in Input, createdBy uuid.UUID) (*Equipment, error)
	Update(ctx context.Context, id uuid.UUID, in Input) (*Equipment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Handler serves the equipment registry. Role checks are applied by the router.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// ListResponse wraps a page of equipment
type ListResponse struct {
	Items []Equipment `json:"items"`
}

// List returns registered equipment
// @Summary      List equipment
// @Tags         equipment
// @Produce      json
// @Security     BearerAuth
// @Param        q      query string false "Search tag or name"
// @Param        class  query string false "Equipment class"
// @Param        limit  query int    false "Page size (max 200)"
// @Param        offset query int    false "Offset"
// @Success      200 {object} ListResponse
// @Failure      401 {object} httputil.ErrorResponse "Not signed in"
// @Router       /equipment [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())
	query := r.URL.Query()

	filter := ListFilter{
		Search:         query.Get("q"),
		EquipmentClass: query.Get("class"),
	}

	var err error
	if filter.Limit, err = intParam(query.Get("limit")); err != nil {
		httputil.RespondErrorWithCode(w, "limit must be a non-negative integer", httputil.CodeValidationFailed, http.StatusBadRequest)
		return
	}
	if filter.Offset, err = intParam(query.Get("offset")); err != nil {
		httputil.RespondErrorWithCode(w, "offset must be a non-negative integer", httputil.CodeValidationFailed, http.StatusBadRequest)
		return
	}

	items, err := h.store.List(r.Context(), filter)
	if err != nil {
		respondStoreError(w, logger, "list equipment", err)
		return
	}

	httputil.RespondJSON(w, ListResponse{Items: items}, http.StatusOK)
}

// Get returns one equipment item
// @Summary      Get equipment
// @Tags         equipment
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Equipment ID"
// @Success      200 {object} Equipment
// @Failure      401 {object} httputil.ErrorResponse "Not signed in"
// @Failure      404 {object} httputil.ErrorResponse "Not found"
// @Router       /equipment/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	item, err := h.store.Get(r.Context(), id)
	if err != nil {
		respondStoreError(w, logger, "get equipment", err)
		return
	}

	httputil.RespondJSON(w, item, http.StatusOK)
}

// Create registers new equipment
// @Summary      Create equipment
// @Tags         equipment
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body Input true "Equipment"
// @Success      201 {object} Equipment
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Not signed in"
// @Failure      403 {object} httputil.ErrorResponse "Admin role required"
// @Failure      409 {object} httputil.ErrorResponse "Duplicate tag"
// @Router       /equipment [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	userID, ok := auth.GetUserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "missing authentication", httputil.CodeMissingAuth, http.StatusUnauthorized)
		return
	}

	in, ok := decodeInput(w, r, logger)
	if !ok {
		return
	}

	item, err := h.store.Create(r.Context(), in, userID)
	if err != nil {
		respondStoreError(w, logger, "create equipment", err)
		return
	}

	logger.Info("equipment created", "equipment_id", item.ID, "tag", item.Tag, "user_id", userID)

	httputil.RespondJSON(w, item, http.StatusCreated)
}

// Update replaces an equipment item
// @Summary      Update equipment
// @Tags         equipment
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id      path string true "Equipment ID"
// @Param        request body Input  true "Equipment"
// @Success      200 {object} Equipment
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      403 {object} httputil.ErrorResponse "Admin role required"
// @Failure      404 {object} httputil.ErrorResponse "Not found"
// @Failure      409 {object} httputil.ErrorResponse "Duplicate tag"
// @Router       /equipment/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	in, ok := decodeInput(w, r, logger)
	if !ok {
		return
	}

	item, err := h.store.Update(r.Context(), id, in)
	if err != nil {
		respondStoreError(w, logger, "update equipment", err)
		return
	}

	logger.Info("equipment updated", "equipment_id", id)

	httputil.RespondJSON(w, item, http.StatusOK)
}

// Delete removes an equipment item
// @Summary      Delete equipment
// @Tags         equipment
// @Security     BearerAuth
// @Param        id path string true "Equipment ID"
// @Success      204
// @Failure      403 {object} httputil.ErrorResponse "Admin role required"
// @Failure      404 {object} httputil.ErrorResponse "Not found"
// @Router       /equipment/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		respondStoreError(w, logger, "delete equipment", err)
		return
	}

	logger.Info("equipment deleted", "equipment_id", id)

	w.WriteHeader(http.StatusNoContent)
}

func decodeInput(w http.ResponseWriter, r *http.Request, logger *logging.Logger) (Input, bool) {
	var raw Input
	if err := httputil.DecodeJSON(w, r, &raw); err != nil {
		logger.Warn("invalid request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return Input{}, false
	}

	in, err := raw.Normalize()
	if err != nil {
		var ferr *FieldError
		if errors.As(err, &ferr) {
			logger.Warn("equipment validation failed", "field", ferr.Field, "error", ferr.Message)
			httputil.RespondErrorWithCode(w, ferr.Message, httputil.CodeValidationFailed, http.StatusBadRequest)
			return Input{}, false
		}
		respondStoreError(w, logger, "validate equipment", err)
		return Input{}, false
	}

	return in, true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid equipment id", httputil.CodeValidationFailed, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}

func respondStoreError(w http.ResponseWriter, logger *logging.Logger, action string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		logger.Warn(action + " failed: not found")
		httputil.RespondErrorWithCode(w, ErrNotFound.Error(), httputil.CodeEquipmentNotFound, http.StatusNotFound)
	case errors.Is(err, ErrDuplicateTag):
		logger.Warn(action + " failed: duplicate tag")
		httputil.RespondErrorWithCode(w, ErrDuplicateTag.Error(), httputil.CodeDuplicateTag, http.StatusConflict)
	default:
		logger.Error(action+" failed: internal error", "error", err.Error())
		httputil.RespondErrorWithCode(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
	}
}
