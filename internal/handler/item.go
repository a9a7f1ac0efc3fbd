package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/secondchance/secondchance/internal/handler/dto"
	"github.com/secondchance/secondchance/internal/service"
)

// maxMultipartMemory bounds the form data kept in memory; larger file
// parts spill to temporary files and are discarded after the request.
const maxMultipartMemory = 10 << 20

var errInvalidAgeDays = errors.New("age_days must be a whole number")

// ItemHandler handles HTTP requests for listing operations.
type ItemHandler struct {
	svc    *service.ListingService
	logger *slog.Logger
}

// NewItemHandler creates a new ItemHandler.
func NewItemHandler(svc *service.ListingService, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{
		svc:    svc,
		logger: logger,
	}
}

// List handles GET /api/secondchance/items.
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context(), service.ItemFilter{})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToItemListResponse(items))
}

// Search handles GET /api/secondchance/search.
func (h *ItemHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := service.ItemFilter{
		Name:      strings.TrimSpace(query.Get("name")),
		Category:  query.Get("category"),
		Condition: query.Get("condition"),
	}

	if raw := query.Get("age_years"); raw != "" {
		maxAge, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(maxAge) {
			writeError(w, http.StatusBadRequest, "INVALID_AGE", "age_years must be a number")
			return
		}
		filter.MaxAgeYears = &maxAge
	}

	items, err := h.svc.List(r.Context(), filter)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToItemListResponse(items))
}

// Get handles GET /api/secondchance/items/{id}.
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ToItemResponse(item))
}

// Create handles POST /api/secondchance/items. The body is either JSON or
// a multipart/urlencoded form; an uploaded "file" part is accepted but
// not stored.
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := decodeCreateItem(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "Invalid request body")
		return
	}

	ageDays, err := parseAgeDays(req.AgeDays)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_AGE", err.Error())
		return
	}

	item, err := h.svc.Create(r.Context(), service.CreateItemInput{
		Name:        req.Name,
		Category:    req.Category,
		Condition:   req.Condition,
		PostedBy:    req.PostedBy,
		Zipcode:     req.Zipcode,
		Description: req.Description,
		Image:       req.Image,
		AgeDays:     ageDays,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToItemResponse(item))
}

// Update handles PUT /api/secondchance/items/{id}.
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	input := service.UpdateItemInput{
		ID:          chi.URLParam(r, "id"),
		Category:    req.Category,
		Condition:   req.Condition,
		Description: req.Description,
	}

	if req.AgeDays != nil {
		ageDays, err := parseAgeDays(*req.AgeDays)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_AGE", err.Error())
			return
		}
		input.AgeDays = &ageDays
	}

	result, err := h.svc.Update(r.Context(), input)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.UpdateItemResponse{Uploaded: result.Status})
}

// Delete handles DELETE /api/secondchance/items/{id}.
func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DeleteItemResponse{Deleted: "success"})
}

func decodeCreateItem(r *http.Request) (dto.CreateItemRequest, error) {
	var req dto.CreateItemRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return req, err
		}
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return req, err
		}
	default:
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}

	req = dto.CreateItemRequest{
		Name:        r.PostFormValue("name"),
		Category:    r.PostFormValue("category"),
		Condition:   r.PostFormValue("condition"),
		PostedBy:    r.PostFormValue("posted_by"),
		Zipcode:     r.PostFormValue("zipcode"),
		Description: r.PostFormValue("description"),
		Image:       r.PostFormValue("image"),
		AgeDays:     json.Number(strings.TrimSpace(r.PostFormValue("age_days"))),
	}
	return req, nil
}

// parseAgeDays accepts integers and whole-valued decimals such as "365.0".
// An empty value means zero.
func parseAgeDays(n json.Number) (int, error) {
	if n == "" {
		return 0, nil
	}
	if v, err := n.Int64(); err == nil {
		if v > math.MaxInt32 || v < math.MinInt32 {
			return 0, errInvalidAgeDays
		}
		return int(v), nil
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, errInvalidAgeDays
	}
	return int(f), nil
}
