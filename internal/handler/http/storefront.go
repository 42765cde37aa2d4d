package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/pizzashop/internal/domain"
	"github.com/utafrali/pizzashop/internal/service"
	apperrors "github.com/utafrali/pizzashop/pkg/errors"
	"github.com/utafrali/pizzashop/pkg/httputil"
	"github.com/utafrali/pizzashop/pkg/validator"
)

// StorefrontHandler serves the storefront pages and their mutations.
type StorefrontHandler struct {
	service *service.StorefrontService
	logger  *slog.Logger
}

func NewStorefrontHandler(svc *service.StorefrontService, logger *slog.Logger) *StorefrontHandler {
	return &StorefrontHandler{service: svc, logger: logger}
}

// --- Request DTOs ---

type SetCategoryRequest struct {
	Category string `json:"category" validate:"required,max=64"`
}

type SetSortRequest struct {
	SortBy string `json:"sort_by" validate:"required,max=32"`
}

type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	Type      string `json:"type" validate:"required,max=32"`
	Size      int    `json:"size" validate:"required,gt=0"`
}

// --- Handlers ---

// GetCatalog handles GET / and GET /api/v1/catalog
func (h *StorefrontHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.CatalogView(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, v)
}

// GetCart handles GET /cart and GET /api/v1/cart
func (h *StorefrontHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	v, err := h.service.CartView(r.Context(), sessionIDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, v)
}

// GetMenu handles GET /api/v1/menu
func (h *StorefrontHandler) GetMenu(w http.ResponseWriter, r *http.Request) {
	httputil.WriteData(w, http.StatusOK, h.service.Menu())
}

// SetCategory handles PUT /api/v1/filter/category
func (h *StorefrontHandler) SetCategory(w http.ResponseWriter, r *http.Request) {
	var req SetCategoryRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	f, err := h.service.SetCategory(r.Context(), sessionIDFromContext(r.Context()), req.Category)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, f)
}

// SetSortBy handles PUT /api/v1/filter/sort
func (h *StorefrontHandler) SetSortBy(w http.ResponseWriter, r *http.Request) {
	var req SetSortRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	f, err := h.service.SetSortBy(r.Context(), sessionIDFromContext(r.Context()), domain.SortKey(req.SortBy))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, f)
}

// Reload handles POST /api/v1/catalog/reload
func (h *StorefrontHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reload(r.Context(), sessionIDFromContext(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// AddItem handles POST /api/v1/cart/items
func (h *StorefrontHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	line, err := h.service.AddToCart(r.Context(), sessionIDFromContext(r.Context()), service.AddItemInput{
		ProductID: req.ProductID,
		Type:      req.Type,
		Size:      req.Size,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, line)
}

// RemoveItem handles DELETE /api/v1/cart/items/{productId}/{type}/{size}
func (h *StorefrontHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID, typ, size, err := lineParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.RemoveFromCart(r.Context(), sessionIDFromContext(r.Context()), productID, typ, size); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.GetCart(w, r)
}

// RemoveLine handles DELETE /api/v1/cart/lines/{productId}/{type}/{size}
func (h *StorefrontHandler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	productID, typ, size, err := lineParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if err := h.service.RemoveLine(r.Context(), sessionIDFromContext(r.Context()), productID, typ, size); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.GetCart(w, r)
}

// ClearCart handles DELETE /api/v1/cart
func (h *StorefrontHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearCart(r.Context(), sessionIDFromContext(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func (h *StorefrontHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	httputil.WriteError(w, r, err, h.logger)
}

// decode reads a JSON body into dst. Malformed bodies become INVALID_INPUT;
// validation failures keep their per-field details.
func decode(r *http.Request, dst any) error {
	err := validator.DecodeAndValidate(r, dst)
	if err == nil {
		return nil
	}
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		return err
	}
	return apperrors.InvalidInput("invalid request body")
}

func lineParams(r *http.Request) (string, string, int, error) {
	productID := chi.URLParam(r, "productId")
	typ := chi.URLParam(r, "type")
	size, err := strconv.Atoi(chi.URLParam(r, "size"))
	if err != nil || size <= 0 {
		return "", "", 0, apperrors.InvalidInput("size must be a positive integer")
	}
	if productID == "" || typ == "" {
		return "", "", 0, apperrors.InvalidInput("productId and type are required")
	}
	return productID, typ, size, nil
}
