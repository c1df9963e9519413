package handlers

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/Lixing-Zhang/storefront/internal/models"
	"github.com/Lixing-Zhang/storefront/internal/service"
	"github.com/shopspring/decimal"
)

// maxUploadSize bounds multipart bodies, photo included
const maxUploadSize = 10 << 20

// UploadsURLPrefix is where stored photos are served from
const UploadsURLPrefix = "/static/uploads/"

// ProductHandler handles product-related HTTP requests
type ProductHandler struct {
	service *service.ProductService
	logger  *slog.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(service *service.ProductService, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger,
	}
}

// ProductResponse is the public shape of a product; Photo is a URL or null
type ProductResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Photo       *string         `json:"photo"`
	Category    string          `json:"category"`
}

func newProductResponse(p models.Product) ProductResponse {
	resp := ProductResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Quantity:    p.Quantity,
		Category:    p.Category,
	}
	if p.Photo != "" {
		url := UploadsURLPrefix + p.Photo
		resp.Photo = &url
	}
	return resp
}

func newProductResponses(products []models.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, newProductResponse(p))
	}
	return out
}

// ListProducts handles GET /api/products
// Only products with stock are returned
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context())
	if err != nil {
		writeDomainError(w, r, err, h.logger, "failed to list products")
		return
	}

	WriteJSON(w, http.StatusOK, newProductResponses(products), h.logger)
}

// ListAllProducts handles GET /api/admin/products
func (h *ProductHandler) ListAllProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListAllProducts(r.Context())
	if err != nil {
		writeDomainError(w, r, err, h.logger, "failed to list products")
		return
	}

	WriteJSON(w, http.StatusOK, newProductResponses(products), h.logger)
}

// GetProduct handles GET /api/product/{productId}
// - 200: successful operation
// - 400: Invalid ID supplied
// - 404: Product not found or out of stock
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "productId")
	if err != nil {
		writeDomainError(w, r, err, h.logger, "invalid product id")
		return
	}

	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err, h.logger, "failed to get product")
		return
	}

	WriteJSON(w, http.StatusOK, newProductResponse(*product), h.logger)
}

// CreateProduct handles POST /api/products (multipart or urlencoded form)
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	form, cleanup, err := h.parseForm(w, r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), h.logger)
		return
	}
	defer cleanup()

	product, err := h.service.CreateProduct(r.Context(), form)
	if err != nil {
		writeDomainError(w, r, err, h.logger, "failed to create product")
		return
	}

	WriteJSON(w, http.StatusCreated, MessageResponse{Message: "Товар добавлен", ID: product.ID}, h.logger)
}

// UpdateProduct handles PUT /api/products/{productId}; absent fields are left unchanged
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "productId")
	if err != nil {
		writeDomainError(w, r, err, h.logger, "invalid product id")
		return
	}

	form, cleanup, err := h.parseForm(w, r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error(), h.logger)
		return
	}
	defer cleanup()

	if _, err := h.service.UpdateProduct(r.Context(), id, form); err != nil {
		writeDomainError(w, r, err, h.logger, "failed to update product")
		return
	}

	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Товар обновлен"}, h.logger)
}

// DeleteProduct handles DELETE /api/products/{productId}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "productId")
	if err != nil {
		writeDomainError(w, r, err, h.logger, "invalid product id")
		return
	}

	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		writeDomainError(w, r, err, h.logger, "failed to delete product")
		return
	}

	WriteJSON(w, http.StatusOK, MessageResponse{Message: "Товар удален"}, h.logger)
}

var errBadForm = errors.New("invalid form data")

// parseForm reads the catalog fields from a multipart or urlencoded body.
// The returned cleanup closes the uploaded photo and removes temp files.
func (h *ProductHandler) parseForm(w http.ResponseWriter, r *http.Request) (service.ProductForm, func(), error) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	err := r.ParseMultipartForm(maxUploadSize)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		h.logger.Info("failed to parse product form", "error", err)
		return service.ProductForm{}, noop, errBadForm
	}

	field := func(name string) *string {
		if _, ok := r.PostForm[name]; !ok {
			return nil
		}
		v := r.PostForm.Get(name)
		return &v
	}

	form := service.ProductForm{
		Name:        field("name"),
		Description: field("description"),
		Price:       field("price"),
		Quantity:    field("quantity"),
		Category:    field("category"),
	}

	var file multipart.File
	if r.MultipartForm != nil {
		f, header, err := r.FormFile("photo")
		switch {
		case err == nil:
			file = f
			form.Photo = &service.Photo{Filename: header.Filename, Content: f}
		case errors.Is(err, http.ErrMissingFile):
		default:
			h.logger.Info("failed to read photo", "error", err)
			return service.ProductForm{}, noop, errBadForm
		}
	}

	cleanup := func() {
		if file != nil {
			file.Close()
		}
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}
	return form, cleanup, nil
}
