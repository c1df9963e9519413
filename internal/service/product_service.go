package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/Lixing-Zhang/storefront/internal/models"
	"github.com/Lixing-Zhang/storefront/internal/repository"
	"github.com/Lixing-Zhang/storefront/internal/uploads"
	"github.com/shopspring/decimal"
)

// PhotoStore persists uploaded product photos and returns the stored file name
type PhotoStore interface {
	Save(filename string, content io.Reader) (string, error)
}

// Photo is an uploaded file attached to a create or update request
type Photo struct {
	Filename string
	Content  io.Reader
}

// ProductForm carries raw catalog form fields. Nil means the field was not sent.
type ProductForm struct {
	Name        *string
	Description *string
	Price       *string
	Quantity    *string
	Category    *string
	Photo       *Photo
}

// ProductService handles business logic for products
type ProductService struct {
	repo   repository.ProductRepository
	photos PhotoStore
	logger *slog.Logger
}

// NewProductService creates a new product service
func NewProductService(repo repository.ProductRepository, photos PhotoStore, logger *slog.Logger) *ProductService {
	return &ProductService{
		repo:   repo,
		photos: photos,
		logger: logger,
	}
}

// ListProducts returns products that are in stock
func (s *ProductService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.ListAvailable(ctx)
}

// ListAllProducts returns the whole catalog, sold-out products included
func (s *ProductService) ListAllProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.ListAll(ctx)
}

// GetProduct returns an in-stock product; sold-out products are reported as not found
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.Available() {
		return nil, fmt.Errorf("%w: id %d is out of stock", repository.ErrProductNotFound, id)
	}
	return product, nil
}

// CreateProduct validates the form, stores the photo if any and creates the product
func (s *ProductService) CreateProduct(ctx context.Context, form ProductForm) (*models.Product, error) {
	name := trimmed(form.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if trimmed(form.Price) == "" {
		return nil, fmt.Errorf("%w: price is required", ErrValidation)
	}
	if trimmed(form.Quantity) == "" {
		return nil, fmt.Errorf("%w: quantity is required", ErrValidation)
	}

	price, err := parsePrice(trimmed(form.Price))
	if err != nil {
		return nil, err
	}
	quantity, err := parseQuantity(trimmed(form.Quantity))
	if err != nil {
		return nil, err
	}

	category := trimmed(form.Category)
	if category == "" {
		category = models.DefaultCategory
	}

	product := &models.Product{
		Name:     name,
		Price:    price,
		Quantity: quantity,
		Category: category,
	}
	if form.Description != nil {
		product.Description = *form.Description
	}

	if form.Photo != nil {
		stored, err := s.savePhoto(*form.Photo)
		if err != nil {
			return nil, err
		}
		product.Photo = stored
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product created", "product_id", product.ID, "name", product.Name)
	return product, nil
}

// UpdateProduct applies the fields that were sent. Blank name, price,
// quantity or category keep the current value.
func (s *ProductService) UpdateProduct(ctx context.Context, id int64, form ProductForm) (*models.Product, error) {
	var changes models.ProductChanges

	if name := trimmed(form.Name); name != "" {
		changes.Name = &name
	}
	if form.Description != nil {
		desc := *form.Description
		changes.Description = &desc
	}
	if raw := trimmed(form.Price); raw != "" {
		price, err := parsePrice(raw)
		if err != nil {
			return nil, err
		}
		changes.Price = &price
	}
	if raw := trimmed(form.Quantity); raw != "" {
		quantity, err := parseQuantity(raw)
		if err != nil {
			return nil, err
		}
		changes.Quantity = &quantity
	}
	if category := trimmed(form.Category); category != "" {
		changes.Category = &category
	}

	// make sure the product exists before writing a file for it
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return nil, err
	}

	if form.Photo != nil {
		stored, err := s.savePhoto(*form.Photo)
		if err != nil {
			return nil, err
		}
		changes.Photo = &stored
	}

	product, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "product updated", "product_id", id)
	return product, nil
}

// DeleteProduct removes a product from the catalog
func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "product deleted", "product_id", id)
	return nil
}

func (s *ProductService) savePhoto(photo Photo) (string, error) {
	if s.photos == nil {
		return "", fmt.Errorf("photo uploads are not configured")
	}
	stored, err := s.photos.Save(photo.Filename, photo.Content)
	if err != nil {
		if errors.Is(err, uploads.ErrUnsupportedType) || errors.Is(err, uploads.ErrEmptyFile) {
			return "", fmt.Errorf("%w: %w", ErrValidation, err)
		}
		return "", fmt.Errorf("failed to store photo: %w", err)
	}
	return stored, nil
}

// Prices and stock must fit the products table: NUMERIC(12,2) and INTEGER
const (
	priceScale  = 2
	maxQuantity = math.MaxInt32
)

var maxPrice = decimal.New(1, 10)

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: price %q is not a number", ErrValidation, raw)
	}
	if price.IsNegative() {
		return decimal.Decimal{}, fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	if !price.Equal(price.Round(priceScale)) {
		return decimal.Decimal{}, fmt.Errorf("%w: price %q has more than %d decimal places", ErrValidation, raw, priceScale)
	}
	if price.GreaterThanOrEqual(maxPrice) {
		return decimal.Decimal{}, fmt.Errorf("%w: price must be below %s", ErrValidation, maxPrice)
	}
	return price, nil
}

func parseQuantity(raw string) (int, error) {
	quantity, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: quantity %q is not an integer", ErrValidation, raw)
	}
	if quantity < 0 {
		return 0, fmt.Errorf("%w: quantity must not be negative", ErrValidation)
	}
	if quantity > maxQuantity {
		return 0, fmt.Errorf("%w: quantity must not exceed %d", ErrValidation, maxQuantity)
	}
	return quantity, nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
