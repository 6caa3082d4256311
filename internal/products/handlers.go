package products

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/trackrate/internal/money"
	"github.com/mbd888/trackrate/internal/validation"
)

// Handler exposes catalog management on the admin surface.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterAdminRoutes registers catalog CRUD and CSV import.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/products", h.List)
	r.POST("/products", h.Create)
	r.GET("/products/:id", h.Get)
	r.PUT("/products/:id", h.Update)
	r.DELETE("/products/:id", h.Delete)
	r.POST("/products/import", h.Import)
}

type ProductRequest struct {
	Name  string `json:"name"`
	Price string `json:"price"`
	Image string `json:"image"`
}

// List handles GET /v1/admin/products
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	if list == nil {
		list = []*Product{}
	}
	c.JSON(http.StatusOK, gin.H{"products": list, "count": len(list)})
}

// Create handles POST /v1/admin/products
func (h *Handler) Create(c *gin.Context) {
	var req ProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("name", req.Name),
		validation.ValidAmount("price", req.Price),
	); errs != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}

	created, err := h.svc.Create(c.Request.Context(), &Product{
		Name:  validation.SanitizeString(req.Name, 255),
		Price: req.Price,
		Image: validation.SanitizeString(req.Image, 500),
	})
	if err != nil {
		if errors.Is(err, ErrInvalidProduct) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_product", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"product": created})
}

// Get handles GET /v1/admin/products/:id
func (h *Handler) Get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": p})
}

// Update handles PUT /v1/admin/products/:id
func (h *Handler) Update(c *gin.Context) {
	existing, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	var req struct {
		Name  *string `json:"name"`
		Price *string `json:"price"`
		Image *string `json:"image"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid body"})
		return
	}
	if req.Name != nil {
		existing.Name = validation.SanitizeString(*req.Name, 255)
	}
	if req.Price != nil {
		existing.Price = *req.Price
	}
	if req.Image != nil {
		existing.Image = validation.SanitizeString(*req.Image, 500)
	}

	updated, err := h.svc.Update(c.Request.Context(), existing)
	if err != nil {
		if errors.Is(err, ErrInvalidProduct) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_product", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": updated})
}

// Delete handles DELETE /v1/admin/products/:id
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Import handles POST /v1/admin/products/import. The body is a multipart
// upload with a "file" part holding name,price[,image] CSV rows. A header
// row is skipped automatically. Rows that fail validation are reported and
// do not abort the rest of the file.
func (h *Handler) Import(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "missing csv file"})
		return
	}
	defer file.Close()

	created, rowErrors, err := h.importCSV(c, file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_csv", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"imported": created,
		"errors":   rowErrors,
	})
}

func (h *Handler) importCSV(c *gin.Context, r io.Reader) (int, []string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	created := 0
	var rowErrors []string
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return created, rowErrors, fmt.Errorf("csv parse failed: %w", err)
		}
		line++

		if len(record) < 2 {
			rowErrors = append(rowErrors, fmt.Sprintf("line %d: expected name,price[,image]", line))
			continue
		}
		name := strings.TrimSpace(record[0])
		price := strings.TrimSpace(record[1])
		image := ""
		if len(record) > 2 {
			image = strings.TrimSpace(record[2])
		}

		// Header row
		if line == 1 {
			if _, ok := money.Parse(price); !ok && strings.EqualFold(price, "price") {
				continue
			}
		}

		_, err = h.svc.Create(c.Request.Context(), &Product{
			Name:  validation.SanitizeString(name, 255),
			Price: price,
			Image: validation.SanitizeString(image, 500),
		})
		if err != nil {
			rowErrors = append(rowErrors, fmt.Sprintf("line %d: %v", line, err))
			continue
		}
		created++
	}
	return created, rowErrors, nil
}
