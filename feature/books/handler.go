package books

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"babybook/core/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for books.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the books routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/books", h.HandleGetBooks)
	app.Get("/books/:id", h.HandleGetBook)
	app.Get("/books/:id/pages", h.HandleGetBookPages)
	app.Post("/books/:id/preload", h.HandlePreloadBook)
	app.Get("/tags", h.HandleGetTags)
	app.Get("/search", h.HandleSearch)
	app.Get("/manifest", h.HandleGetManifest)
}

// HandleGetBooks returns a filtered, sorted, paginated book listing.
func (h *Handler) HandleGetBooks(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	filters := Filters{
		Query:    c.Query("q"),
		SortBy:   c.Query("sortBy", "title"),
		SortDesc: c.Query("order") == "desc",
	}
	if tags := c.Query("tags"); tags != "" {
		filters.Tags = strings.Split(tags, ",")
	}
	if after := c.Query("modifiedAfter"); after != "" {
		t, err := time.Parse(time.RFC3339, after)
		if err != nil {
			return badRequest(c, "invalid modifiedAfter, want RFC3339")
		}
		filters.ModifiedAfter = t
	}
	if before := c.Query("modifiedBefore"); before != "" {
		t, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return badRequest(c, "invalid modifiedBefore, want RFC3339")
		}
		filters.ModifiedBefore = t
	}

	list, err := h.service.GetAllBooks(c.Context(), filters, pagination(c))
	if err != nil {
		l.Error("Book listing failed", zap.Error(err))
		return serverError(c, err)
	}
	return c.JSON(list)
}

// HandleGetBook returns one book by id.
func (h *Handler) HandleGetBook(c *fiber.Ctx) error {
	id := c.Params("id")
	l := logger.WithRayID(h.service.logger, c)

	book, err := h.service.GetBookByID(c.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "book not found",
			"id":    id,
		})
	}
	if err != nil {
		l.Error("Book lookup failed", zap.String("id", id), zap.Error(err))
		return serverError(c, err)
	}
	return c.JSON(book)
}

// HandleGetBookPages returns the pages of one book.
func (h *Handler) HandleGetBookPages(c *fiber.Ctx) error {
	id := c.Params("id")
	l := logger.WithRayID(h.service.logger, c)

	pages, err := h.service.GetBookPages(c.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "book not found",
			"id":    id,
		})
	}
	if err != nil {
		l.Error("Page lookup failed", zap.String("id", id), zap.Error(err))
		return serverError(c, err)
	}
	return c.JSON(pages)
}

// HandlePreloadBook warms the image loader with a book's page assets.
func (h *Handler) HandlePreloadBook(c *fiber.Ctx) error {
	id := c.Params("id")
	l := logger.WithRayID(h.service.logger, c)

	results, err := h.service.PreloadBook(c.Context(), id)
	if errors.Is(err, ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "book not found",
			"id":    id,
		})
	}
	if err != nil {
		l.Error("Preload failed", zap.String("id", id), zap.Error(err))
		return serverError(c, err)
	}
	return c.JSON(fiber.Map{"preloaded": results})
}

// HandleGetTags returns the tag union across all books.
func (h *Handler) HandleGetTags(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	tags, err := h.service.GetAllTags(c.Context())
	if err != nil {
		l.Error("Tag listing failed", zap.Error(err))
		return serverError(c, err)
	}
	return c.JSON(fiber.Map{"tags": tags})
}

// HandleSearch is free-text search over titles, descriptions and baby
// names.
func (h *Handler) HandleSearch(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	q := c.Query("q")
	if strings.TrimSpace(q) == "" {
		return badRequest(c, "missing query parameter q")
	}

	list, err := h.service.SearchBooks(c.Context(), q, pagination(c))
	if err != nil {
		l.Error("Search failed", zap.String("q", q), zap.Error(err))
		return serverError(c, err)
	}
	return c.JSON(list)
}

// HandleGetManifest returns the raw manifest. force=true bypasses the
// cache.
func (h *Handler) HandleGetManifest(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	force, _ := strconv.ParseBool(c.Query("force"))
	m, err := h.service.LoadManifest(c.Context(), force)
	if err != nil {
		l.Error("Manifest load failed", zap.Error(err))
		return serverError(c, err)
	}
	return c.JSON(m)
}

func pagination(c *fiber.Ctx) Pagination {
	return Pagination{
		Page:  c.QueryInt("page", 1),
		Limit: c.QueryInt("limit", defaultPageLimit),
	}
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func serverError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}
