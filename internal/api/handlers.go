package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sort"

	"github.com/gofiber/fiber/v2"
	"github.com/passbi/od_dashboard/internal/cache"
	"github.com/passbi/od_dashboard/internal/filter"
	"github.com/passbi/od_dashboard/internal/matrix"
	"github.com/passbi/od_dashboard/internal/models"
	"github.com/passbi/od_dashboard/internal/pipeline"
	"github.com/passbi/od_dashboard/internal/render"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// Handler serves the dashboard endpoints over a dataset store
type Handler struct {
	Store    *pipeline.Store
	Preparer *pipeline.Preparer
	Cache    cache.ViewCache // nil disables response caching
	Options  pipeline.BuildOptions
	Checks   map[string]HealthCheck
}

// NewHandler wires a handler with default build options
func NewHandler(store *pipeline.Store, preparer *pipeline.Preparer, viewCache cache.ViewCache) *Handler {
	return &Handler{
		Store:    store,
		Preparer: preparer,
		Cache:    viewCache,
		Options:  pipeline.DefaultBuildOptions(),
		Checks:   make(map[string]HealthCheck),
	}
}

// Register mounts every route on the router
func (h *Handler) Register(router fiber.Router) {
	router.Get("/health", h.Health)

	v1 := router.Group("/v1")
	v1.Get("/datasets", h.Datasets)
	v1.Get("/datasets/:id/filters", h.Filters)
	v1.Get("/datasets/:id/dashboard", h.Dashboard)
	v1.Get("/datasets/:id/zones", h.Zones)
}

// Health handles the /health endpoint
func (h *Handler) Health(c *fiber.Ctx) error {
	ctx := c.Context()

	names := make([]string, 0, len(h.Checks))
	for name := range h.Checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	httpStatus := fiber.StatusOK
	checks := fiber.Map{}
	for _, name := range names {
		if err := h.Checks[name](ctx); err != nil {
			checks[name] = err.Error()
			status = "unhealthy"
			httpStatus = fiber.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	if !h.Store.IsLoaded() {
		checks["datasets"] = "no dataset loaded"
		status = "unhealthy"
		httpStatus = fiber.StatusServiceUnavailable
	} else {
		checks["datasets"] = "ok"
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": checks,
	})
}

// Datasets handles the /v1/datasets endpoint
func (h *Handler) Datasets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"datasets": h.Store.List(),
	})
}

// FiltersResponse holds the options of every dashboard widget
type FiltersResponse struct {
	DatasetID      string             `json:"dataset_id"`
	AvailableModes []models.Mode      `json:"available_modes"`
	Modes          []models.Mode      `json:"modes"`
	Metrics        []models.Metric    `json:"metrics"`
	Origins        []models.ZoneID    `json:"origins"`
	Destinations   []models.ZoneID    `json:"destinations"`
	VolumeBounds   models.VolumeRange `json:"volume_bounds"`
	DefaultState   models.FilterState `json:"default_state"`
}

// Filters handles the /v1/datasets/:id/filters endpoint
func (h *Handler) Filters(c *fiber.Ctx) error {
	query, err := queryValues(c)
	if err != nil {
		return h.fail(c, err)
	}

	req, err := pipeline.ParseRequest(query)
	if err != nil {
		return h.fail(c, err)
	}

	prepared, err := h.prepare(c.Params("id"), req.Modes)
	if err != nil {
		return h.fail(c, err)
	}

	return c.JSON(FiltersResponse{
		DatasetID:      prepared.Dataset.Info.ID,
		AvailableModes: prepared.Dataset.Modes(),
		Modes:          prepared.Modes,
		Metrics:        models.Metrics,
		Origins:        prepared.Options.Origins,
		Destinations:   prepared.Options.Destinations,
		VolumeBounds:   prepared.Bounds,
		DefaultState:   filter.DefaultState(prepared.Enriched),
	})
}

// Dashboard handles the /v1/datasets/:id/dashboard endpoint
func (h *Handler) Dashboard(c *fiber.Ctx) error {
	query, err := queryValues(c)
	if err != nil {
		return h.fail(c, err)
	}

	req, err := pipeline.ParseRequest(query)
	if err != nil {
		return h.fail(c, err)
	}

	prepared, err := h.prepare(c.Params("id"), req.Modes)
	if err != nil {
		return h.fail(c, err)
	}

	req.Modes = prepared.Modes
	data, hit, err := h.renderDashboard(c.Context(), prepared, req)
	if err != nil {
		return h.fail(c, err)
	}

	if hit {
		c.Set("X-Cache", "HIT")
	} else {
		c.Set("X-Cache", "MISS")
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Send(data)
}

// renderDashboard returns the encoded view, going through the cache when enabled
func (h *Handler) renderDashboard(ctx context.Context, prepared *pipeline.Prepared, req pipeline.Request) ([]byte, bool, error) {
	if h.Cache == nil {
		data, err := h.encodeDashboard(prepared, req)
		return data, false, err
	}

	key := cache.DashboardKey(prepared.Dataset.Info.ID, req.CanonicalKey())

	if data, err := h.Cache.Get(ctx, key); err == nil && data != nil {
		return data, true, nil
	} else if err != nil {
		log.Printf("Warning: cache read failed for %s: %v", key, err)
	}

	acquired, err := h.Cache.Acquire(ctx, key)
	if err != nil {
		log.Printf("Warning: failed to acquire lock for %s: %v", key, err)
	} else if !acquired {
		if data, err := h.Cache.Wait(ctx, key); err == nil && data != nil {
			return data, true, nil
		}
	}

	defer func() {
		if acquired {
			if err := h.Cache.Release(ctx, key); err != nil {
				log.Printf("Warning: failed to release lock for %s: %v", key, err)
			}
		}
	}()

	data, err := h.encodeDashboard(prepared, req)
	if err != nil {
		return nil, false, err
	}

	if err := h.Cache.Set(ctx, key, data); err != nil {
		log.Printf("Warning: failed to cache %s: %v", key, err)
	}

	return data, false, nil
}

func (h *Handler) encodeDashboard(prepared *pipeline.Prepared, req pipeline.Request) ([]byte, error) {
	view, err := pipeline.Build(prepared, req, h.Options)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("failed to encode dashboard: %w", err)
	}
	return data, nil
}

// Zones handles the /v1/datasets/:id/zones endpoint
func (h *Handler) Zones(c *fiber.Ctx) error {
	query, err := queryValues(c)
	if err != nil {
		return h.fail(c, err)
	}

	req, err := pipeline.ParseRequest(query)
	if err != nil {
		return h.fail(c, err)
	}

	prepared, err := h.prepare(c.Params("id"), req.Modes)
	if err != nil {
		return h.fail(c, err)
	}

	fc := render.Choropleth(prepared.Dataset.Registry, prepared.Totals, req.Metric)
	c.Set("X-Legend-Max", fmt.Sprintf("%g", render.LegendMax(prepared.Totals, req.Metric)))
	return c.JSON(fc)
}

func (h *Handler) prepare(datasetID string, modes []models.Mode) (*pipeline.Prepared, error) {
	ds, err := h.Store.Get(datasetID)
	if err != nil {
		return nil, err
	}
	return h.Preparer.Prepare(ds, modes)
}

func queryValues(c *fiber.Ctx) (url.Values, error) {
	values, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrInvalidRequest, err)
	}
	return values, nil
}

// fail maps domain errors to status codes
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, pipeline.ErrDatasetNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, pipeline.ErrInvalidRequest), errors.Is(err, matrix.ErrUnknownMode):
		code = fiber.StatusBadRequest
	default:
		log.Printf("Error: %s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
