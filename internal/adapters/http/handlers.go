package http

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/Christopher96/places-online/internal/core/domain"
	"github.com/Christopher96/places-online/internal/pkg/geospatial"
)

const geoJSONCacheTTL = 300 // seconds

var validate = validator.New()

// ClaimRequest is the body of a claim. An empty colour claims with the
// currently selected one.
type ClaimRequest struct {
	Color string `json:"color" validate:"omitempty,max=64"`
}

// ClaimAtRequest claims the tile containing a coordinate.
type ClaimAtRequest struct {
	Lat   float64 `json:"lat" validate:"latitude"`
	Lon   float64 `json:"lon" validate:"longitude"`
	Color string  `json:"color" validate:"omitempty,max=64"`
}

// ColorRequest selects the colour used by later claims.
type ColorRequest struct {
	Color string `json:"color" validate:"required,max=64"`
}

// FollowRequest sets follow mode; omitting enabled toggles it.
type FollowRequest struct {
	Enabled *bool `json:"enabled"`
}

// ClaimResponse is returned after a successful claim.
type ClaimResponse struct {
	Tile    domain.Tile `json:"tile"`
	Version uint64      `json:"version"`
}

func parseBody(c *fiber.Ctx, dst any) error {
	if len(c.Body()) > 0 {
		if err := c.BodyParser(dst); err != nil {
			return errors.New("invalid request body")
		}
	}
	if err := validate.Struct(dst); err != nil {
		return err
	}
	return nil
}

func errGridUnavailable(c *fiber.Ctx) error {
	return newError(c, fiber.StatusServiceUnavailable, "grid_unavailable", "grid not generated yet")
}

// GetGridHandler returns the current grid.
func GetGridHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		grid, ok := deps.Session.Snapshot()
		if !ok {
			return errGridUnavailable(c)
		}
		if notModified(c, grid.Version) {
			return nil
		}
		return c.JSON(grid)
	}
}

// GetTileHandler returns one tile by index.
func GetTileHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		index, err := strconv.Atoi(c.Params("index"))
		if err != nil {
			return errBadRequest(c, "index must be an integer")
		}
		grid, ok := deps.Session.Snapshot()
		if !ok {
			return errGridUnavailable(c)
		}
		if index < 0 || index >= len(grid.Tiles) {
			return errFromDomain(c, domain.ErrIndexOutOfRange)
		}
		return c.JSON(grid.Tiles[index])
	}
}

// GridGeoJSONHandler returns the grid as a GeoJSON FeatureCollection.
// Rendered documents are cached per grid version when a cache is configured.
func GridGeoJSONHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		grid, ok := deps.Session.Snapshot()
		if !ok {
			return errGridUnavailable(c)
		}
		if notModified(c, grid.Version) {
			return nil
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")

		key := "grid:geojson:v" + itoa(grid.Version)
		if deps.Cache != nil {
			if data, err := deps.Cache.Get(c.UserContext(), key); err == nil && len(data) > 0 {
				c.Set("X-Cache", "HIT")
				return c.Send(data)
			}
		}

		data, err := json.Marshal(geospatial.GridFeatureCollection(grid))
		if err != nil {
			return errInternal(c, err.Error())
		}

		if deps.Cache != nil {
			c.Set("X-Cache", "MISS")
			if err := deps.Cache.Set(c.UserContext(), key, data, geoJSONCacheTTL); err != nil {
				LoggerFromCtx(c.UserContext()).Warn("geojson cache set", "key", key, "error", err)
			}
		}
		return c.Send(data)
	}
}

// ClaimTileHandler claims a tile by index.
func ClaimTileHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		index, err := strconv.Atoi(c.Params("index"))
		if err != nil {
			return errBadRequest(c, "index must be an integer")
		}
		var req ClaimRequest
		if err := parseBody(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}
		return claim(c, deps, index, domain.Color(req.Color))
	}
}

// ClaimAtHandler claims the tile containing a coordinate.
func ClaimAtHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ClaimAtRequest
		if err := parseBody(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}
		tile, ok := deps.Session.TileAt(domain.GeoPoint{Lat: req.Lat, Lon: req.Lon})
		if !ok {
			return errNotFound(c, "no tile contains the given point")
		}
		return claim(c, deps, tile.Index, domain.Color(req.Color))
	}
}

func claim(c *fiber.Ctx, deps *Dependencies, index int, color domain.Color) error {
	ctx := c.UserContext()
	var (
		tile    domain.Tile
		version uint64
		err     error
	)
	if color == "" {
		tile, version, err = deps.Session.ClaimWithSelected(ctx, index)
	} else {
		tile, version, err = deps.Session.ClaimTile(ctx, index, color)
	}
	if err != nil {
		return errFromDomain(c, err)
	}

	LoggerFromCtx(ctx).Info("tile claimed", "index", tile.Index, "color", tile.ClaimedColor, "version", version)
	return c.JSON(ClaimResponse{Tile: tile, Version: version})
}

// GetColorHandler returns the selected colour.
func GetColorHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"color": deps.Session.SelectedColor()})
	}
}

// SelectColorHandler changes the selected colour.
func SelectColorHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ColorRequest
		if err := parseBody(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}
		if err := deps.Session.SelectColor(domain.Color(req.Color)); err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(fiber.Map{"color": deps.Session.SelectedColor()})
	}
}

// GetObserverHandler returns the observer state.
func GetObserverHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(deps.Tracker.Observer())
	}
}

// FollowHandler sets or toggles follow mode.
func FollowHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req FollowRequest
		if err := parseBody(c, &req); err != nil {
			return errBadRequest(c, err.Error())
		}
		ctx := c.UserContext()
		var on bool
		if req.Enabled == nil {
			on = deps.Tracker.ToggleFollow(ctx)
		} else {
			on = *req.Enabled
			deps.Tracker.SetFollow(ctx, on)
		}
		return c.JSON(fiber.Map{"follow": on})
	}
}

// LocateHandler requests a fresh fix and recentres the camera on it.
func LocateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := deps.Tracker.FindMe(c.UserContext())
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(p)
	}
}

// StartTrackerHandler starts tracking. After a permission or availability
// failure it is the user's way to retry.
func StartTrackerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Subscriptions outlive the request.
		ctx := context.WithoutCancel(c.UserContext())
		if err := deps.Tracker.Start(ctx); err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(deps.Tracker.Observer())
	}
}

// StopTrackerHandler stops tracking.
func StopTrackerHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.Tracker.Stop(); err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(deps.Tracker.Observer())
	}
}

// JournalHandler lists recorded samples. Query: since (Go duration, default
// 15m) and limit (default 500, max 5000).
func JournalHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Journal == nil {
			return errNotFound(c, "journal not configured")
		}
		since, err := time.ParseDuration(c.Query("since", "15m"))
		if err != nil || since <= 0 {
			return errBadRequest(c, "since must be a positive duration")
		}
		limit := c.QueryInt("limit", 500)
		if limit <= 0 || limit > 5000 {
			limit = 500
		}

		entries, err := deps.Journal.Since(c.UserContext(), time.Now().Add(-since), limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		return c.JSON(fiber.Map{"entries": entries, "count": len(entries)})
	}
}
