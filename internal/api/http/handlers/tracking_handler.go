package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/parcel-tracker/internal/api/dto"
	"github.com/spec-kit/parcel-tracker/internal/domain"
	"github.com/spec-kit/parcel-tracker/internal/events"
	"github.com/spec-kit/parcel-tracker/internal/service"
)

// heartbeatInterval keeps idle SSE connections from being reaped by proxies.
const heartbeatInterval = 25 * time.Second

// TrackingHandler serves the public tracking read path.
type TrackingHandler struct {
	service *service.PackageService
	feed    *events.ChangeFeed
	logger  *zap.Logger
}

// NewTrackingHandler constructs handler.
func NewTrackingHandler(packageService *service.PackageService, feed *events.ChangeFeed, logger *zap.Logger) *TrackingHandler {
	return &TrackingHandler{service: packageService, feed: feed, logger: logger}
}

// Track GET /api/track/:code. Lookup is case-insensitive; absence renders a
// not-found state rather than an error.
func (h *TrackingHandler) Track(c *fiber.Ctx) error {
	pkg, err := h.service.Track(c.UserContext(), c.Params("code"))
	if err != nil {
		return err
	}
	if pkg == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"found": false})
	}
	return c.JSON(fiber.Map{"found": true, "data": dto.TrackingFromDomain(pkg)})
}

// Stream GET /api/track/:code/events. Emits the current state immediately and
// a new event after every mutation, as server-sent events.
func (h *TrackingHandler) Stream(c *fiber.Ctx) error {
	code := domain.NormalizeTrackingCode(c.Params("code"))

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	feed := h.feed
	logger := h.logger
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		snapshots := make(chan []byte, 16)
		sub := feed.Subscribe(code, func(pkg *domain.Package) {
			payload, err := json.Marshal(streamPayload(pkg))
			if err != nil {
				logger.Warn("tracking stream encode failed", zap.String("tracking_code", code), zap.Error(err))
				return
			}
			enqueueLatest(snapshots, payload)
		})
		defer sub.Unsubscribe()

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case payload := <-snapshots:
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-heartbeat.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

// enqueueLatest drops the oldest pending payload when the client is slow; the
// latest state always wins.
func enqueueLatest(ch chan []byte, payload []byte) {
	select {
	case ch <- payload:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- payload:
		default:
		}
	}
}

func streamPayload(pkg *domain.Package) fiber.Map {
	if pkg == nil {
		return fiber.Map{"found": false}
	}
	return fiber.Map{"found": true, "data": dto.TrackingFromDomain(pkg)}
}
