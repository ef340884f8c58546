package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sakashimaa/product-showcase/internal/domain"
	"github.com/sakashimaa/product-showcase/internal/listing"
	"github.com/sakashimaa/product-showcase/internal/repository"
	"github.com/sakashimaa/product-showcase/internal/transport/http/middleware"
	"github.com/sakashimaa/product-showcase/pkg/mylogger"
	"go.uber.org/zap"
)

type Lister interface {
	List(ctx context.Context, q listing.Query) (*listing.Page, error)
	Snapshots(ctx context.Context, q listing.Query) iter.Seq2[listing.Snapshot, error]
}

type ListingHandler struct {
	lister    Lister
	base      context.Context
	timeout   time.Duration
	heartbeat time.Duration
	logger    *zap.Logger
}

// NewListingHandler ties open streams to base, so cancelling it ends every
// stream on shutdown.
func NewListingHandler(base context.Context, lister Lister, timeout time.Duration, logger *zap.Logger) *ListingHandler {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &ListingHandler{
		lister:    lister,
		base:      base,
		timeout:   timeout,
		heartbeat: 15 * time.Second,
		logger:    logger,
	}
}

func parseQuery(c *fiber.Ctx) (listing.Query, error) {
	orderBy, err := domain.ParseOrderBy(c.Query("order"))
	if err != nil {
		return listing.Query{}, err
	}

	limit := c.QueryInt("limit", 0)
	if c.Query("limit") != "" && limit <= 0 {
		return listing.Query{}, domain.NewValidationError("limit", "limit must be a positive integer")
	}

	return listing.Query{
		OrderBy:   orderBy,
		PageToken: c.Query("page_token"),
		Limit:     limit,
		Search:    c.Query("q"),
	}, nil
}

func (h *ListingHandler) List(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	q, err := parseQuery(c)
	if err != nil {
		mylogger.Warn(ctx, h.logger, "invalid list query", zap.Error(err))
		return writeError(c, err)
	}

	page, err := h.lister.List(ctx, q)
	if err != nil {
		mylogger.Warn(
			ctx,
			h.logger,
			"list products failed",
			zap.Int("http_code", mapErrorStatus(err)),
			zap.Error(err),
		)

		return writeError(c, err)
	}

	mylogger.Debug(
		ctx,
		h.logger,
		"list products succeeded",
		zap.String("order", string(q.OrderBy)),
		zap.Int("count", len(page.Items)),
		zap.Bool("has_next", page.NextPageToken != ""),
	)

	return c.Status(fiber.StatusOK).JSON(toPageResponse(*page, middleware.CallerFrom(c)))
}

// Stream pushes a "snapshot" server-sent event with the full result set
// every time the listing changes.
func (h *ListingHandler) Stream(c *fiber.Ctx) error {
	q, err := parseQuery(c)
	if err != nil {
		return writeError(c, err)
	}

	// once the body stream starts the status is already 200
	if _, err := repository.DecodeCursor(q.PageToken, q.OrderBy); err != nil {
		mylogger.Warn(c.UserContext(), h.logger, "invalid stream page token", zap.Error(err))
		return writeError(c, err)
	}

	caller := middleware.CallerFrom(c)
	ctx, cancel := context.WithCancel(h.base)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		mylogger.Info(ctx, h.logger, "listing stream opened", zap.String("order", string(q.OrderBy)))
		defer mylogger.Info(ctx, h.logger, "listing stream closed")

		type result struct {
			snap listing.Snapshot
			err  error
		}

		results := make(chan result)
		go func() {
			defer close(results)
			for snap, err := range h.lister.Snapshots(ctx, q) {
				select {
				case results <- result{snap: snap, err: err}:
				case <-ctx.Done():
					return
				}
			}
		}()

		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := writeEvent(w, "", nil); err != nil {
					return
				}
			case res, ok := <-results:
				if !ok {
					return
				}

				if res.err != nil {
					mylogger.Warn(ctx, h.logger, "listing stream failed", zap.Error(res.err))
					_ = writeEvent(w, "error", fiber.Map{"error": "listing unavailable"})
					return
				}

				payload := SnapshotResponse{
					Seq:          res.snap.Seq,
					PageResponse: toPageResponse(res.snap.Page, caller),
				}
				if err := writeEvent(w, "snapshot", payload); err != nil {
					return
				}
			}
		}
	})

	return nil
}

// writeEvent writes one SSE frame. An empty event name writes a comment line
// used as a heartbeat.
func writeEvent(w *bufio.Writer, event string, data any) error {
	if event == "" {
		if _, err := w.WriteString(": ping\n\n"); err != nil {
			return err
		}
		return w.Flush()
	}

	body, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, body); err != nil {
		return err
	}

	return w.Flush()
}
