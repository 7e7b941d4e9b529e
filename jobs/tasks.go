package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	jobmetrics "github.com/kitarena/kitarena/internal/jobs"
	"github.com/kitarena/kitarena/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSocialPost announces a newly created product.
	TaskTypeSocialPost = "social:post"
	// TaskTypeIdempotencyCleanup prunes expired idempotency keys.
	TaskTypeIdempotencyCleanup = "maintenance:idempotency_cleanup"
)

// SocialPostPayload carries everything the announcement needs; the product
// row is not re-read at publish time.
type SocialPostPayload struct {
	ProductID int64  `json:"product_id"`
	Title     string `json:"title"`
	BasePrice int64  `json:"base_price"`
	Kit       string `json:"kit"`
	Season    string `json:"season"`
}

// NewSocialPostTask constructs an Asynq task for a product announcement.
func NewSocialPostTask(payload SocialPostPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeSocialPost, data), nil
}

// SocialPoster publishes a rendered announcement to an external channel.
type SocialPoster interface {
	Publish(ctx context.Context, text string) error
}

// LogPoster writes announcements to the log. It stands in until a real
// channel integration is configured.
type LogPoster struct {
	Logger *slog.Logger
}

func (p LogPoster) Publish(ctx context.Context, text string) error {
	p.Logger.Info("social post", slog.String("text", text))
	return nil
}

// SocialPostHandler processes TaskTypeSocialPost tasks. An idempotency key
// per product keeps retried deliveries from posting twice.
type SocialPostHandler struct {
	Poster      SocialPoster
	Idempotency *shared.IdempotencyStore
	Metrics     *jobmetrics.Metrics
	Logger      *slog.Logger
	printer     *message.Printer
}

// NewSocialPostHandler builds the handler with a formatter for price output.
func NewSocialPostHandler(poster SocialPoster, idem *shared.IdempotencyStore, metrics *jobmetrics.Metrics, logger *slog.Logger) *SocialPostHandler {
	return &SocialPostHandler{
		Poster:      poster,
		Idempotency: idem,
		Metrics:     metrics,
		Logger:      logger,
		printer:     message.NewPrinter(language.English),
	}
}

// Handle is the asynq.HandlerFunc for social posts.
func (h *SocialPostHandler) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := h.Metrics.Track("social_post")
	var payload SocialPostPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("social post: %w: %w", asynq.SkipRetry, err))
	}

	key := fmt.Sprintf("social-post-%d", payload.ProductID)
	if err := h.Idempotency.CheckAndInsert(ctx, key, "jobs"); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			h.Logger.Info("social post already published", slog.Int64("product_id", payload.ProductID))
			return tracker.End(nil)
		}
		return tracker.End(err)
	}

	if err := h.Poster.Publish(ctx, h.render(payload)); err != nil {
		// Release the key so the retry can attempt delivery again.
		if delErr := h.Idempotency.Delete(ctx, key); delErr != nil {
			h.Logger.Warn("idempotency key release failed", slog.String("key", key), slog.Any("error", delErr))
		}
		return tracker.End(err)
	}
	h.Metrics.AddPublishedPost()
	return tracker.End(nil)
}

func (h *SocialPostHandler) render(p SocialPostPayload) string {
	label := p.Title
	if p.Season != "" {
		label = fmt.Sprintf("%s (%s)", label, p.Season)
	}
	price := h.printer.Sprintf("%d", p.BasePrice)
	if p.Kit != "" {
		return fmt.Sprintf("New arrival: %s [%s] from %s. Order now!", label, p.Kit, price)
	}
	return fmt.Sprintf("New arrival: %s from %s. Order now!", label, price)
}

// IdempotencyCleanupHandler prunes idempotency keys past retention.
type IdempotencyCleanupHandler struct {
	Store     *shared.IdempotencyStore
	Retention time.Duration
	Metrics   *jobmetrics.Metrics
	Logger    *slog.Logger
}

// Handle is the asynq.HandlerFunc for the cleanup cron.
func (h *IdempotencyCleanupHandler) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := h.Metrics.Track("idempotency_cleanup")
	retention := h.Retention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if err := h.Store.Cleanup(ctx, retention); err != nil {
		h.Logger.Error("idempotency cleanup failed", slog.Any("error", err))
		return tracker.End(err)
	}
	return tracker.End(nil)
}

// NewIdempotencyCleanupTask constructs the cron task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskTypeIdempotencyCleanup, nil)
}
