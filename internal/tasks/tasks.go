package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"voyago/backend/internal/config"
	"voyago/backend/internal/email"
	"voyago/backend/internal/metrics"
	"voyago/backend/internal/models"
	"voyago/backend/internal/services"
	"voyago/backend/internal/utils"
)

// Task types.
const (
	TypeBookingCompleteDue     = "booking:complete_due"
	TypeWithdrawalPendingSweep = "wallet:withdrawal:pending"
	TypeRecommendationRefresh  = "recommend:refresh"
	TypeWithdrawalNotify       = "wallet:withdrawal:notify"
)

// Queue names.
const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// bookingSweepBatch bounds the bookings completed by one sweep run.
const bookingSweepBatch = 200

func redisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(redisOpt(rdb))
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg                   *config.Config
	bookingService        services.IBookingService
	walletService         services.IWalletService
	recommendationService services.IRecommendationService
	mailer                email.Sender
	metrics               *metrics.Metrics
	log                   *zap.Logger
}

func NewTaskProcessor(
	cfg *config.Config,
	bookingService services.IBookingService,
	walletService services.IWalletService,
	recommendationService services.IRecommendationService,
	mailer email.Sender,
	m *metrics.Metrics,
	log *zap.Logger,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:                   cfg,
		bookingService:        bookingService,
		walletService:         walletService,
		recommendationService: recommendationService,
		mailer:                mailer,
		metrics:               m,
		log:                   log,
	}
}

// NewServer configures an asynq server. The caller starts it with Mux().
func NewServer(rdb *redis.Client, log *zap.Logger) *asynq.Server {
	return asynq.NewServer(
		redisOpt(rdb),
		asynq.Config{
			Queues: map[string]int{
				QueueCritical: 6,
				QueueDefault:  3,
				QueueLow:      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error("Task failed",
					zap.String("type", task.Type()),
					zap.ByteString("payload", task.Payload()),
					zap.Error(err),
				)
			}),
		},
	)
}

// Mux registers every task handler.
func (p *TaskProcessor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeBookingCompleteDue, p.HandleBookingCompleteDueTask)
	mux.HandleFunc(TypeWithdrawalPendingSweep, p.HandleWithdrawalPendingSweepTask)
	mux.HandleFunc(TypeRecommendationRefresh, p.HandleRecommendationRefreshTask)
	mux.HandleFunc(TypeWithdrawalNotify, p.HandleWithdrawalNotifyTask)
	return mux
}

// NewScheduler registers the periodic sweeps. Intervals below one second
// disable the corresponding sweep.
func NewScheduler(rdb *redis.Client, cfg *config.Config, log *zap.Logger) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(redisOpt(rdb), &asynq.SchedulerOpts{Location: time.UTC})

	periodic := []struct {
		taskType string
		every    time.Duration
	}{
		{TypeBookingCompleteDue, cfg.BookingSweepInterval},
		{TypeWithdrawalPendingSweep, cfg.WithdrawalSweepInterval},
	}
	for _, pt := range periodic {
		if pt.every < time.Second {
			continue
		}
		spec := fmt.Sprintf("@every %ds", int(pt.every.Seconds()))
		entryID, err := scheduler.Register(spec, asynq.NewTask(pt.taskType, nil), asynq.Queue(QueueLow), asynq.Unique(pt.every))
		if err != nil {
			return nil, fmt.Errorf("failed to schedule %s: %w", pt.taskType, err)
		}
		log.Info("Scheduled periodic task", zap.String("type", pt.taskType), zap.String("spec", spec), zap.String("entry_id", entryID))
	}
	return scheduler, nil
}

func (p *TaskProcessor) observe(taskType string, err error) {
	if p.metrics != nil {
		p.metrics.TasksProcessed.WithLabelValues(taskType, metrics.Outcome(err)).Inc()
	}
}

// --- Task Handlers ---

// HandleBookingCompleteDueTask completes confirmed bookings whose check-out
// has passed. Bookings that fail are retried with the whole task; the ones
// already completed no longer match the query.
func (p *TaskProcessor) HandleBookingCompleteDueTask(ctx context.Context, t *asynq.Task) (err error) {
	defer func() { p.observe(TypeBookingCompleteDue, err) }()

	due, err := p.bookingService.ListCompletableBookings(ctx, time.Now().UTC(), bookingSweepBatch)
	if err != nil {
		return fmt.Errorf("failed to list completable bookings: %w", err)
	}

	var failed []error
	completed := 0
	for _, b := range due {
		booking, cErr := p.bookingService.CompleteBooking(ctx, b.ID)
		switch {
		case errors.Is(cErr, services.ErrBookingState):
			continue
		case cErr != nil && booking == nil:
			failed = append(failed, fmt.Errorf("booking %s: %w", b.ID.String(), cErr))
			continue
		case cErr != nil:
			p.log.Error("Booking completed without earning", zap.String("booking_id", b.ID.String()), zap.Error(cErr))
		}
		completed++
		p.recommendationService.Invalidate(ctx, booking.GuestID)
	}

	p.log.Info("Booking completion sweep finished",
		zap.Int("due", len(due)),
		zap.Int("completed", completed),
		zap.Int("failed", len(failed)),
	)
	return errors.Join(failed...)
}

// HandleWithdrawalPendingSweepTask reports the pending withdrawal backlog
// and flags requests that have waited too long for an admin.
func (p *TaskProcessor) HandleWithdrawalPendingSweepTask(ctx context.Context, t *asynq.Task) (err error) {
	defer func() { p.observe(TypeWithdrawalPendingSweep, err) }()

	pending, err := p.walletService.ListPendingWithdrawals(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list pending withdrawals: %w", err)
	}
	if p.metrics != nil {
		p.metrics.PendingWithdrawals.Set(float64(len(pending)))
	}

	now := time.Now()
	overdue := 0
	for _, wr := range pending {
		if p.cfg.WithdrawalReminderAge > 0 && now.Sub(wr.RequestedAt) > p.cfg.WithdrawalReminderAge {
			overdue++
			p.log.Warn("Withdrawal awaiting review",
				zap.String("request_id", wr.ID.String()),
				zap.String("host_id", wr.HostID.String()),
				zap.Float64("amount", wr.Amount),
				zap.Time("requested_at", wr.RequestedAt),
			)
		}
	}
	p.log.Info("Withdrawal sweep finished", zap.Int("pending", len(pending)), zap.Int("overdue", overdue))
	return nil
}

// RecommendationRefreshPayload names the guest whose recommendations changed.
type RecommendationRefreshPayload struct {
	GuestID string `json:"guest_id"`
}

// HandleRecommendationRefreshTask drops the guest's cached recommendations
// on every instance and recomputes them.
func (p *TaskProcessor) HandleRecommendationRefreshTask(ctx context.Context, t *asynq.Task) (err error) {
	defer func() { p.observe(TypeRecommendationRefresh, err) }()

	var payload RecommendationRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal recommendation payload: %v: %w", err, asynq.SkipRetry)
	}
	guestID, err := utils.ParseSixID(payload.GuestID)
	if err != nil {
		return fmt.Errorf("invalid guest ID %q in payload: %w", payload.GuestID, asynq.SkipRetry)
	}

	p.recommendationService.Invalidate(ctx, guestID)
	recs, err := p.recommendationService.Refresh(ctx, guestID)
	if err != nil {
		return fmt.Errorf("failed to refresh recommendations for %s: %w", payload.GuestID, err)
	}
	p.log.Debug("Recommendations refreshed", zap.String("guest_id", payload.GuestID), zap.Int("results", len(recs)))
	return nil
}

// WithdrawalNotifyPayload describes a processed withdrawal for the host's
// notification email.
type WithdrawalNotifyPayload struct {
	RequestID    string                  `json:"request_id"`
	Email        string                  `json:"email"`
	Status       models.WithdrawalStatus `json:"status"`
	Amount       float64                 `json:"amount"`
	PayoutAmount float64                 `json:"payout_amount,omitempty"`
	Fee          float64                 `json:"fee,omitempty"`
	AdminNotes   string                  `json:"admin_notes,omitempty"`
}

// NewWithdrawalNotifyTask builds the notification task for a processed
// withdrawal request.
func NewWithdrawalNotifyTask(wr *models.WithdrawalRequest) (*asynq.Task, error) {
	payload, err := json.Marshal(WithdrawalNotifyPayload{
		RequestID:    wr.ID.String(),
		Email:        wr.PaypalEmail,
		Status:       wr.Status,
		Amount:       wr.Amount,
		PayoutAmount: wr.PayoutAmount,
		Fee:          wr.Fee,
		AdminNotes:   wr.AdminNotes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal withdrawal notification: %w", err)
	}
	return asynq.NewTask(TypeWithdrawalNotify, payload, asynq.MaxRetry(5)), nil
}

// HandleWithdrawalNotifyTask emails the host the outcome of their
// withdrawal request.
func (p *TaskProcessor) HandleWithdrawalNotifyTask(ctx context.Context, t *asynq.Task) (err error) {
	defer func() { p.observe(TypeWithdrawalNotify, err) }()

	var payload WithdrawalNotifyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal withdrawal notification: %v: %w", err, asynq.SkipRetry)
	}
	if payload.Email == "" {
		return fmt.Errorf("withdrawal %s has no recipient: %w", payload.RequestID, asynq.SkipRetry)
	}

	subject, body := p.withdrawalMessage(payload)
	to := []string{payload.Email}
	msg := email.Compose(fmt.Sprintf("%s <%s>", p.cfg.AppName, p.cfg.SmtpFromAddress), to, subject, body)
	if err := p.mailer.Send(ctx, to, subject, msg); err != nil {
		return fmt.Errorf("failed to send withdrawal notification for %s: %w", payload.RequestID, err)
	}
	p.log.Info("Withdrawal notification sent", zap.String("request_id", payload.RequestID), zap.String("status", string(payload.Status)))
	return nil
}

func (p *TaskProcessor) withdrawalMessage(n WithdrawalNotifyPayload) (subject, body string) {
	money := func(v float64) string {
		return decimal.NewFromFloat(v).StringFixed(2) + " " + p.cfg.CurrencyCode
	}

	var b strings.Builder
	switch n.Status {
	case models.WithdrawalCompleted:
		subject = "Your withdrawal has been paid out"
		fmt.Fprintf(&b, "We sent %s to your PayPal account %s.\n", money(n.PayoutAmount), n.Email)
		fmt.Fprintf(&b, "Requested: %s\nFee: %s\n", money(n.Amount), money(n.Fee))
	default:
		subject = "Your withdrawal request was rejected"
		fmt.Fprintf(&b, "Your request to withdraw %s was not approved.\n", money(n.Amount))
	}
	if n.AdminNotes != "" {
		fmt.Fprintf(&b, "\nNotes: %s\n", n.AdminNotes)
	}
	fmt.Fprintf(&b, "\nReference: %s\n", n.RequestID)
	return subject, b.String()
}
