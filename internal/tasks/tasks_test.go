package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"voyago/backend/internal/config"
	"voyago/backend/internal/metrics"
	"voyago/backend/internal/models"
	"voyago/backend/internal/recommend"
	"voyago/backend/internal/services"
	"voyago/backend/internal/tasks"
	"voyago/backend/internal/utils"
)

// --- Mocks ---

type MockBookingService struct {
	services.IBookingService
	mock.Mock
}

func (m *MockBookingService) ListCompletableBookings(ctx context.Context, checkedOutBefore time.Time, limit int) ([]models.Booking, error) {
	args := m.Called(ctx, checkedOutBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *MockBookingService) CompleteBooking(ctx context.Context, bookingID utils.SixID) (*models.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

type MockWalletService struct {
	services.IWalletService
	mock.Mock
}

func (m *MockWalletService) ListPendingWithdrawals(ctx context.Context, limit int) ([]models.WithdrawalRequest, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WithdrawalRequest), args.Error(1)
}

type MockRecommendationService struct {
	services.IRecommendationService
	mock.Mock
}

func (m *MockRecommendationService) Refresh(ctx context.Context, guestID utils.SixID) ([]recommend.Recommendation, error) {
	args := m.Called(ctx, guestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]recommend.Recommendation), args.Error(1)
}

func (m *MockRecommendationService) Invalidate(ctx context.Context, guestID utils.SixID) {
	m.Called(ctx, guestID)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	args := m.Called(ctx, to, subject, rawMessage)
	return args.Error(0)
}

type fixture struct {
	bookings *MockBookingService
	wallet   *MockWalletService
	recs     *MockRecommendationService
	mailer   *MockSender
	metrics  *metrics.Metrics
	p        *tasks.TaskProcessor
}

func newFixture(cfg *config.Config) *fixture {
	f := &fixture{
		bookings: new(MockBookingService),
		wallet:   new(MockWalletService),
		recs:     new(MockRecommendationService),
		mailer:   new(MockSender),
		metrics:  metrics.NewMetrics(prometheus.NewRegistry()),
	}
	f.p = tasks.NewTaskProcessor(cfg, f.bookings, f.wallet, f.recs, f.mailer, f.metrics, zap.NewNop())
	return f
}

// --- Tests ---

func TestHandleBookingCompleteDueTask(t *testing.T) {
	f := newFixture(&config.Config{})
	guestA, guestB := utils.NewSixID(), utils.NewSixID()
	done := models.Booking{Base: models.Base{ID: utils.NewSixID()}, GuestID: guestA}
	raced := models.Booking{Base: models.Base{ID: utils.NewSixID()}, GuestID: guestB}
	noEarning := models.Booking{Base: models.Base{ID: utils.NewSixID()}, GuestID: guestB}

	f.bookings.On("ListCompletableBookings", mock.Anything, mock.AnythingOfType("time.Time"), 200).
		Return([]models.Booking{done, raced, noEarning}, nil)
	f.bookings.On("CompleteBooking", mock.Anything, done.ID).Return(&done, nil)
	f.bookings.On("CompleteBooking", mock.Anything, raced.ID).Return(nil, services.ErrBookingState)
	f.bookings.On("CompleteBooking", mock.Anything, noEarning.ID).Return(&noEarning, errors.New("wallet down"))
	f.recs.On("Invalidate", mock.Anything, guestA).Once()
	f.recs.On("Invalidate", mock.Anything, guestB).Once()

	err := f.p.HandleBookingCompleteDueTask(context.Background(), asynq.NewTask(tasks.TypeBookingCompleteDue, nil))
	require.NoError(t, err)
	f.bookings.AssertExpectations(t)
	f.recs.AssertExpectations(t)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TasksProcessed.WithLabelValues(tasks.TypeBookingCompleteDue, "ok")))
}

func TestHandleBookingCompleteDueTask_FailureRetries(t *testing.T) {
	f := newFixture(&config.Config{})
	b := models.Booking{Base: models.Base{ID: utils.NewSixID()}, GuestID: utils.NewSixID()}
	f.bookings.On("ListCompletableBookings", mock.Anything, mock.Anything, mock.Anything).Return([]models.Booking{b}, nil)
	f.bookings.On("CompleteBooking", mock.Anything, b.ID).Return(nil, errors.New("db down"))

	err := f.p.HandleBookingCompleteDueTask(context.Background(), asynq.NewTask(tasks.TypeBookingCompleteDue, nil))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
	f.recs.AssertNotCalled(t, "Invalidate", mock.Anything, mock.Anything)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.TasksProcessed.WithLabelValues(tasks.TypeBookingCompleteDue, "error")))
}

func TestHandleWithdrawalPendingSweepTask(t *testing.T) {
	f := newFixture(&config.Config{WithdrawalReminderAge: 72 * time.Hour})
	now := time.Now()
	f.wallet.On("ListPendingWithdrawals", mock.Anything, 0).Return([]models.WithdrawalRequest{
		{Base: models.Base{ID: utils.NewSixID()}, Amount: 10, RequestedAt: now.Add(-time.Hour)},
		{Base: models.Base{ID: utils.NewSixID()}, Amount: 20, RequestedAt: now.Add(-100 * time.Hour)},
	}, nil)

	err := f.p.HandleWithdrawalPendingSweepTask(context.Background(), asynq.NewTask(tasks.TypeWithdrawalPendingSweep, nil))
	require.NoError(t, err)
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.PendingWithdrawals))
	f.wallet.AssertExpectations(t)
}

func TestHandleRecommendationRefreshTask(t *testing.T) {
	f := newFixture(&config.Config{})
	guestID := utils.NewSixID()
	f.recs.On("Invalidate", mock.Anything, guestID).Once()
	f.recs.On("Refresh", mock.Anything, guestID).Return([]recommend.Recommendation{}, nil)

	payload, _ := json.Marshal(tasks.RecommendationRefreshPayload{GuestID: guestID.String()})
	err := f.p.HandleRecommendationRefreshTask(context.Background(), asynq.NewTask(tasks.TypeRecommendationRefresh, payload))
	require.NoError(t, err)
	f.recs.AssertExpectations(t)
}

func TestHandleRecommendationRefreshTask_BadPayloadSkipsRetry(t *testing.T) {
	f := newFixture(&config.Config{})

	err := f.p.HandleRecommendationRefreshTask(context.Background(), asynq.NewTask(tasks.TypeRecommendationRefresh, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	payload, _ := json.Marshal(tasks.RecommendationRefreshPayload{GuestID: "not-an-id"})
	err = f.p.HandleRecommendationRefreshTask(context.Background(), asynq.NewTask(tasks.TypeRecommendationRefresh, payload))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	f.recs.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestHandleWithdrawalNotifyTask(t *testing.T) {
	f := newFixture(&config.Config{AppName: "Voyago", SmtpFromAddress: "no-reply@voyago.app", CurrencyCode: "PHP"})
	wr := &models.WithdrawalRequest{
		PaypalEmail:  "host@example.com",
		Status:       models.WithdrawalCompleted,
		Amount:       100,
		PayoutAmount: 97.5,
		Fee:          2.5,
	}
	wr.ID = utils.NewSixID()
	task, err := tasks.NewWithdrawalNotifyTask(wr)
	require.NoError(t, err)
	assert.Equal(t, tasks.TypeWithdrawalNotify, task.Type())

	f.mailer.On("Send", mock.Anything, []string{"host@example.com"}, "Your withdrawal has been paid out",
		mock.MatchedBy(func(msg []byte) bool {
			body := string(msg)
			return strings.Contains(body, "97.50 PHP") && strings.Contains(body, "Fee: 2.50 PHP") && strings.Contains(body, wr.ID.String())
		})).Return(nil).Once()

	require.NoError(t, f.p.HandleWithdrawalNotifyTask(context.Background(), task))
	f.mailer.AssertExpectations(t)
}

func TestHandleWithdrawalNotifyTask_Rejected(t *testing.T) {
	f := newFixture(&config.Config{AppName: "Voyago", SmtpFromAddress: "no-reply@voyago.app", CurrencyCode: "PHP"})
	wr := &models.WithdrawalRequest{PaypalEmail: "host@example.com", Status: models.WithdrawalRejected, Amount: 40, AdminNotes: "PayPal account unverified"}
	task, err := tasks.NewWithdrawalNotifyTask(wr)
	require.NoError(t, err)

	sendErr := errors.New("relay down")
	f.mailer.On("Send", mock.Anything, []string{"host@example.com"}, "Your withdrawal request was rejected",
		mock.MatchedBy(func(msg []byte) bool { return strings.Contains(string(msg), "PayPal account unverified") })).Return(sendErr).Once()

	err = f.p.HandleWithdrawalNotifyTask(context.Background(), task)
	require.ErrorIs(t, err, sendErr)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleWithdrawalNotifyTask_NoRecipientSkipsRetry(t *testing.T) {
	f := newFixture(&config.Config{})
	task, err := tasks.NewWithdrawalNotifyTask(&models.WithdrawalRequest{Status: models.WithdrawalCompleted})
	require.NoError(t, err)

	err = f.p.HandleWithdrawalNotifyTask(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	f.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
