package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"voyago/backend/internal/config"
	"voyago/backend/internal/db"
	"voyago/backend/internal/metrics"
	"voyago/backend/internal/models"
	"voyago/backend/internal/utils"
)

func newTestMetrics() *metrics.Metrics {
	return metrics.NewMetrics(prometheus.NewRegistry())
}

func newTestConfig() *config.Config {
	return &config.Config{
		CurrencyCode:           "PHP",
		MinCashInAmount:        1,
		MaxCashInAmount:        100000,
		MinWithdrawalAmount:    1,
		RecommendationLimit:    12,
		RecommendationCacheTTL: time.Minute,
		RecommendationCacheMax: 100,
		TypingIdleTimeout:      50 * time.Millisecond,
		TypingStaleAfter:       4 * time.Second,
		MessagePageLimit:       500,
	}
}

func setupServiceDB(t *testing.T, name string) *mongo.Database {
	return utils.SetupTestDB(t, name,
		db.UsersCollection,
		db.ListingsCollection,
		db.BookingsCollection,
		db.MessagesCollection,
		db.FavoritesCollection,
		db.ReviewsCollection,
		db.WithdrawalRequestsCollection,
		db.AdminPaymentsCollection,
	)
}

func seedUser(t *testing.T, database *mongo.Database, name string) *models.User {
	t.Helper()
	user, err := NewUserService(database).EnsureUser(context.Background(), utils.NewSixID(), name, name+"@example.com")
	require.NoError(t, err)
	return user
}

func seedListing(t *testing.T, svc IListingService, hostID utils.SixID, in ListingInput) *models.Listing {
	t.Helper()
	listing, err := svc.CreateListing(context.Background(), hostID, in, models.ListingStatusActive)
	require.NoError(t, err)
	return listing
}

func completedCapture(id, value string) models.PaymentCapture {
	return models.PaymentCapture{
		ID:     id,
		Status: "COMPLETED",
		PurchaseUnits: []models.PurchaseUnit{
			{Amount: models.CaptureAmount{CurrencyCode: "PHP", Value: value}},
		},
	}
}

type publishedMessage struct {
	channels []string
	msg      models.Message
}

// recordingHub keeps published messages in memory.
type recordingHub struct {
	mu        sync.Mutex
	published []publishedMessage
}

func (h *recordingHub) Publish(_ context.Context, channels []string, msg *models.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.published = append(h.published, publishedMessage{channels: channels, msg: *msg})
	return nil
}

func (h *recordingHub) Subscribe(ctx context.Context, _ []string) (<-chan models.Message, error) {
	out := make(chan models.Message)
	go func() {
		<-ctx.Done()
		close(out)
	}()
	return out, nil
}

func (h *recordingHub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.published)
}

// memTypingStore is an in-memory ITypingStore.
type memTypingStore struct {
	mu      sync.Mutex
	records map[string]models.TypingPresence
}

func newMemTypingStore() *memTypingStore {
	return &memTypingStore{records: make(map[string]models.TypingPresence)}
}

func (s *memTypingStore) Set(_ context.Context, conversationKey, userID string, typing bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[conversationKey+"_"+userID] = models.TypingPresence{IsTyping: typing, UpdatedAt: time.Now()}
	return nil
}

func (s *memTypingStore) Get(_ context.Context, conversationKey, userID string) (*models.TypingPresence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.records[conversationKey+"_"+userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}
