package services

import (
	"context"
	"fmt"

	"github.com/karlseguin/ccache/v3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"voyago/backend/internal/config"
	"voyago/backend/internal/metrics"
	"voyago/backend/internal/recommend"
	"voyago/backend/internal/utils"
)

// IRecommendationService serves ranked listings for a guest.
type IRecommendationService interface {
	ForGuest(ctx context.Context, guestID utils.SixID) ([]recommend.Recommendation, error)
	Refresh(ctx context.Context, guestID utils.SixID) ([]recommend.Recommendation, error)
	Invalidate(ctx context.Context, guestID utils.SixID)
	ListenForInvalidations(ctx context.Context) error
}

// recommendInvalidateChannel carries guest IDs whose cached lists are stale.
const recommendInvalidateChannel = "recommend_invalidate"

type recommendationService struct {
	bookingSvc IBookingService
	listingSvc IListingService
	rdb        *redis.Client
	cfg        *config.Config
	log        *zap.Logger
	metrics    *metrics.Metrics
	cache      *ccache.Cache[[]recommend.Recommendation]
}

// NewRecommendationService creates a recommendation service with an
// in-process per-guest cache. With a Redis client, invalidations reach
// every instance; with nil they stay local.
func NewRecommendationService(bookingSvc IBookingService, listingSvc IListingService, rdb *redis.Client, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) IRecommendationService {
	maxSize := cfg.RecommendationCacheMax
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &recommendationService{
		bookingSvc: bookingSvc,
		listingSvc: listingSvc,
		rdb:        rdb,
		cfg:        cfg,
		log:        log,
		metrics:    m,
		cache:      ccache.New(ccache.Configure[[]recommend.Recommendation]().MaxSize(maxSize)),
	}
}

// ForGuest returns cached recommendations when fresh, computing them otherwise.
func (s *recommendationService) ForGuest(ctx context.Context, guestID utils.SixID) ([]recommend.Recommendation, error) {
	if item := s.cache.Get(guestID.String()); item != nil && !item.Expired() {
		s.metrics.RecommendationCache.WithLabelValues("hit").Inc()
		return item.Value(), nil
	}
	s.metrics.RecommendationCache.WithLabelValues("miss").Inc()
	return s.Refresh(ctx, guestID)
}

// Refresh recomputes and caches the guest's recommendations.
func (s *recommendationService) Refresh(ctx context.Context, guestID utils.SixID) ([]recommend.Recommendation, error) {
	bookings, err := s.bookingSvc.ListQualifyingBookings(ctx, guestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking history: %w", err)
	}

	var bookedIDs []utils.SixID
	seen := make(map[utils.SixID]struct{}, len(bookings))
	for _, b := range bookings {
		if _, ok := seen[b.ListingID]; ok {
			continue
		}
		seen[b.ListingID] = struct{}{}
		bookedIDs = append(bookedIDs, b.ListingID)
	}

	booked, err := s.listingSvc.FindListingsByIDs(ctx, bookedIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load booked listings: %w", err)
	}
	active, err := s.listingSvc.FindActiveListings(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load active listings: %w", err)
	}

	recs := recommend.Recommend(recommend.Input{
		Bookings:       bookings,
		BookedListings: booked,
		Active:         active,
	})
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	if limit := s.cfg.RecommendationLimit; limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}

	kind := "scored"
	if len(bookings) == 0 {
		kind = "fallback"
	}
	s.metrics.RecommendationsServed.WithLabelValues(kind).Inc()
	s.log.Debug("Computed recommendations",
		zap.String("guest_id", guestID.String()),
		zap.Int("bookings", len(bookings)),
		zap.Int("results", len(recs)),
	)

	s.cache.Set(guestID.String(), recs, s.cfg.RecommendationCacheTTL)
	return recs, nil
}

// Invalidate drops the guest's cached entry here and on every other instance.
func (s *recommendationService) Invalidate(ctx context.Context, guestID utils.SixID) {
	s.cache.Delete(guestID.String())
	if s.rdb == nil {
		return
	}
	if err := s.rdb.Publish(ctx, recommendInvalidateChannel, guestID.String()).Err(); err != nil {
		s.log.Warn("Recommendation invalidation not broadcast", zap.String("guest_id", guestID.String()), zap.Error(err))
	}
}

// ListenForInvalidations drops cache entries named on the invalidation
// channel until ctx is done.
func (s *recommendationService) ListenForInvalidations(ctx context.Context) error {
	if s.rdb == nil {
		return nil
	}
	pubsub := s.rdb.Subscribe(ctx, recommendInvalidateChannel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to subscribe to %s: %w", recommendInvalidateChannel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.cache.Delete(msg.Payload)
		}
	}
}
