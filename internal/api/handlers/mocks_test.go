package handlers_test

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"

	"voyago/backend/internal/chat"
	"voyago/backend/internal/models"
	"voyago/backend/internal/recommend"
	"voyago/backend/internal/services"
	"voyago/backend/internal/storage"
	"voyago/backend/internal/utils"
)

// --- Mocks ---

// MockUserService
type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) EnsureUser(ctx context.Context, userID utils.SixID, name, email string) (*models.User, error) {
	args := m.Called(ctx, userID, name, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) FindByID(ctx context.Context, userID utils.SixID) (*models.User, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) FindProfiles(ctx context.Context, ids []utils.SixID) (map[utils.SixID]models.UserProfile, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[utils.SixID]models.UserProfile), args.Error(1)
}
func (m *MockUserService) CompleteHostOnboarding(ctx context.Context, userID utils.SixID, in services.OnboardingInput) (*models.User, error) {
	args := m.Called(ctx, userID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockUserService) SetPaypalEmail(ctx context.Context, userID utils.SixID, email string) error {
	args := m.Called(ctx, userID, email)
	return args.Error(0)
}

var _ services.IUserService = (*MockUserService)(nil)

// MockListingService
type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) CreateListing(ctx context.Context, hostID utils.SixID, in services.ListingInput, status models.ListingStatus) (*models.Listing, error) {
	args := m.Called(ctx, hostID, in, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}
func (m *MockListingService) FindListingByID(ctx context.Context, listingID utils.SixID) (*models.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Listing), args.Error(1)
}
func (m *MockListingService) FindListingsByIDs(ctx context.Context, ids []utils.SixID) ([]models.Listing, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}
func (m *MockListingService) FindActiveListings(ctx context.Context, limit int) ([]models.Listing, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}
func (m *MockListingService) SearchActiveListings(ctx context.Context, category string, limit int, cursor string) ([]models.Listing, string, error) {
	args := m.Called(ctx, category, limit, cursor)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).([]models.Listing), args.String(1), args.Error(2)
}
func (m *MockListingService) SetListingStatus(ctx context.Context, listingID, hostID utils.SixID, status models.ListingStatus) error {
	args := m.Called(ctx, listingID, hostID, status)
	return args.Error(0)
}

var _ services.IListingService = (*MockListingService)(nil)

// MockReviewService
type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) AddReview(ctx context.Context, guestID, bookingID utils.SixID, rating int, comment string) (*models.Review, error) {
	args := m.Called(ctx, guestID, bookingID, rating, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}
func (m *MockReviewService) GetListingRating(ctx context.Context, listingID utils.SixID) models.ListingRating {
	args := m.Called(ctx, listingID)
	return args.Get(0).(models.ListingRating)
}

var _ services.IReviewService = (*MockReviewService)(nil)

// MockBookingService
type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) CreateBooking(ctx context.Context, guestID, listingID utils.SixID, checkIn, checkOut *time.Time) (*models.Booking, error) {
	args := m.Called(ctx, guestID, listingID, checkIn, checkOut)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *MockBookingService) FindBookingByID(ctx context.Context, bookingID utils.SixID) (*models.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *MockBookingService) ListBookingsForUser(ctx context.Context, userID utils.SixID, role services.BookingRole) ([]models.Booking, error) {
	args := m.Called(ctx, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}
func (m *MockBookingService) ListQualifyingBookings(ctx context.Context, guestID utils.SixID) ([]models.Booking, error) {
	args := m.Called(ctx, guestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}
func (m *MockBookingService) ListCompletableBookings(ctx context.Context, checkedOutBefore time.Time, limit int) ([]models.Booking, error) {
	args := m.Called(ctx, checkedOutBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}
func (m *MockBookingService) ConfirmBooking(ctx context.Context, bookingID, hostID utils.SixID) error {
	args := m.Called(ctx, bookingID, hostID)
	return args.Error(0)
}
func (m *MockBookingService) CompleteBooking(ctx context.Context, bookingID utils.SixID) (*models.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

var _ services.IBookingService = (*MockBookingService)(nil)

// MockChatService
type MockChatService struct {
	mock.Mock
}

func (m *MockChatService) ListConversations(ctx context.Context, userID utils.SixID, role services.BookingRole) ([]chat.ConversationSummary, error) {
	args := m.Called(ctx, userID, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]chat.ConversationSummary), args.Error(1)
}
func (m *MockChatService) GetConversationMessages(ctx context.Context, userID, otherUserID utils.SixID, bookingIDs []utils.SixID) ([]models.Message, error) {
	args := m.Called(ctx, userID, otherUserID, bookingIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Message), args.Error(1)
}
func (m *MockChatService) SendMessage(ctx context.Context, senderID, receiverID, bookingID utils.SixID, text string) (*models.Message, error) {
	args := m.Called(ctx, senderID, receiverID, bookingID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}
func (m *MockChatService) MarkConversationRead(ctx context.Context, userID, otherUserID utils.SixID, bookingIDs []utils.SixID) (int64, error) {
	args := m.Called(ctx, userID, otherUserID, bookingIDs)
	return args.Get(0).(int64), args.Error(1)
}
func (m *MockChatService) SetTyping(ctx context.Context, conversationKey string, userID utils.SixID) {
	m.Called(ctx, conversationKey, userID)
}
func (m *MockChatService) ClearTyping(ctx context.Context, conversationKey string, userID utils.SixID) {
	m.Called(ctx, conversationKey, userID)
}
func (m *MockChatService) IsTyping(ctx context.Context, conversationKey string, userID utils.SixID) bool {
	args := m.Called(ctx, conversationKey, userID)
	return args.Bool(0)
}
func (m *MockChatService) Subscribe(ctx context.Context, userID, otherUserID utils.SixID, bookingIDs []utils.SixID) (<-chan models.Message, error) {
	args := m.Called(ctx, userID, otherUserID, bookingIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan models.Message), args.Error(1)
}

var _ services.IChatService = (*MockChatService)(nil)

// MockRecommendationService
type MockRecommendationService struct {
	mock.Mock
}

func (m *MockRecommendationService) ForGuest(ctx context.Context, guestID utils.SixID) ([]recommend.Recommendation, error) {
	args := m.Called(ctx, guestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]recommend.Recommendation), args.Error(1)
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
func (m *MockRecommendationService) ListenForInvalidations(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

var _ services.IRecommendationService = (*MockRecommendationService)(nil)

// MockWalletService
type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) GetWallet(ctx context.Context, userID utils.SixID) (*services.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.Wallet), args.Error(1)
}
func (m *MockWalletService) CashIn(ctx context.Context, userID utils.SixID, capture models.PaymentCapture) (*models.User, error) {
	args := m.Called(ctx, userID, capture)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}
func (m *MockWalletService) RequestWithdrawal(ctx context.Context, hostID utils.SixID, amount float64, paypalEmail string) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, hostID, amount, paypalEmail)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WithdrawalRequest), args.Error(1)
}
func (m *MockWalletService) ListWithdrawals(ctx context.Context, hostID utils.SixID) ([]models.WithdrawalRequest, error) {
	args := m.Called(ctx, hostID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WithdrawalRequest), args.Error(1)
}
func (m *MockWalletService) ListPendingWithdrawals(ctx context.Context, limit int) ([]models.WithdrawalRequest, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WithdrawalRequest), args.Error(1)
}
func (m *MockWalletService) ProcessWithdrawal(ctx context.Context, requestID utils.SixID, decision services.WithdrawalDecision) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, requestID, decision)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WithdrawalRequest), args.Error(1)
}
func (m *MockWalletService) RecordBookingEarning(ctx context.Context, booking *models.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

var _ services.IWalletService = (*MockWalletService)(nil)

// MockFavoriteService
type MockFavoriteService struct {
	mock.Mock
}

func (m *MockFavoriteService) AddFavorite(ctx context.Context, userID, listingID utils.SixID) error {
	args := m.Called(ctx, userID, listingID)
	return args.Error(0)
}
func (m *MockFavoriteService) RemoveFavorite(ctx context.Context, userID, listingID utils.SixID) error {
	args := m.Called(ctx, userID, listingID)
	return args.Error(0)
}
func (m *MockFavoriteService) ListFavorites(ctx context.Context, userID utils.SixID) ([]models.Listing, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Listing), args.Error(1)
}

var _ services.IFavoriteService = (*MockFavoriteService)(nil)

// MockS3Storage
type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) PresignOnboardingPhoto(ctx context.Context, userID, contentType string) (*storage.Upload, error) {
	args := m.Called(ctx, userID, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Upload), args.Error(1)
}
func (m *MockS3Storage) PresignListingImage(ctx context.Context, userID, listingID, contentType string) (*storage.Upload, error) {
	args := m.Called(ctx, userID, listingID, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Upload), args.Error(1)
}

var _ storage.IS3Storage = (*MockS3Storage)(nil)

// MockAsynqClient implements handlers.IAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	mockArgs := []interface{}{ctx, task}
	for _, opt := range opts {
		mockArgs = append(mockArgs, opt)
	}
	args := m.Called(mockArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

// MockConfigService
type MockConfigService struct {
	mock.Mock
}

func (m *MockConfigService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}
func (m *MockConfigService) Get(ctx context.Context, key string) (interface{}, error) {
	args := m.Called(ctx, key)
	return args.Get(0), args.Error(1)
}
func (m *MockConfigService) GetInt(ctx context.Context, key string, defaultValue int) int {
	args := m.Called(ctx, key, defaultValue)
	return args.Int(0)
}
func (m *MockConfigService) GetString(ctx context.Context, key string, defaultValue string) string {
	args := m.Called(ctx, key, defaultValue)
	return args.String(0)
}
func (m *MockConfigService) GetBool(ctx context.Context, key string, defaultValue bool) bool {
	args := m.Called(ctx, key, defaultValue)
	return args.Bool(0)
}
func (m *MockConfigService) GetFloat64(ctx context.Context, key string, defaultValue float64) float64 {
	args := m.Called(ctx, key, defaultValue)
	return args.Get(0).(float64)
}
func (m *MockConfigService) GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	args := m.Called(ctx, key, defaultValue)
	return args.Get(0).(time.Duration)
}
func (m *MockConfigService) Load(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockConfigService) SubscribeToChanges(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
func (m *MockConfigService) SetConfigValue(ctx context.Context, key string, value interface{}, isPublic bool) error {
	args := m.Called(ctx, key, value, isPublic)
	return args.Error(0)
}
func (m *MockConfigService) GetAPIEndpointConfig(ctx context.Context, apiType models.APIType, endpoint string, isAuthenticated bool) (*models.APIEndpointConfig, error) {
	args := m.Called(ctx, apiType, endpoint, isAuthenticated)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.APIEndpointConfig), args.Error(1)
}

var _ services.IConfigService = (*MockConfigService)(nil)
