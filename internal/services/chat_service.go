package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"voyago/backend/internal/cache"
	"voyago/backend/internal/chat"
	"voyago/backend/internal/config"
	"voyago/backend/internal/db"
	"voyago/backend/internal/metrics"
	"voyago/backend/internal/models"
	"voyago/backend/internal/utils"
)

var (
	ErrNotParticipant = errors.New("user is not a participant of this conversation")
	ErrEmptyMessage   = errors.New("message text cannot be empty")
)

// maxMessageLength bounds a single chat message.
const maxMessageLength = 4000

// IChatService defines conversation operations.
type IChatService interface {
	ListConversations(ctx context.Context, userID utils.SixID, role BookingRole) ([]chat.ConversationSummary, error)
	GetConversationMessages(ctx context.Context, userID, otherUserID utils.SixID, bookingIDs []utils.SixID) ([]models.Message, error)
	SendMessage(ctx context.Context, senderID, receiverID, bookingID utils.SixID, text string) (*models.Message, error)
	MarkConversationRead(ctx context.Context, userID, otherUserID utils.SixID, bookingIDs []utils.SixID) (int64, error)
	SetTyping(ctx context.Context, conversationKey string, userID utils.SixID)
	ClearTyping(ctx context.Context, conversationKey string, userID utils.SixID)
	IsTyping(ctx context.Context, conversationKey string, userID utils.SixID) bool
	Subscribe(ctx context.Context, userID, otherUserID utils.SixID, bookingIDs []utils.SixID) (<-chan models.Message, error)
}

type chatService struct {
	db         *mongo.Database
	bookingSvc IBookingService
	userSvc    IUserService
	hub        IChatHub
	typing     ITypingStore
	tracker    *chat.TypingTracker
	cfg        *config.Config
	log        *zap.Logger
	metrics    *metrics.Metrics
}

// NewChatService creates a new ChatService.
func NewChatService(database *mongo.Database, bookingSvc IBookingService, userSvc IUserService, hub IChatHub, typing ITypingStore, cfg *config.Config, log *zap.Logger, m *metrics.Metrics) IChatService {
	s := &chatService{
		db:         database,
		bookingSvc: bookingSvc,
		userSvc:    userSvc,
		hub:        hub,
		typing:     typing,
		cfg:        cfg,
		log:        log,
		metrics:    m,
	}
	s.tracker = chat.NewTypingTracker(cfg.TypingIdleTimeout, cfg.TypingStaleAfter/2, s.writePresence)
	return s
}

func (s *chatService) writePresence(conversationKey, userID string, typing bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.typing.Set(ctx, conversationKey, userID, typing); err != nil {
		s.log.Warn("Typing presence not written", zap.String("conversation", conversationKey), zap.Error(err))
	}
}

// ListConversations builds the user's inbox from bookings on the chosen
// side and from both message lookup channels.
func (s *chatService) ListConversations(ctx context.Context, userID utils.SixID, role BookingRole) ([]chat.ConversationSummary, error) {
	bookings, err := s.bookingSvc.ListBookingsForUser(ctx, userID, role)
	if err != nil {
		return nil, err
	}
	bookingIDs := make([]utils.SixID, 0, len(bookings))
	for _, b := range bookings {
		bookingIDs = append(bookingIDs, b.ID)
	}

	channels := bson.A{bson.M{
		"conversation_id": bson.M{"$exists": true, "$ne": ""},
		"$or":             bson.A{bson.M{"sender_id": userID}, bson.M{"receiver_id": userID}},
	}}
	if len(bookingIDs) > 0 {
		channels = append(channels, bson.M{"booking_id": bson.M{"$in": bookingIDs}})
	}
	cursor, err := s.db.Collection(db.MessagesCollection).Find(ctx, bson.M{"$or": channels})
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer cursor.Close(ctx)
	messages := []models.Message{}
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}

	profiles, err := s.userSvc.FindProfiles(ctx, counterparties(userID, bookings, messages))
	if err != nil {
		s.log.Warn("Counterparty profiles unavailable, using booking names", zap.Error(err))
	}

	return chat.Aggregate(chat.Input{
		UserID:   userID,
		Bookings: bookings,
		Messages: messages,
		Profiles: profiles,
	}), nil
}

func counterparties(me utils.SixID, bookings []models.Booking, messages []models.Message) []utils.SixID {
	seen := make(map[utils.SixID]struct{})
	var ids []utils.SixID
	add := func(id utils.SixID) {
		if id.IsZero() || id == me {
			return
		}
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for i := range bookings {
		if other, _, ok := bookings[i].Counterparty(me); ok {
			add(other)
		}
	}
	for _, m := range messages {
		add(m.SenderID)
		add(m.ReceiverID)
	}
	return ids
}

// pairBookingIDs returns the bookings shared by the two users. When
// requested is non-empty, each requested booking must be one of them.
func (s *chatService) pairBookingIDs(ctx context.Context, userID, otherUserID utils.SixID, requested []utils.SixID) ([]utils.SixID, error) {
	if userID == otherUserID || otherUserID.IsZero() {
		return nil, ErrNotParticipant
	}
	bookings, err := s.bookingSvc.ListBookingsForUser(ctx, userID, BookingRoleAny)
	if err != nil {
		return nil, err
	}
	shared := make(map[utils.SixID]struct{})
	var all []utils.SixID
	for i := range bookings {
		if other, _, ok := bookings[i].Counterparty(userID); ok && other == otherUserID {
			shared[bookings[i].ID] = struct{}{}
			all = append(all, bookings[i].ID)
		}
	}
	if len(requested) == 0 {
		return all, nil
	}
	for _, id := range requested {
		if _, ok := shared[id]; !ok {
			return nil, ErrNotParticipant
		}
	}
	return requested, nil
}

func conversationFilter(key string, bookingIDs []utils.SixID) bson.M {
	channels := bson.A{bson.M{"conversation_id": key}}
	if len(bookingIDs) > 0 {
		channels = append(channels, bson.M{"booking_id": bson.M{"$in": bookingIDs}})
	}
	return bson.M{"$or": channels}
}

// GetConversationMessages returns the newest MessagePageLimit messages of
// the conversation, oldest first. If the ordered query cannot be served it
// is retried unordered and sorted here.
func (s *chatService) GetConversationMessages(ctx context.Context, userID, otherUserID utils.SixID, bookingIDs []utils.SixID) ([]models.Message, error) {
	ids, err := s.pairBookingIDs(ctx, userID, otherUserID, bookingIDs)
	if err != nil {
		return nil, err
	}
	coll := s.db.Collection(db.MessagesCollection)
	filter := conversationFilter(chat.Key(userID, otherUserID), ids)
	limit := s.cfg.MessagePageLimit

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	messages := []models.Message{}
	cursor, err := coll.Find(ctx, filter, opts)
	if err == nil {
		defer cursor.Close(ctx)
		if err = cursor.All(ctx, &messages); err != nil {
			return nil, fmt.Errorf("failed to decode messages: %w", err)
		}
		slices.Reverse(messages)
		return messages, nil
	}

	s.log.Warn("Ordered message query failed, falling back to unordered", zap.Error(err))
	cursor, err = coll.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer cursor.Close(ctx)
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	messages = chat.SortMessages(messages)
	if limit > 0 && len(messages) > limit {
		messages = messages[len(messages)-limit:]
	}
	return messages, nil
}

// SendMessage stores a message under the pair's conversation key, clears
// the sender's typing flag and notifies live subscribers.
func (s *chatService) SendMessage(ctx context.Context, senderID, receiverID, bookingID utils.SixID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if len(text) > maxMessageLength {
		return nil, fmt.Errorf("message exceeds %d characters", maxMessageLength)
	}
	if senderID == receiverID || receiverID.IsZero() {
		return nil, ErrNotParticipant
	}
	if !bookingID.IsZero() {
		booking, err := s.bookingSvc.FindBookingByID(ctx, bookingID)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, ErrNotParticipant
			}
			return nil, err
		}
		other, _, ok := booking.Counterparty(senderID)
		if !ok || other != receiverID {
			return nil, ErrNotParticipant
		}
	}

	key := chat.Key(senderID, receiverID)
	msg, err := db.InsertOne(ctx, s.db.Collection(db.MessagesCollection), &models.Message{
		SenderID:       senderID,
		ReceiverID:     receiverID,
		BookingID:      bookingID,
		ConversationID: key,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}
	s.metrics.MessagesSent.Inc()

	s.ClearTyping(ctx, key, senderID)
	if err := s.hub.Publish(ctx, messageChannels(msg), msg); err != nil {
		s.log.Warn("Message stored but not fanned out", zap.String("message_id", msg.ID.String()), zap.Error(err))
	}
	return msg, nil
}

// MarkConversationRead marks messages from the counterparty to the user as read.
func (s *chatService) MarkConversationRead(ctx context.Context, userID, otherUserID utils.SixID, bookingIDs []utils.SixID) (int64, error) {
	ids, err := s.pairBookingIDs(ctx, userID, otherUserID, bookingIDs)
	if err != nil {
		return 0, err
	}
	filter := conversationFilter(chat.Key(userID, otherUserID), ids)
	filter["receiver_id"] = userID
	filter["sender_id"] = otherUserID
	filter["read"] = false

	result, err := s.db.Collection(db.MessagesCollection).UpdateMany(ctx, filter, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return result.ModifiedCount, nil
}

func (s *chatService) SetTyping(_ context.Context, conversationKey string, userID utils.SixID) {
	s.tracker.Keystroke(conversationKey, userID.String())
}

// ClearTyping clears the flag even if this instance was not tracking it.
func (s *chatService) ClearTyping(ctx context.Context, conversationKey string, userID utils.SixID) {
	if s.tracker.Active(conversationKey, userID.String()) {
		s.tracker.Stop(conversationKey, userID.String())
		return
	}
	if err := s.typing.Set(ctx, conversationKey, userID.String(), false); err != nil {
		s.log.Warn("Typing presence not cleared", zap.String("conversation", conversationKey), zap.Error(err))
	}
}

// IsTyping reads the presence record; errors and stale records read as false.
func (s *chatService) IsTyping(ctx context.Context, conversationKey string, userID utils.SixID) bool {
	p, err := s.typing.Get(ctx, conversationKey, userID.String())
	if err != nil {
		s.log.Warn("Typing presence unavailable", zap.String("conversation", conversationKey), zap.Error(err))
		return false
	}
	return chat.IsTyping(p, time.Now(), s.cfg.TypingStaleAfter)
}

// Subscribe streams new messages of one conversation until ctx is done.
func (s *chatService) Subscribe(ctx context.Context, userID, otherUserID utils.SixID, bookingIDs []utils.SixID) (<-chan models.Message, error) {
	ids, err := s.pairBookingIDs(ctx, userID, otherUserID, bookingIDs)
	if err != nil {
		return nil, err
	}
	channels := []string{cache.ChatChannel(chat.Key(userID, otherUserID))}
	for _, id := range ids {
		channels = append(channels, cache.BookingChatChannel(id.String()))
	}
	return s.hub.Subscribe(ctx, channels)
}
