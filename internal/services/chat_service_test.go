package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"voyago/backend/internal/cache"
	"voyago/backend/internal/chat"
	"voyago/backend/internal/db"
	"voyago/backend/internal/models"
	"voyago/backend/internal/utils"
)

type chatFixture struct {
	*bookingFixture
	hub     *recordingHub
	typing  *memTypingStore
	chatSvc IChatService
	host    *models.User
	guest   *models.User
	booking *models.Booking
}

func newChatFixture(t *testing.T, dbName string) *chatFixture {
	bf := newBookingFixture(t, dbName)
	f := &chatFixture{bookingFixture: bf, hub: &recordingHub{}, typing: newMemTypingStore()}
	f.chatSvc = NewChatService(bf.database, bf.bookingSvc, bf.userSvc, f.hub, f.typing, newTestConfig(), zap.NewNop(), newTestMetrics())

	f.host = seedUser(t, bf.database, "host")
	f.guest = seedUser(t, bf.database, "guest")
	listing := seedListing(t, bf.listingSvc, f.host.ID, ListingInput{Title: "Treehouse", Price: 90})
	booking, err := bf.bookingSvc.CreateBooking(context.Background(), f.guest.ID, listing.ID, nil, nil)
	require.NoError(t, err)
	f.booking = booking
	return f
}

func TestChatService_SendMessage(t *testing.T) {
	f := newChatFixture(t, "testdb_chat_service_send")
	ctx := context.Background()

	msg, err := f.chatSvc.SendMessage(ctx, f.guest.ID, f.host.ID, f.booking.ID, "  Is early check-in possible?  ")
	require.NoError(t, err)
	assert.Equal(t, "Is early check-in possible?", msg.Text)
	assert.Equal(t, chat.Key(f.guest.ID, f.host.ID), msg.ConversationID)
	assert.False(t, msg.Read)

	require.Equal(t, 1, f.hub.count())
	assert.ElementsMatch(t, []string{
		cache.ChatChannel(msg.ConversationID),
		cache.BookingChatChannel(f.booking.ID.String()),
	}, f.hub.published[0].channels)

	_, err = f.chatSvc.SendMessage(ctx, f.guest.ID, f.host.ID, utils.SixID{}, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	_, err = f.chatSvc.SendMessage(ctx, f.guest.ID, f.guest.ID, utils.SixID{}, "hi me")
	assert.ErrorIs(t, err, ErrNotParticipant)

	stranger := seedUser(t, f.database, "stranger")
	_, err = f.chatSvc.SendMessage(ctx, f.guest.ID, stranger.ID, f.booking.ID, "wrong thread")
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = f.chatSvc.SendMessage(ctx, f.guest.ID, f.host.ID, utils.NewSixID(), "unknown booking")
	assert.ErrorIs(t, err, ErrNotParticipant)

	// bookingless messages are allowed between any two users
	direct, err := f.chatSvc.SendMessage(ctx, stranger.ID, f.host.ID, utils.SixID{}, "hello")
	require.NoError(t, err)
	assert.True(t, direct.BookingID.IsZero())
	assert.Equal(t, 2, f.hub.count())
}

func TestChatService_MessagePageKeepsNewest(t *testing.T) {
	f := newChatFixture(t, "testdb_chat_service_page")
	ctx := context.Background()
	cfg := newTestConfig()
	cfg.MessagePageLimit = 2
	svc := NewChatService(f.database, f.bookingSvc, f.userSvc, f.hub, f.typing, cfg, zap.NewNop(), newTestMetrics())

	base := time.Now().Add(-time.Hour).UTC()
	for i, text := range []string{"first", "second", "third"} {
		_, err := db.InsertOne(ctx, f.database.Collection(db.MessagesCollection), &models.Message{
			SenderID:       f.guest.ID,
			ReceiverID:     f.host.ID,
			ConversationID: chat.Key(f.guest.ID, f.host.ID),
			Text:           text,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	messages, err := svc.GetConversationMessages(ctx, f.host.ID, f.guest.ID, nil)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "second", messages[0].Text)
	assert.Equal(t, "third", messages[1].Text)
}

func TestChatService_ConversationReadsBothChannels(t *testing.T) {
	f := newChatFixture(t, "testdb_chat_service_channels")
	ctx := context.Background()

	// a message stored before conversation keys existed
	legacy := &models.Message{
		SenderID:   f.host.ID,
		ReceiverID: f.guest.ID,
		BookingID:  f.booking.ID,
		Text:       "Welcome!",
		CreatedAt:  time.Now().Add(-time.Hour).UTC(),
	}
	_, err := db.InsertOne(ctx, f.database.Collection(db.MessagesCollection), legacy)
	require.NoError(t, err)

	_, err = f.chatSvc.SendMessage(ctx, f.guest.ID, f.host.ID, utils.SixID{}, "Thanks!")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = f.chatSvc.SendMessage(ctx, f.host.ID, f.guest.ID, f.booking.ID, "See you soon")
	require.NoError(t, err)

	messages, err := f.chatSvc.GetConversationMessages(ctx, f.guest.ID, f.host.ID, nil)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "Welcome!", messages[0].Text)
	assert.Equal(t, "See you soon", messages[2].Text)

	stranger := seedUser(t, f.database, "stranger")
	_, err = f.chatSvc.GetConversationMessages(ctx, f.guest.ID, f.host.ID, []utils.SixID{utils.NewSixID()})
	assert.ErrorIs(t, err, ErrNotParticipant)
	strangerView, err := f.chatSvc.GetConversationMessages(ctx, stranger.ID, f.host.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, strangerView)

	inbox, err := f.chatSvc.ListConversations(ctx, f.guest.ID, BookingRoleGuest)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Equal(t, f.host.ID, inbox[0].OtherUserID)
	assert.Equal(t, 2, inbox[0].UnreadCount)
	assert.Equal(t, "host", inbox[0].OtherUser.Name)
	require.NotNil(t, inbox[0].LastMessage)
	assert.Equal(t, "See you soon", inbox[0].LastMessage.Text)

	marked, err := f.chatSvc.MarkConversationRead(ctx, f.guest.ID, f.host.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)

	inbox, err = f.chatSvc.ListConversations(ctx, f.guest.ID, BookingRoleAny)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Zero(t, inbox[0].UnreadCount)

	hostInbox, err := f.chatSvc.ListConversations(ctx, f.host.ID, BookingRoleHost)
	require.NoError(t, err)
	require.Len(t, hostInbox, 1)
	assert.Equal(t, 1, hostInbox[0].UnreadCount)
}

func TestChatService_Typing(t *testing.T) {
	f := newChatFixture(t, "testdb_chat_service_typing")
	ctx := context.Background()
	key := chat.Key(f.guest.ID, f.host.ID)

	assert.False(t, f.chatSvc.IsTyping(ctx, key, f.guest.ID))

	f.chatSvc.SetTyping(ctx, key, f.guest.ID)
	assert.True(t, f.chatSvc.IsTyping(ctx, key, f.guest.ID))
	assert.False(t, f.chatSvc.IsTyping(ctx, key, f.host.ID))

	// the idle timeout in the test config is short
	assert.Eventually(t, func() bool {
		return !f.chatSvc.IsTyping(ctx, key, f.guest.ID)
	}, time.Second, 10*time.Millisecond)

	f.chatSvc.SetTyping(ctx, key, f.guest.ID)
	_, err := f.chatSvc.SendMessage(ctx, f.guest.ID, f.host.ID, utils.SixID{}, "done typing")
	require.NoError(t, err)
	assert.False(t, f.chatSvc.IsTyping(ctx, key, f.guest.ID))
}

func TestChatService_TypingStaleRecord(t *testing.T) {
	f := newChatFixture(t, "testdb_chat_service_typing_stale")
	ctx := context.Background()
	key := chat.Key(f.guest.ID, f.host.ID)

	f.typing.records[key+"_"+f.host.ID.String()] = models.TypingPresence{
		IsTyping:  true,
		UpdatedAt: time.Now().Add(-10 * time.Second),
	}
	assert.False(t, f.chatSvc.IsTyping(ctx, key, f.host.ID))
}

func TestChatService_Subscribe(t *testing.T) {
	f := newChatFixture(t, "testdb_chat_service_subscribe")
	ctx, cancel := context.WithCancel(context.Background())

	stream, err := f.chatSvc.Subscribe(ctx, f.guest.ID, f.host.ID, nil)
	require.NoError(t, err)
	cancel()
	_, open := <-stream
	assert.False(t, open)

	_, err = f.chatSvc.Subscribe(context.Background(), f.guest.ID, f.guest.ID, nil)
	assert.ErrorIs(t, err, ErrNotParticipant)
}
