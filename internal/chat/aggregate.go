package chat

import (
	"sort"
	"time"

	"voyago/backend/internal/models"
	"voyago/backend/internal/utils"
)

// ConversationSummary is one inbox entry: everything exchanged with one counterparty.
type ConversationSummary struct {
	OtherUserID  utils.SixID        `json:"other_user_id"`
	BookingIDs   []utils.SixID      `json:"booking_ids"`
	OtherUser    models.UserProfile `json:"other_user"`
	LastMessage  *models.Message    `json:"last_message,omitempty"`
	UnreadCount  int                `json:"unread_count"`
	LastActivity time.Time          `json:"last_activity"`
}

// Input is what Aggregate works from. Messages may contain duplicates
// when both lookup channels return the same record.
type Input struct {
	UserID   utils.SixID
	Bookings []models.Booking
	Messages []models.Message
	Profiles map[utils.SixID]models.UserProfile
}

type thread struct {
	summary  ConversationSummary
	bookings map[utils.SixID]struct{}
	nameHint string
}

// Aggregate builds one summary per counterparty, newest activity first.
// A message is visible when it carries one of the user's booking IDs or
// its conversation ID is the pair key of the user and the counterparty;
// anything else is dropped.
func Aggregate(in Input) []ConversationSummary {
	threads := make(map[utils.SixID]*thread)
	var order []utils.SixID
	get := func(other utils.SixID) *thread {
		t, ok := threads[other]
		if !ok {
			t = &thread{
				summary:  ConversationSummary{OtherUserID: other, BookingIDs: []utils.SixID{}},
				bookings: make(map[utils.SixID]struct{}),
			}
			threads[other] = t
			order = append(order, other)
		}
		return t
	}

	bookingOther := make(map[utils.SixID]utils.SixID, len(in.Bookings))
	for i := range in.Bookings {
		b := &in.Bookings[i]
		other, name, ok := b.Counterparty(in.UserID)
		if !ok || other.IsZero() {
			continue
		}
		bookingOther[b.ID] = other
		t := get(other)
		if _, seen := t.bookings[b.ID]; !seen {
			t.bookings[b.ID] = struct{}{}
			t.summary.BookingIDs = append(t.summary.BookingIDs, b.ID)
		}
		if t.nameHint == "" {
			t.nameHint = name
		}
		if b.CreatedAt.After(t.summary.LastActivity) {
			t.summary.LastActivity = b.CreatedAt
		}
	}

	seen := make(map[utils.SixID]struct{}, len(in.Messages))
	for i := range in.Messages {
		m := in.Messages[i]
		if _, dup := seen[m.ID]; dup && !m.ID.IsZero() {
			continue
		}
		seen[m.ID] = struct{}{}

		other, ok := visibleCounterparty(in.UserID, &m, bookingOther)
		if !ok {
			continue
		}
		t := get(other)
		if t.summary.LastMessage == nil || m.CreatedAt.After(t.summary.LastMessage.CreatedAt) {
			last := m
			t.summary.LastMessage = &last
		}
		if m.ReceiverID == in.UserID && !m.Read {
			t.summary.UnreadCount++
		}
		if m.CreatedAt.After(t.summary.LastActivity) {
			t.summary.LastActivity = m.CreatedAt
		}
	}

	out := make([]ConversationSummary, 0, len(order))
	for _, other := range order {
		t := threads[other]
		t.summary.OtherUser = profileFor(other, t.nameHint, in.Profiles)
		out = append(out, t.summary)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

func visibleCounterparty(me utils.SixID, m *models.Message, bookingOther map[utils.SixID]utils.SixID) (utils.SixID, bool) {
	if !m.BookingID.IsZero() {
		if other, ok := bookingOther[m.BookingID]; ok {
			return other, true
		}
	}
	var other utils.SixID
	switch me {
	case m.SenderID:
		other = m.ReceiverID
	case m.ReceiverID:
		other = m.SenderID
	default:
		return utils.SixID{}, false
	}
	if other.IsZero() || m.ConversationID == "" || m.ConversationID != Key(me, other) {
		return utils.SixID{}, false
	}
	return other, true
}

// profileFor prefers the stored profile and falls back to the name
// denormalised on a booking.
func profileFor(id utils.SixID, nameHint string, profiles map[utils.SixID]models.UserProfile) models.UserProfile {
	if p, ok := profiles[id]; ok {
		return p
	}
	name := nameHint
	if name == "" {
		name = "User"
	}
	return models.UserProfile{ID: id, Name: name}
}

// SortMessages orders messages by creation time, oldest first, and drops
// duplicate IDs.
func SortMessages(msgs []models.Message) []models.Message {
	seen := make(map[utils.SixID]struct{}, len(msgs))
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
