package models

import (
	"time"

	"voyago/backend/internal/utils"
)

// Message is one chat message between two users. BookingID is optional.
// ConversationID is the sorted pair key of sender and receiver; older
// records may carry only a BookingID.
type Message struct {
	Base           `bson:",inline"`
	SenderID       utils.SixID `bson:"sender_id" json:"sender_id"`
	ReceiverID     utils.SixID `bson:"receiver_id" json:"receiver_id"`
	BookingID      utils.SixID `bson:"booking_id,omitempty" json:"booking_id,omitempty"`
	ConversationID string      `bson:"conversation_id,omitempty" json:"conversation_id,omitempty"`
	Text           string      `bson:"text" json:"text"`
	Read           bool        `bson:"read" json:"read"`
	CreatedAt      time.Time   `bson:"created_at" json:"created_at"`
}

// TypingPresence is the side-channel record a writer keeps while typing.
type TypingPresence struct {
	IsTyping  bool      `json:"is_typing"`
	UpdatedAt time.Time `json:"updated_at"`
}
