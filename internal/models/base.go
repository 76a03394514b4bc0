package models

import (
	"voyago/backend/internal/utils"
)

// Base carries the SixID primary key shared by stored documents.
type Base struct {
	ID utils.SixID `bson:"_id,omitempty" json:"id,omitempty"`
}

// GenID assigns a fresh random ID, replacing any existing one.
func (m *Base) GenID() {
	m.ID = utils.NewSixID()
}
