// File: internal/domain/message.go
package domain

import "time"

// Message is a persisted utterance of a conversation.
type Message struct {
	ID             uint      `gorm:"primarykey"`
	ConversationID string    `json:"conversation_id" gorm:"size:36;index;not null"`
	Seq            int       `json:"seq" gorm:"not null"`
	Role           string    `json:"role" gorm:"size:16;not null"`
	Content        string    `json:"content" gorm:"not null"`
	English        string    `json:"english,omitempty"`
	Swahili        string    `json:"swahili,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
