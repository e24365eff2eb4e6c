package models

import (
	"time"

	"github.com/google/uuid"
)

// EventEnvelope is the wire form of a domain event. The ID is generated at
// publish time so consumers can tell a broker redelivery apart from a
// legitimately repeated business event.
type EventEnvelope struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	EmittedAt time.Time              `json:"emitted_at"`
}

func NewEvent(eventType string, data map[string]interface{}) EventEnvelope {
	return EventEnvelope{
		ID:        uuid.New().String(),
		Type:      eventType,
		Data:      data,
		EmittedAt: time.Now().UTC(),
	}
}

func (e EventEnvelope) StringField(key string) string {
	if v, ok := e.Data[key].(string); ok {
		return v
	}
	return ""
}
