package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"watertrack/internal/core"
)

// DayChangedMessage tells the worker that a tracked day was mutated.
// It carries only the address; the worker reloads the month from storage.
type DayChangedMessage struct {
	UserID    string    `json:"user_id"`
	Date      core.Date `json:"date"`
	Timestamp time.Time `json:"timestamp"`
}

// NewDayChangedMessage creates a message stamped with the current time.
func NewDayChangedMessage(userID string, date core.Date) *DayChangedMessage {
	return &DayChangedMessage{
		UserID:    userID,
		Date:      date,
		Timestamp: time.Now(),
	}
}

// MonthKey is the month whose summary the change invalidates.
func (m *DayChangedMessage) MonthKey() string {
	return m.Date.MonthKey()
}

// ToJSON converts the message to JSON bytes
func (m *DayChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// DayChangedMessageFromJSON decodes and checks a message body.
func DayChangedMessageFromJSON(data []byte) (*DayChangedMessage, error) {
	var msg DayChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, errors.New("message has no user_id")
	}
	if err := msg.Date.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
