package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/triviaroom/go/internal/models"
)

// Event payload types shared between the room app, the gateway and the publisher

// EventType represents the type of a server event
type EventType string

const (
	EventTypeCreated      EventType = "created"
	EventTypeJoined       EventType = "joined"
	EventTypeError        EventType = "error"
	EventTypeSettings     EventType = "settings"
	EventTypePlayerCount  EventType = "playerCount"
	EventTypeStarted      EventType = "started"
	EventTypeTick         EventType = "tick"
	EventTypeFeedback     EventType = "feedback"
	EventTypeNextQuestion EventType = "nextQuestion"
	EventTypeGameOver     EventType = "gameOver"
)

// RoomEvent is the envelope for every server to client message
type RoomEvent struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"roomId,omitempty"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// ErrorPayload is sent to the requester when an action is rejected
type ErrorPayload struct {
	Message string `json:"message"`
}

// StartedPayload is the payload for a started event
type StartedPayload struct {
	Scores        []models.PlayerScore `json:"scores"`
	Countdown     int                  `json:"countdown"`
	QuestionIndex int                  `json:"questionIndex"`
}

// FeedbackPayload is the payload for a feedback event. CorrectAnswer is null when the
// question timed out, since the client owns the answer key.
type FeedbackPayload struct {
	QuestionIndex int               `json:"questionIndex"`
	Responses     []models.Response `json:"responses"`
	CorrectAnswer *string           `json:"correctAnswer"`
}

// NextQuestionPayload is the payload for a nextQuestion event
type NextQuestionPayload struct {
	QuestionIndex int                  `json:"questionIndex"`
	Countdown     int                  `json:"countdown"`
	Scores        []models.PlayerScore `json:"scores,omitempty"`
}

// GameOverPayload is the payload for a gameOver event
type GameOverPayload struct {
	Results []models.PlayerScore `json:"results"`
}

// New builds an event envelope with a fresh ID around the marshalled payload
func New(roomID string, eventType EventType, payload interface{}) (*RoomEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &RoomEvent{
		ID:        uuid.New().String(),
		RoomID:    roomID,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// ParseEventPayload parses event data into the appropriate payload struct
func ParseEventPayload(event *RoomEvent) (interface{}, error) {
	switch event.Type {
	case EventTypeCreated, EventTypeJoined:
		var code string
		if err := json.Unmarshal(event.Data, &code); err != nil {
			return nil, err
		}
		return code, nil

	case EventTypePlayerCount, EventTypeTick:
		var n int
		if err := json.Unmarshal(event.Data, &n); err != nil {
			return nil, err
		}
		return n, nil

	case EventTypeError:
		var payload ErrorPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeSettings:
		var payload models.RoomSettings
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeStarted:
		var payload StartedPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeFeedback:
		var payload FeedbackPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeNextQuestion:
		var payload NextQuestionPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventTypeGameOver:
		var payload GameOverPayload
		if err := json.Unmarshal(event.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
