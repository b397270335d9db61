package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/mcdev12/triviaroom/go/internal/room"
)

// IntentType names a client to server message
type IntentType string

const (
	IntentCreate          IntentType = "create"
	IntentJoin            IntentType = "join"
	IntentRequestSettings IntentType = "requestSettings"
	IntentStart           IntentType = "start"
	IntentSubmitAnswer    IntentType = "submitAnswer"
	IntentRestart         IntentType = "restart"
)

// ClientMessage is the envelope for every client to server frame
type ClientMessage struct {
	Type IntentType      `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Intent is a decoded and validated client message
type Intent interface {
	Validate() error
}

// CreateIntent opens a new room
type CreateIntent struct {
	PlayerID   string `json:"playerId"`
	Theme      string `json:"theme"`
	Difficulty string `json:"difficulty"`
}

func (i CreateIntent) Validate() error {
	switch {
	case i.PlayerID == "":
		return fmt.Errorf("%w: playerId is required", room.ErrValidation)
	case i.Theme == "":
		return fmt.Errorf("%w: theme is required", room.ErrValidation)
	case i.Difficulty == "":
		return fmt.Errorf("%w: difficulty is required", room.ErrValidation)
	}
	return nil
}

// JoinIntent adds a player to a waiting room
type JoinIntent struct {
	RoomID   string `json:"roomId"`
	PlayerID string `json:"playerId"`
}

func (i JoinIntent) Validate() error {
	switch {
	case i.RoomID == "":
		return fmt.Errorf("%w: roomId is required", room.ErrValidation)
	case i.PlayerID == "":
		return fmt.Errorf("%w: playerId is required", room.ErrValidation)
	}
	return nil
}

// StartSettings are the optional overrides carried by a start intent
type StartSettings struct {
	Theme      string `json:"theme,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// StartIntent begins the first match in a room
type StartIntent struct {
	RoomID   string         `json:"roomId"`
	Settings *StartSettings `json:"settings,omitempty"`
}

func (i StartIntent) Validate() error {
	if i.RoomID == "" {
		return fmt.Errorf("%w: roomId is required", room.ErrValidation)
	}
	return nil
}

// SubmitAnswerIntent records a player's answer for the current question
type SubmitAnswerIntent struct {
	RoomID         string `json:"roomId"`
	PlayerID       string `json:"playerId"`
	SelectedAnswer string `json:"selectedAnswer"`
	CorrectAnswer  string `json:"correctAnswer"`
}

func (i SubmitAnswerIntent) Validate() error {
	switch {
	case i.RoomID == "":
		return fmt.Errorf("%w: roomId is required", room.ErrValidation)
	case i.PlayerID == "":
		return fmt.Errorf("%w: playerId is required", room.ErrValidation)
	}
	return nil
}

// RequestSettingsIntent asks for a room's theme and difficulty. Its payload is the bare code.
type RequestSettingsIntent struct {
	RoomID string
}

func (i RequestSettingsIntent) Validate() error {
	if i.RoomID == "" {
		return fmt.Errorf("%w: roomId is required", room.ErrValidation)
	}
	return nil
}

// RestartIntent starts a new match in an existing room. Its payload is the bare code.
type RestartIntent struct {
	RoomID string
}

func (i RestartIntent) Validate() error {
	if i.RoomID == "" {
		return fmt.Errorf("%w: roomId is required", room.ErrValidation)
	}
	return nil
}

// DecodeIntent parses a raw frame into its tagged intent and validates it
func DecodeIntent(raw []byte) (Intent, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: malformed message: %v", room.ErrValidation, err)
	}

	var intent Intent
	switch msg.Type {
	case IntentCreate:
		var i CreateIntent
		if err := decodeData(msg, &i); err != nil {
			return nil, err
		}
		intent = i

	case IntentJoin:
		var i JoinIntent
		if err := decodeData(msg, &i); err != nil {
			return nil, err
		}
		intent = i

	case IntentStart:
		var i StartIntent
		if err := decodeData(msg, &i); err != nil {
			return nil, err
		}
		intent = i

	case IntentSubmitAnswer:
		var i SubmitAnswerIntent
		if err := decodeData(msg, &i); err != nil {
			return nil, err
		}
		intent = i

	case IntentRequestSettings:
		var code string
		if err := decodeData(msg, &code); err != nil {
			return nil, err
		}
		intent = RequestSettingsIntent{RoomID: code}

	case IntentRestart:
		var code string
		if err := decodeData(msg, &code); err != nil {
			return nil, err
		}
		intent = RestartIntent{RoomID: code}

	default:
		return nil, fmt.Errorf("%w: %q", room.ErrUnknownAction, msg.Type)
	}

	if err := intent.Validate(); err != nil {
		return nil, err
	}
	return intent, nil
}

func decodeData(msg ClientMessage, v interface{}) error {
	if len(msg.Data) == 0 {
		return fmt.Errorf("%w: %s requires data", room.ErrValidation, msg.Type)
	}
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("%w: invalid %s payload: %v", room.ErrValidation, msg.Type, err)
	}
	return nil
}
