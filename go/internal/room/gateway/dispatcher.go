package gateway

import (
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/triviaroom/go/internal/models"
	"github.com/mcdev12/triviaroom/go/internal/room"
	"github.com/mcdev12/triviaroom/go/internal/room/events"
)

// RoomApp defines what the gateway needs from the room session state machine
type RoomApp interface {
	Create(req room.CreateRequest) (string, error)
	Join(code, playerID string) error
	Settings(code string) (models.RoomSettings, error)
	Start(code string, settings room.StartSettings) error
	SubmitAnswer(code, playerID, selectedAnswer, correctAnswer string)
	Restart(code string)
	Leave(code, playerID string)
}

// Dispatcher routes decoded client intents to the RoomApp and replies to the requester
type Dispatcher struct {
	app RoomApp
	cm  *ConnectionManager
}

// NewDispatcher creates a Dispatcher and installs it as cm's message handler
func NewDispatcher(app RoomApp, cm *ConnectionManager) *Dispatcher {
	d := &Dispatcher{app: app, cm: cm}
	cm.SetHandler(d)
	return d
}

// HandleMessage implements MessageHandler
func (d *Dispatcher) HandleMessage(conn *Connection, message []byte) {
	intent, err := DecodeIntent(message)
	if err != nil {
		d.replyError(conn, "", err)
		return
	}

	switch i := intent.(type) {
	case CreateIntent:
		code, err := d.app.Create(room.CreateRequest{
			PlayerID:   i.PlayerID,
			Theme:      i.Theme,
			Difficulty: i.Difficulty,
		})
		if err != nil {
			d.replyError(conn, "", err)
			return
		}
		if _, err := d.cm.Subscribe(conn, code, i.PlayerID); err != nil {
			// The disconnect already ran, nobody else would ever remove this player
			d.app.Leave(code, i.PlayerID)
			log.Debug().Str("connection_id", conn.ID).Str("room_code", code).Msg("dropped room created on closed connection")
			return
		}
		d.reply(conn, code, events.EventTypeCreated, code)

	case JoinIntent:
		// Subscribe first so the joiner receives the playerCount broadcast
		subscribed, err := d.cm.Subscribe(conn, i.RoomID, i.PlayerID)
		if err != nil {
			return
		}
		if err := d.app.Join(i.RoomID, i.PlayerID); err != nil {
			if subscribed {
				d.cm.Unsubscribe(conn, i.RoomID, i.PlayerID)
			}
			d.replyError(conn, i.RoomID, err)
			return
		}
		// An unregister between Subscribe and Join saw the player absent and left nothing
		if !d.cm.IsRegistered(conn) {
			d.app.Leave(i.RoomID, i.PlayerID)
			return
		}
		d.reply(conn, i.RoomID, events.EventTypeJoined, i.RoomID)

	case RequestSettingsIntent:
		settings, err := d.app.Settings(i.RoomID)
		if err != nil {
			d.replyError(conn, i.RoomID, err)
			return
		}
		d.reply(conn, i.RoomID, events.EventTypeSettings, settings)

	case StartIntent:
		var settings room.StartSettings
		if i.Settings != nil {
			settings = room.StartSettings{Theme: i.Settings.Theme, Difficulty: i.Settings.Difficulty}
		}
		if err := d.app.Start(i.RoomID, settings); err != nil {
			d.replyError(conn, i.RoomID, err)
		}

	case SubmitAnswerIntent:
		d.app.SubmitAnswer(i.RoomID, i.PlayerID, i.SelectedAnswer, i.CorrectAnswer)

	case RestartIntent:
		d.app.Restart(i.RoomID)
	}
}

// HandleDisconnect implements MessageHandler. Every room the connection joined loses
// that player.
func (d *Dispatcher) HandleDisconnect(conn *Connection, memberships map[string][]string) {
	for code, playerIDs := range memberships {
		for _, playerID := range playerIDs {
			log.Debug().
				Str("connection_id", conn.ID).
				Str("room_code", code).
				Str("player_id", playerID).
				Msg("leaving room on disconnect")
			d.app.Leave(code, playerID)
		}
	}
}

func (d *Dispatcher) reply(conn *Connection, code string, eventType events.EventType, payload interface{}) {
	event, err := events.New(code, eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to build reply")
		return
	}
	d.cm.SendTo(conn, event)
}

func (d *Dispatcher) replyError(conn *Connection, code string, err error) {
	log.Debug().
		Err(err).
		Str("connection_id", conn.ID).
		Str("room_code", code).
		Msg("rejected client message")
	d.reply(conn, code, events.EventTypeError, events.ErrorPayload{Message: err.Error()})
}
