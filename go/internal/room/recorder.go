package room

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/triviaroom/go/internal/models"
	"github.com/mcdev12/triviaroom/go/internal/room/events"
)

// MatchResult describes a finished match.
type MatchResult struct {
	ID             uuid.UUID
	Code           string
	Theme          string
	Difficulty     string
	TotalQuestions int
	Results        []models.PlayerScore
	StartedAt      time.Time
	FinishedAt     time.Time
}

// MatchRecorder receives every match that reaches gameOver. Implementations are called
// outside the room lock and may block up to the App's record timeout.
type MatchRecorder interface {
	RecordMatch(ctx context.Context, result MatchResult) error
}

// Broadcaster delivers a room event to every connection subscribed to code.
// Implementations must not block; the App calls them while holding the room lock.
type Broadcaster interface {
	BroadcastToRoom(code string, event *events.RoomEvent)
}

// MultiBroadcaster fans each event out to several broadcasters in order.
type MultiBroadcaster []Broadcaster

// BroadcastToRoom implements Broadcaster.
func (m MultiBroadcaster) BroadcastToRoom(code string, event *events.RoomEvent) {
	for _, b := range m {
		b.BroadcastToRoom(code, event)
	}
}
