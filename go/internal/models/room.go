package models

import "time"

// GameState defines the phase of a room.
type GameState string

const (
	GameStateWaiting  GameState = "waiting"
	GameStatePlaying  GameState = "playing"
	GameStateFinished GameState = "finished"
)

// TimeOutAnswer is the answer recorded for every player when a question's countdown expires.
const TimeOutAnswer = "Time Out"

// Player represents a participant in a room.
type Player struct {
	ID       string    `json:"playerId"`
	Score    int       `json:"score"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Response is one player's recorded answer for a question.
type Response struct {
	PlayerID       string `json:"playerId"`
	SelectedAnswer string `json:"selectedAnswer"`
	IsCorrect      bool   `json:"isCorrect"`
}

// PlayerScore is the id/score pair carried by started, nextQuestion and gameOver events.
type PlayerScore struct {
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

// RoomSettings holds the configurable room options.
type RoomSettings struct {
	Theme      string `json:"theme"`
	Difficulty string `json:"difficulty"`
}

// RoomSnapshot is a read-only copy of a room's state.
type RoomSnapshot struct {
	Code                 string        `json:"code"`
	GameState            GameState     `json:"gameState"`
	Theme                string        `json:"theme"`
	Difficulty           string        `json:"difficulty"`
	Players              []PlayerScore `json:"players"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	TotalQuestions       int           `json:"totalQuestions"`
	SecondsRemaining     int           `json:"secondsRemaining"`
	TimerActive          bool          `json:"timerActive"`
	CreatedAt            time.Time     `json:"createdAt"`
}
