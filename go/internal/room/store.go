package room

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mcdev12/triviaroom/go/internal/models"
)

// maxCodeAttempts bounds collision retries so a saturated code space fails instead of spinning.
const maxCodeAttempts = 1000

// Room is a single match's shared state. All fields are guarded by mu and only the App
// mutates them.
type Room struct {
	mu sync.Mutex

	code      string
	createdAt time.Time
	startedAt time.Time

	players          []*models.Player
	state            models.GameState
	theme            string
	difficulty       string
	questionIndex    int
	totalQuestions   int
	answerLog        map[int][]models.Response
	secondsRemaining int

	// timer is the single running countdown for the current question, or nil
	timer *Countdown
	// advance is the pending settle-delay transition, or nil
	advance *Settle
	// deleted is set once the room has left the store; late callbacks must drop their work
	deleted bool
}

// Code returns the room's immutable code.
func (r *Room) Code() string {
	return r.code
}

// Snapshot returns a copy of the room's current state.
func (r *Room) Snapshot() models.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.RoomSnapshot{
		Code:                 r.code,
		GameState:            r.state,
		Theme:                r.theme,
		Difficulty:           r.difficulty,
		Players:              r.scoresLocked(),
		CurrentQuestionIndex: r.questionIndex,
		TotalQuestions:       r.totalQuestions,
		SecondsRemaining:     r.secondsRemaining,
		TimerActive:          r.timer != nil,
		CreatedAt:            r.createdAt,
	}
}

func (r *Room) scoresLocked() []models.PlayerScore {
	scores := make([]models.PlayerScore, 0, len(r.players))
	for _, p := range r.players {
		scores = append(scores, models.PlayerScore{PlayerID: p.ID, Score: p.Score})
	}
	return scores
}

func (r *Room) playerLocked(playerID string) *models.Player {
	for _, p := range r.players {
		if p.ID == playerID {
			return p
		}
	}
	return nil
}

// Store is the in-memory registry of live rooms keyed by code.
// All methods are safe for concurrent use. Callers that also hold a Room lock must
// acquire it before calling into the Store.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*Room
	codes *CodeGenerator
}

// NewStore creates an empty Store drawing codes from the given generator.
func NewStore(codes *CodeGenerator) *Store {
	return &Store{
		rooms: make(map[string]*Room),
		codes: codes,
	}
}

// CreateRoomRequest describes a new room and its first player.
type CreateRoomRequest struct {
	CreatorID      string
	Theme          string
	Difficulty     string
	Countdown      int
	TotalQuestions int
	CreatedAt      time.Time
}

// Create inserts a new waiting room under a fresh unique code.
func (s *Store) Create(req CreateRoomRequest) (*Room, error) {
	if err := validateCreateRoomRequest(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	code, err := s.uniqueCodeLocked()
	if err != nil {
		return nil, err
	}

	r := &Room{
		code:      code,
		createdAt: req.CreatedAt,
		players: []*models.Player{
			{ID: req.CreatorID, JoinedAt: req.CreatedAt},
		},
		state:            models.GameStateWaiting,
		theme:            req.Theme,
		difficulty:       req.Difficulty,
		totalQuestions:   req.TotalQuestions,
		answerLog:        make(map[int][]models.Response),
		secondsRemaining: req.Countdown,
	}
	s.rooms[code] = r
	return r, nil
}

func validateCreateRoomRequest(req CreateRoomRequest) error {
	switch {
	case req.CreatorID == "":
		return fmt.Errorf("%w: playerId is required", ErrValidation)
	case req.Theme == "":
		return fmt.Errorf("%w: theme is required", ErrValidation)
	case req.Difficulty == "":
		return fmt.Errorf("%w: difficulty is required", ErrValidation)
	}
	return nil
}

func (s *Store) uniqueCodeLocked() (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code := s.codes.Next()
		if _, taken := s.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", errors.New("no free room code available")
}

// Get returns the live room for code, or ErrNotFound.
func (s *Store) Get(code string) (*Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	return r, nil
}

// Delete removes the room for code. The caller must have cancelled the room's timers.
func (s *Store) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
}

// List returns the live rooms ordered by code.
func (s *Store) List() []*Room {
	s.mu.RLock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		rooms = append(rooms, r)
	}
	s.mu.RUnlock()

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].code < rooms[j].code })
	return rooms
}

// Len returns the number of live rooms.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
