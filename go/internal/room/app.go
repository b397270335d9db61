package room

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/triviaroom/go/internal/models"
	"github.com/mcdev12/triviaroom/go/internal/room/events"
	"github.com/rs/zerolog/log"
)

const defaultRecordTimeout = 10 * time.Second

// App is the session state machine. It is the only component that mutates a Room, and
// every mutation, tick and settle callback runs under that room's lock.
type App struct {
	store       *Store
	rules       Rules
	timers      *TimerService
	broadcaster Broadcaster
	recorders   []MatchRecorder

	recordTimeout time.Duration
	recordWG      sync.WaitGroup
}

// NewApp creates a new room App
func NewApp(store *Store, rules Rules, timers *TimerService, broadcaster Broadcaster, recorders ...MatchRecorder) *App {
	return &App{
		store:         store,
		rules:         rules,
		timers:        timers,
		broadcaster:   broadcaster,
		recorders:     recorders,
		recordTimeout: defaultRecordTimeout,
	}
}

// CreateRequest carries the create intent.
type CreateRequest struct {
	PlayerID   string
	Theme      string
	Difficulty string
}

// StartSettings holds the optional overrides accepted by Start. Empty fields keep the
// room's current value.
type StartSettings struct {
	Theme      string
	Difficulty string
}

// Create opens a waiting room with the requester as its only player and returns its code.
func (a *App) Create(req CreateRequest) (string, error) {
	r, err := a.store.Create(CreateRoomRequest{
		CreatorID:      req.PlayerID,
		Theme:          req.Theme,
		Difficulty:     req.Difficulty,
		Countdown:      a.rules.CountdownFor(req.Difficulty),
		TotalQuestions: a.rules.TotalQuestions,
		CreatedAt:      a.timers.Now(),
	})
	if err != nil {
		return "", err
	}

	log.Info().
		Str("room_code", r.code).
		Str("player_id", req.PlayerID).
		Str("theme", req.Theme).
		Str("difficulty", req.Difficulty).
		Msg("room created")
	return r.code, nil
}

// Join adds playerID to a waiting room and broadcasts the new player count.
func (a *App) Join(code, playerID string) error {
	if playerID == "" {
		return fmt.Errorf("%w: playerId is required", ErrValidation)
	}

	r, err := a.lockRoom(code)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	if r.state != models.GameStateWaiting {
		return fmt.Errorf("%w: room %s is %s", ErrInvalidState, code, r.state)
	}
	if r.playerLocked(playerID) != nil {
		return fmt.Errorf("%w: %s", ErrAlreadyJoined, playerID)
	}

	r.players = append(r.players, &models.Player{ID: playerID, JoinedAt: a.timers.Now()})
	a.broadcastLocked(r, events.EventTypePlayerCount, len(r.players))

	log.Info().Str("room_code", code).Str("player_id", playerID).Int("players", len(r.players)).Msg("player joined")
	return nil
}

// Settings returns the room's current theme and difficulty.
func (a *App) Settings(code string) (models.RoomSettings, error) {
	r, err := a.lockRoom(code)
	if err != nil {
		return models.RoomSettings{}, err
	}
	defer r.mu.Unlock()
	return models.RoomSettings{Theme: r.theme, Difficulty: r.difficulty}, nil
}

// Start begins the first match of a waiting room. Rooms that are already playing or
// finished are left untouched.
func (a *App) Start(code string, settings StartSettings) error {
	r, err := a.lockRoom(code)
	if err != nil {
		return err
	}
	defer r.mu.Unlock()

	if r.state != models.GameStateWaiting {
		log.Debug().Str("room_code", code).Str("state", string(r.state)).Msg("ignoring start for room that is not waiting")
		return nil
	}

	if settings.Theme != "" {
		r.theme = settings.Theme
	}
	if settings.Difficulty != "" {
		r.difficulty = settings.Difficulty
	}

	a.startMatchLocked(r)
	return nil
}

// Restart starts a new match in an existing room from any state, keeping its settings.
// Unknown rooms are ignored.
func (a *App) Restart(code string) {
	r, err := a.lockRoom(code)
	if err != nil {
		log.Debug().Err(err).Str("room_code", code).Msg("ignoring restart")
		return
	}
	defer r.mu.Unlock()

	a.startMatchLocked(r)
}

// SubmitAnswer records playerID's answer for the current question, scores it, and
// schedules the advance. Answers for rooms that are not playing, from unknown players, or
// repeated for the same question are ignored.
func (a *App) SubmitAnswer(code, playerID, selectedAnswer, correctAnswer string) {
	r, err := a.lockRoom(code)
	if err != nil {
		log.Debug().Err(err).Str("room_code", code).Msg("ignoring answer")
		return
	}
	defer r.mu.Unlock()

	if r.state != models.GameStatePlaying {
		return
	}
	p := r.playerLocked(playerID)
	if p == nil {
		log.Debug().Str("room_code", code).Str("player_id", playerID).Msg("ignoring answer from unknown player")
		return
	}

	idx := r.questionIndex
	for _, resp := range r.answerLog[idx] {
		if resp.PlayerID == playerID {
			log.Debug().Str("room_code", code).Str("player_id", playerID).Int("question_index", idx).Msg("ignoring repeated answer")
			return
		}
	}

	correct := selectedAnswer == correctAnswer
	if correct {
		p.Score += a.rules.CorrectReward
	}
	r.answerLog[idx] = append(r.answerLog[idx], models.Response{
		PlayerID:       playerID,
		SelectedAnswer: selectedAnswer,
		IsCorrect:      correct,
	})

	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	a.scheduleAdvanceLocked(r)

	answer := correctAnswer
	a.broadcastLocked(r, events.EventTypeFeedback, events.FeedbackPayload{
		QuestionIndex: idx,
		Responses:     r.responsesLocked(idx),
		CorrectAnswer: &answer,
	})
}

// Leave removes playerID from the room. The last player out deletes the room and cancels
// its timers.
func (a *App) Leave(code, playerID string) {
	r, err := a.lockRoom(code)
	if err != nil {
		return
	}
	defer r.mu.Unlock()

	idx := -1
	for i, p := range r.players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	r.players = append(r.players[:idx], r.players[idx+1:]...)

	if len(r.players) == 0 {
		r.cancelTimersLocked()
		r.deleted = true
		a.store.Delete(code)
		log.Info().Str("room_code", code).Msg("room deleted after last player left")
		return
	}

	a.broadcastLocked(r, events.EventTypePlayerCount, len(r.players))
	log.Info().Str("room_code", code).Str("player_id", playerID).Int("players", len(r.players)).Msg("player left")
}

// Snapshot returns a copy of the room's state.
func (a *App) Snapshot(code string) (models.RoomSnapshot, error) {
	r, err := a.store.Get(code)
	if err != nil {
		return models.RoomSnapshot{}, err
	}
	return r.Snapshot(), nil
}

// ListRooms returns snapshots of every live room ordered by code.
func (a *App) ListRooms() []models.RoomSnapshot {
	rooms := a.store.List()
	snaps := make([]models.RoomSnapshot, 0, len(rooms))
	for _, r := range rooms {
		snaps = append(snaps, r.Snapshot())
	}
	return snaps
}

// Close cancels every room's timers and waits for in-flight match recorders.
func (a *App) Close(ctx context.Context) error {
	for _, r := range a.store.List() {
		r.mu.Lock()
		r.cancelTimersLocked()
		r.mu.Unlock()
	}

	done := make(chan struct{})
	go func() {
		a.recordWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for match recorders: %w", ctx.Err())
	}
}

// lockRoom looks up code and returns the room locked. Rooms deleted between the lookup
// and the lock are reported as not found.
func (a *App) lockRoom(code string) (*Room, error) {
	r, err := a.store.Get(code)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	if r.deleted {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, code)
	}
	return r, nil
}

// startMatchLocked resets the room for question 0 and starts its countdown.
func (a *App) startMatchLocked(r *Room) {
	r.cancelTimersLocked()

	r.state = models.GameStatePlaying
	r.questionIndex = 0
	r.answerLog = make(map[int][]models.Response)
	for _, p := range r.players {
		p.Score = 0
	}
	r.startedAt = a.timers.Now()

	a.beginQuestionLocked(r)
	a.broadcastLocked(r, events.EventTypeStarted, events.StartedPayload{
		Scores:        r.scoresLocked(),
		Countdown:     r.secondsRemaining,
		QuestionIndex: r.questionIndex,
	})

	log.Info().
		Str("room_code", r.code).
		Str("theme", r.theme).
		Str("difficulty", r.difficulty).
		Int("players", len(r.players)).
		Msg("match started")
}

// beginQuestionLocked resets the room countdown and replaces the running one.
func (a *App) beginQuestionLocked(r *Room) {
	r.secondsRemaining = a.rules.CountdownFor(r.difficulty)
	r.replaceCountdownLocked(a.timers.StartCountdown(func(c *Countdown) {
		a.onTick(r, c)
	}))
}

// onTick runs once per second for the countdown c.
func (a *App) onTick(r *Room, c *Countdown) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted || r.timer != c {
		return
	}

	if r.secondsRemaining > 0 {
		r.secondsRemaining--
	}
	a.broadcastLocked(r, events.EventTypeTick, r.secondsRemaining)

	if r.secondsRemaining == 0 {
		a.timeOutLocked(r)
	}
}

// timeOutLocked closes the current question with a Time Out response for every player.
func (a *App) timeOutLocked(r *Room) {
	r.timer.Stop()
	r.timer = nil

	idx := r.questionIndex
	for _, p := range r.players {
		r.answerLog[idx] = append(r.answerLog[idx], models.Response{
			PlayerID:       p.ID,
			SelectedAnswer: models.TimeOutAnswer,
			IsCorrect:      false,
		})
	}
	a.scheduleAdvanceLocked(r)

	a.broadcastLocked(r, events.EventTypeFeedback, events.FeedbackPayload{
		QuestionIndex: idx,
		Responses:     r.responsesLocked(idx),
		CorrectAnswer: nil,
	})

	log.Info().Str("room_code", r.code).Int("question_index", idx).Msg("question timed out")
}

// scheduleAdvanceLocked arms the settle delay unless one is already pending for the
// current question.
func (a *App) scheduleAdvanceLocked(r *Room) {
	if r.advance != nil {
		return
	}
	r.advance = a.timers.ScheduleSettle(a.rules.SettleDelay, func(s *Settle) {
		a.advanceOrFinish(r, s)
	})
}

// advanceOrFinish moves to the next question, or ends the match after the last one.
func (a *App) advanceOrFinish(r *Room, s *Settle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.deleted || r.advance != s {
		return
	}
	r.advance = nil

	if r.questionIndex+1 < r.totalQuestions {
		r.questionIndex++
		a.beginQuestionLocked(r)
		a.broadcastLocked(r, events.EventTypeNextQuestion, events.NextQuestionPayload{
			QuestionIndex: r.questionIndex,
			Countdown:     r.secondsRemaining,
			Scores:        r.scoresLocked(),
		})
		return
	}

	r.state = models.GameStateFinished
	results := r.scoresLocked()
	a.broadcastLocked(r, events.EventTypeGameOver, events.GameOverPayload{Results: results})

	log.Info().Str("room_code", r.code).Int("players", len(results)).Msg("match finished")

	a.recordMatch(MatchResult{
		ID:             uuid.New(),
		Code:           r.code,
		Theme:          r.theme,
		Difficulty:     r.difficulty,
		TotalQuestions: r.totalQuestions,
		Results:        results,
		StartedAt:      r.startedAt,
		FinishedAt:     a.timers.Now(),
	})
}

// recordMatch hands the result to every recorder on its own goroutine.
func (a *App) recordMatch(result MatchResult) {
	for _, rec := range a.recorders {
		a.recordWG.Add(1)
		go func(rec MatchRecorder) {
			defer a.recordWG.Done()

			ctx, cancel := context.WithTimeout(context.Background(), a.recordTimeout)
			defer cancel()

			if err := rec.RecordMatch(ctx, result); err != nil {
				log.Error().Err(err).Str("room_code", result.Code).Str("match_id", result.ID.String()).Msg("failed to record match")
			}
		}(rec)
	}
}

func (a *App) broadcastLocked(r *Room, eventType events.EventType, payload interface{}) {
	event, err := events.New(r.code, eventType, payload)
	if err != nil {
		log.Error().Err(err).Str("room_code", r.code).Str("event_type", string(eventType)).Msg("failed to build event")
		return
	}
	a.broadcaster.BroadcastToRoom(r.code, event)
}

func (r *Room) responsesLocked(idx int) []models.Response {
	out := make([]models.Response, len(r.answerLog[idx]))
	copy(out, r.answerLog[idx])
	return out
}
