package room

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mcdev12/triviaroom/go/internal/models"
)

func validCreateRoomRequest() CreateRoomRequest {
	return CreateRoomRequest{
		CreatorID:      "p1",
		Theme:          "general",
		Difficulty:     "medium",
		Countdown:      45,
		TotalQuestions: 10,
		CreatedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestStoreCreate(t *testing.T) {
	s := NewStore(NewSeededCodeGenerator(1))

	r, err := s.Create(validCreateRoomRequest())
	require.NoError(t, err)

	snap := r.Snapshot()
	assert.Len(t, snap.Code, codeLength)
	assert.Equal(t, models.GameStateWaiting, snap.GameState)
	assert.Equal(t, "general", snap.Theme)
	assert.Equal(t, "medium", snap.Difficulty)
	assert.Equal(t, 45, snap.SecondsRemaining)
	assert.Equal(t, 10, snap.TotalQuestions)
	assert.Equal(t, []models.PlayerScore{{PlayerID: "p1", Score: 0}}, snap.Players)
	assert.False(t, snap.TimerActive)

	got, err := s.Get(snap.Code)
	require.NoError(t, err)
	assert.Same(t, r, got)
}

func TestStoreCreate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateRoomRequest)
	}{
		{"missing creator", func(r *CreateRoomRequest) { r.CreatorID = "" }},
		{"missing theme", func(r *CreateRoomRequest) { r.Theme = "" }},
		{"missing difficulty", func(r *CreateRoomRequest) { r.Difficulty = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore(NewSeededCodeGenerator(1))
			req := validCreateRoomRequest()
			tt.mutate(&req)

			_, err := s.Create(req)
			assert.True(t, errors.Is(err, ErrValidation), "got %v", err)
			assert.Equal(t, 0, s.Len())
		})
	}
}

func TestStoreGet_NotFound(t *testing.T) {
	s := NewStore(NewSeededCodeGenerator(1))
	_, err := s.Get("ZZZZ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreDelete(t *testing.T) {
	s := NewStore(NewSeededCodeGenerator(1))
	r, err := s.Create(validCreateRoomRequest())
	require.NoError(t, err)

	s.Delete(r.Code())
	_, err = s.Get(r.Code())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, s.Len())
}

func TestStoreList_OrderedByCode(t *testing.T) {
	s := NewStore(NewSeededCodeGenerator(7))
	for i := 0; i < 5; i++ {
		_, err := s.Create(validCreateRoomRequest())
		require.NoError(t, err)
	}

	rooms := s.List()
	require.Len(t, rooms, 5)
	for i := 1; i < len(rooms); i++ {
		assert.Less(t, rooms[i-1].Code(), rooms[i].Code())
	}
}

func TestStoreCreate_CodesDistinctWhileLive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewStore(NewSeededCodeGenerator(rapid.Int64().Draw(t, "seed")))
		n := rapid.IntRange(1, 200).Draw(t, "rooms")

		seen := make(map[string]bool, n)
		for i := 0; i < n; i++ {
			r, err := s.Create(validCreateRoomRequest())
			if err != nil {
				t.Fatalf("create %d: %v", i, err)
			}
			if seen[r.Code()] {
				t.Fatalf("duplicate live code %s", r.Code())
			}
			seen[r.Code()] = true
		}
	})
}

func TestStoreCreate_GivesUpAfterMaxAttempts(t *testing.T) {
	s := NewStore(NewSeededCodeGenerator(3))

	// Occupy every code the generator will draw during one Create call.
	replay := NewSeededCodeGenerator(3)
	for i := 0; i < maxCodeAttempts; i++ {
		s.rooms[replay.Next()] = &Room{}
	}
	before := s.Len()

	_, err := s.Create(validCreateRoomRequest())
	assert.Error(t, err)
	assert.Equal(t, before, s.Len())
}
