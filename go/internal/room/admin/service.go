package admin

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mcdev12/triviaroom/go/internal/models"
	"github.com/mcdev12/triviaroom/go/internal/room"
)

const (
	// ServiceName is the fully-qualified name of the admin service
	ServiceName = "trivia.admin.v1.AdminService"

	// ListRoomsProcedure returns every live room
	ListRoomsProcedure = "/" + ServiceName + "/ListRooms"
	// GetRoomProcedure returns one room by code
	GetRoomProcedure = "/" + ServiceName + "/GetRoom"
)

// RoomReader defines what the admin service needs from the room app
type RoomReader interface {
	ListRooms() []models.RoomSnapshot
	Snapshot(code string) (models.RoomSnapshot, error)
}

// Service implements the read-only room admin RPCs
type Service struct {
	rooms RoomReader
}

// NewService creates a new admin service
func NewService(rooms RoomReader) *Service {
	return &Service{
		rooms: rooms,
	}
}

// NewHandler builds an HTTP handler serving the admin procedures. It returns the path
// to mount it on.
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	mux := http.NewServeMux()
	mux.Handle(ListRoomsProcedure, connect.NewUnaryHandler(ListRoomsProcedure, svc.ListRooms, opts...))
	mux.Handle(GetRoomProcedure, connect.NewUnaryHandler(GetRoomProcedure, svc.GetRoom, opts...))
	return "/" + ServiceName + "/", mux
}

// ListRooms returns {"rooms": [...]} with a snapshot per live room
func (s *Service) ListRooms(ctx context.Context, req *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	snaps := s.rooms.ListRooms()

	rooms := make([]interface{}, 0, len(snaps))
	for _, snap := range snaps {
		rooms = append(rooms, snapshotToMap(snap))
	}

	out, err := structpb.NewStruct(map[string]interface{}{"rooms": rooms})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

// GetRoom returns the snapshot of the room whose code is the request value
func (s *Service) GetRoom(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[structpb.Struct], error) {
	code := req.Msg.GetValue()
	if code == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("room code is required"))
	}

	snap, err := s.rooms.Snapshot(code)
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			return nil, connect.NewError(connect.CodeNotFound, err)
		}
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	out, err := structpb.NewStruct(snapshotToMap(snap))
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(out), nil
}

func snapshotToMap(snap models.RoomSnapshot) map[string]interface{} {
	players := make([]interface{}, 0, len(snap.Players))
	for _, p := range snap.Players {
		players = append(players, map[string]interface{}{
			"playerId": p.PlayerID,
			"score":    p.Score,
		})
	}

	return map[string]interface{}{
		"code":                 snap.Code,
		"gameState":            string(snap.GameState),
		"theme":                snap.Theme,
		"difficulty":           snap.Difficulty,
		"players":              players,
		"currentQuestionIndex": snap.CurrentQuestionIndex,
		"totalQuestions":       snap.TotalQuestions,
		"secondsRemaining":     snap.SecondsRemaining,
		"timerActive":          snap.TimerActive,
		"createdAt":            snap.CreatedAt.UTC().Format(time.RFC3339),
	}
}
