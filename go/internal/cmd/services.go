package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/triviaroom/go/internal/config"
	"github.com/mcdev12/triviaroom/go/internal/room"
	"github.com/mcdev12/triviaroom/go/internal/room/admin"
	"github.com/mcdev12/triviaroom/go/internal/room/archive"
	"github.com/mcdev12/triviaroom/go/internal/room/gateway"
	"github.com/mcdev12/triviaroom/go/internal/room/publisher"
)

type Services struct {
	Rooms   *room.App
	Gateway *gateway.Service
	Admin   *admin.Service

	publisher *publisher.JetStreamPublisher
	pool      *pgxpool.Pool
}

func setupServices(ctx context.Context, cfg *config.Config, clock clockwork.Clock) (*Services, error) {
	// Wire up dependency injection chain
	// Sinks → Room app → Gateway / Admin
	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	broadcasters := room.MultiBroadcaster{cm}
	var recorders []room.MatchRecorder

	s := &Services{}

	if cfg.NATSURL != "" {
		pubCfg := publisher.DefaultConfig()
		pubCfg.URL = cfg.NATSURL
		pub, err := publisher.Connect(ctx, pubCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to set up event publisher: %w", err)
		}
		s.publisher = pub
		broadcasters = append(broadcasters, pub)
	}

	if cfg.ArchiveEnabled {
		pool, err := archive.Connect(ctx, cfg.Database)
		if err != nil {
			s.Close(ctx)
			return nil, fmt.Errorf("failed to set up match archive: %w", err)
		}
		s.pool = pool

		recorder := archive.NewRecorder(pool)
		if err := recorder.EnsureSchema(ctx); err != nil {
			s.Close(ctx)
			return nil, err
		}
		recorders = append(recorders, recorder)
	}

	store := room.NewStore(room.NewCodeGenerator())
	timers := room.NewTimerService(clock)
	s.Rooms = room.NewApp(store, cfg.Rules, timers, broadcasters, recorders...)
	s.Gateway = gateway.NewService(cm, s.Rooms)
	s.Admin = admin.NewService(s.Rooms)

	log.Info().
		Bool("event_mirror", s.publisher != nil).
		Bool("match_archive", s.pool != nil).
		Int("total_questions", cfg.Rules.TotalQuestions).
		Msg("services initialized")

	return s, nil
}

// Close stops room timers, flushes pending archive writes and releases external connections.
func (s *Services) Close(ctx context.Context) {
	if s.Rooms != nil {
		if err := s.Rooms.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("room app did not shut down cleanly")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("event publisher did not shut down cleanly")
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
}
