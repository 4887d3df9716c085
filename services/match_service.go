// services/match_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/serra/cards"
	"github.com/wfunc/serra/logger"
	"github.com/wfunc/serra/models"
	"github.com/wfunc/serra/persistence"
	"github.com/wfunc/serra/room"
)

const (
	DefaultRecentLimit = 20
	MaxRecentLimit     = 100
	recordTimeout      = 10 * time.Second
)

var ErrHistoryDisabled = errors.New("match history is not configured")

// Publisher fans finished matches out to other services.
type Publisher interface {
	PublishMatch(ctx context.Context, record *models.GameRecord) (string, error)
	Recent(ctx context.Context, count int64) ([]models.GameRecord, error)
}

// MatchService archives finished games. Either backend may be nil.
type MatchService struct {
	db        persistence.Database
	publisher Publisher
	wg        sync.WaitGroup
}

func NewMatchService(db persistence.Database, publisher Publisher) *MatchService {
	return &MatchService{db: db, publisher: publisher}
}

// RecordFromSummary builds the archive record of a finished room game.
func RecordFromSummary(s room.Summary) *models.GameRecord {
	rec := &models.GameRecord{
		RoomCode:   s.Code,
		Players:    make([]models.PlayerInfo, 0, cards.Seats),
		TeamScore:  s.TeamScore,
		WinnerTeam: s.WinnerTeam,
		Tricks:     s.Tricks,
		StartedAt:  s.StartedAt,
		EndedAt:    s.EndedAt,
	}
	for seat, name := range s.Names {
		team := cards.TeamOfSeat(seat)
		outcome := models.OutcomeDraw
		switch s.WinnerTeam {
		case team:
			outcome = models.OutcomeWin
		case 1 - team:
			outcome = models.OutcomeLose
		}
		rec.Players = append(rec.Players, models.PlayerInfo{
			Seat:    seat,
			Name:    name,
			Team:    team,
			Outcome: outcome,
		})
	}
	return rec
}

// RecordFinished saves and publishes one game. Both backends are tried;
// their errors are returned together.
func (s *MatchService) RecordFinished(ctx context.Context, summary room.Summary) (*models.GameRecord, error) {
	rec := RecordFromSummary(summary)

	var errs []error
	if s.db != nil {
		if err := s.db.SaveGameRecord(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("archive: %w", err))
		}
	}
	if s.publisher != nil {
		if _, err := s.publisher.PublishMatch(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("publish: %w", err))
		}
	}
	return rec, errors.Join(errs...)
}

// RecordFinishedAsync records in the background. Failures are logged only.
func (s *MatchService) RecordFinishedAsync(summary room.Summary) {
	if s.db == nil && s.publisher == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()

		rec, err := s.RecordFinished(ctx, summary)
		if err != nil {
			logger.Log.Errorf("Room %s: failed to record match: %v", summary.Code, err)
			return
		}
		logger.Log.Infof("Room %s: match %d recorded", summary.Code, rec.ID)
	}()
}

// Wait blocks until background recordings are done.
func (s *MatchService) Wait() {
	s.wg.Wait()
}

// RecentMatches reads the archive, falling back to the stream when no
// database is configured.
func (s *MatchService) RecentMatches(ctx context.Context, limit int) ([]models.GameRecord, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	limit = min(limit, MaxRecentLimit)

	switch {
	case s.db != nil:
		return s.db.RecentGameRecords(ctx, limit)
	case s.publisher != nil:
		return s.publisher.Recent(ctx, int64(limit))
	default:
		return nil, ErrHistoryDisabled
	}
}
