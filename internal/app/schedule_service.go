package app

import (
	"context"
	"time"

	"github.com/cimillas/mentor-booking/services/reservations/internal/clock"
	"github.com/cimillas/mentor-booking/services/reservations/internal/domain"
)

type ScheduleRepository interface {
	ListFreeSlots(ctx context.Context, mentorID string, from time.Time) ([]domain.Slot, error)
	ListSessionsByMentor(ctx context.Context, mentorID string) ([]domain.Session, error)
}

// Sweeper is the subset of ExpiryReconciler the read paths trigger.
type Sweeper interface {
	ReleaseExpiredHolds(ctx context.Context, mentorID string) (ReleaseResult, error)
	CancelStaleRequests(ctx context.Context, mentorID string) (int, error)
}

// ScheduleService serves the mentor-facing read paths and heals lapsed state
// before answering.
type ScheduleService struct {
	repo    ScheduleRepository
	sweeper Sweeper
	clock   clock.Clock
	options
}

func NewScheduleService(repo ScheduleRepository, sweeper Sweeper, clk clock.Clock, opts ...Option) *ScheduleService {
	return &ScheduleService{
		repo:    repo,
		sweeper: sweeper,
		clock:   clk,
		options: applyOptions(opts),
	}
}

// ListAvailableSlots returns the mentor's free future slots after releasing
// any of the mentor's lapsed holds. A failed sweep does not fail the read.
func (s *ScheduleService) ListAvailableSlots(ctx context.Context, mentorID string) ([]domain.Slot, error) {
	if mentorID == "" {
		return nil, domain.ErrInvalidID
	}
	if _, err := s.sweeper.ReleaseExpiredHolds(ctx, mentorID); err != nil {
		s.logger.WarnContext(ctx, "opportunistic hold sweep failed", "mentor_id", mentorID, "error", err)
	}
	return s.repo.ListFreeSlots(ctx, mentorID, s.clock.Now())
}

// ListMentorSessions returns the mentor's sessions after auto-canceling the
// requests the mentor let go stale. Only the mentor may list them.
func (s *ScheduleService) ListMentorSessions(ctx context.Context, userID, mentorID string) ([]domain.Session, error) {
	if mentorID == "" {
		return nil, domain.ErrInvalidID
	}
	if userID != mentorID {
		return nil, domain.ErrNotParticipant
	}
	if _, err := s.sweeper.CancelStaleRequests(ctx, mentorID); err != nil {
		s.logger.WarnContext(ctx, "stale request sweep failed", "mentor_id", mentorID, "error", err)
	}
	return s.repo.ListSessionsByMentor(ctx, mentorID)
}
