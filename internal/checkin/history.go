package checkin

import (
	"context"
	"fmt"
	"time"

	"github.com/hray3182/lifeline-checkin/internal/models"
	"github.com/hray3182/lifeline-checkin/internal/status"
)

// History is the append-only check-in log for a date range with per-day
// success rates.
type History struct {
	From    string                 `json:"from"`
	To      string                 `json:"to"`
	Records []models.CheckInRecord `json:"records"`
	Days    []status.DaySummary    `json:"days"`
}

// History returns check-ins between fromDate and toDate (YYYY-MM-DD, both
// inclusive) in the user's timezone.
func (s *Service) History(ctx context.Context, userID, fromDate, toDate string) (*History, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidArgument)
	}
	loc := s.Location(ctx, userID)

	from, err := time.ParseInLocation(status.DateLayout, fromDate, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: from date: %w", ErrInvalidArgument, err)
	}
	to, err := time.ParseInLocation(status.DateLayout, toDate, loc)
	if err != nil {
		return nil, fmt.Errorf("%w: to date: %w", ErrInvalidArgument, err)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: to date before from date", ErrInvalidArgument)
	}

	var records []models.CheckInRecord
	err = s.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		records, err = s.store.CheckIns(ctx, userID, from, to.AddDate(0, 0, 1))
		return err
	})
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Timestamp = records[i].Timestamp.In(loc)
	}

	if records == nil {
		records = []models.CheckInRecord{}
	}
	return &History{
		From:    fromDate,
		To:      toDate,
		Records: records,
		Days:    status.DailySummaries(records, loc),
	}, nil
}
