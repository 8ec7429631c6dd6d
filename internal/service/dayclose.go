package service

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/pricing"
	"salonpos/backend/internal/reconcile"
)

// PreviewDayClose aggregates the date without writing anything. Sales still
// committing while it runs may or may not be included.
func (s *Service) PreviewDayClose(ctx context.Context, rawDate string) (domain.DayCloseReport, error) {
	date, err := s.resolveDate(rawDate)
	if err != nil {
		return domain.DayCloseReport{}, err
	}
	snap, err := s.repo.DaySnapshot(ctx, date)
	if err != nil {
		return domain.DayCloseReport{}, persistence("read day snapshot", err)
	}
	return reconcile.Report(snap, decimal.NullDecimal{}), nil
}

// FinalizeDayClose closes the date with the counted cash. Finalizing a date
// again recomputes from current data and replaces the earlier close.
func (s *Service) FinalizeDayClose(ctx context.Context, req domain.FinalizeRequest) (domain.FinalizeResponse, error) {
	date, err := s.resolveDate(req.Date)
	if err != nil {
		return domain.FinalizeResponse{}, err
	}
	if req.CountedCash.IsNegative() {
		return domain.FinalizeResponse{}, domain.Invalid(domain.ReasonInvalidAmount, "counted cash must not be negative")
	}

	counted := pricing.Round2(req.CountedCash)
	actor := actorOrSystem(ctx).Username
	at := s.now().UTC()

	snap, closed, err := s.repo.FinalizeDay(ctx, date, func(snap domain.DaySnapshot) (domain.DayClose, error) {
		return reconcile.Close(snap, counted, actor, at), nil
	})
	if err != nil {
		return domain.FinalizeResponse{}, persistence("finalize day", err)
	}

	snap.Close = closed
	report := reconcile.Report(snap, decimal.NewNullDecimal(counted))

	log.Info().
		Str("date", date).
		Str("expected_cash", closed.ExpectedCash.String()).
		Str("counted_cash", closed.CountedCash.String()).
		Str("difference", closed.Difference.String()).
		Str("actor", actor).
		Msg("day finalized")
	s.logAudit(ctx, "day_close_finalize", "day_close", date, "difference="+closed.Difference.String())

	return domain.FinalizeResponse{OK: true, Difference: closed.Difference, Report: report}, nil
}
