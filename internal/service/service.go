package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"salonpos/backend/internal/cartstore"
	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/pricing"
	"salonpos/backend/internal/sequence"
	"salonpos/backend/internal/store"
	"salonpos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	TaxRates pricing.TaxTable
	Pricing  pricing.Options
	// Location decides which calendar date a sale belongs to.
	Location *time.Location
	Now      func() time.Time
}

type Service struct {
	repo      store.Repository
	carts     cartstore.Store
	sequencer *sequence.Sequencer
	rates     pricing.TaxTable
	pricing   pricing.Options
	loc       *time.Location
	now       func() time.Time
	cartLocks sessionLocks
}

func New(repo store.Repository, carts cartstore.Store, sequencer *sequence.Sequencer, opts Options) *Service {
	if opts.TaxRates == nil {
		opts.TaxRates = pricing.DefaultTaxTable()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if carts == nil {
		carts = cartstore.NewMemory()
	}

	return &Service{
		repo:      repo,
		carts:     carts,
		sequencer: sequencer,
		rates:     opts.TaxRates,
		pricing:   opts.Pricing,
		loc:       opts.Location,
		now:       opts.Now,
	}
}

func (s *Service) ListCatalog(ctx context.Context) ([]domain.CatalogItem, error) {
	items, err := s.repo.ListCatalog(ctx)
	if err != nil {
		return nil, persistence("list catalog", err)
	}
	return items, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	logs, err := s.repo.ListAuditLogs(ctx, limit)
	if err != nil {
		return nil, persistence("list audit logs", err)
	}
	return logs, nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor := actorOrSystem(ctx)
	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now().UTC(),
	}); err != nil {
		log.Warn().Err(err).
			Str("action", action).
			Str("entity", entityType+"/"+entityID).
			Msg("audit log write failed")
	}
}

func actorOrSystem(ctx context.Context) domain.Actor {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Username == "" {
		return domain.Actor{Username: "system", Role: "system"}
	}
	return actor
}

func (s *Service) today() string {
	return s.now().In(s.loc).Format(domain.DateLayout)
}

// resolveDate normalizes a YYYY-MM-DD date; empty means today.
func (s *Service) resolveDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.today(), nil
	}
	parsed, err := time.ParseInLocation(domain.DateLayout, raw, s.loc)
	if err != nil {
		return "", domain.Invalid(domain.ReasonInvalidDate, "date %q must be YYYY-MM-DD", raw)
	}
	return parsed.Format(domain.DateLayout), nil
}

// persistence passes taxonomy errors and ErrNotFound through and wraps
// anything else from the store as a PersistenceError.
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	var validation *domain.ValidationError
	var conflict *domain.ConflictError
	var failed *domain.PersistenceError
	switch {
	case errors.As(err, &validation), errors.As(err, &conflict), errors.As(err, &failed):
		return err
	case errors.Is(err, store.ErrNotFound):
		return err
	case errors.Is(err, store.ErrDayFinalized):
		return &domain.ConflictError{
			Reason:  domain.ReasonDayFinalized,
			Message: fmt.Sprintf("%s: day already finalized", op),
		}
	}
	return &domain.PersistenceError{Op: op, Err: err}
}
