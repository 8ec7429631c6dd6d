// Package sequence issues receipt numbers.
//
// A number is issued by one atomic read-and-increment in the backing store
// and is never handed out again, even when the sale it was issued for fails
// to commit. Gaps are expected; duplicates are not possible.
package sequence

import (
	"context"
	"fmt"
	"strings"

	"salonpos/backend/internal/domain"
)

const (
	DefaultPrefix = "KS-"
	DefaultStart  = int64(10001)
)

type Store interface {
	NextReceiptNumber(ctx context.Context, scope string, initial domain.ReceiptSequence) (domain.ReceiptNumber, error)
}

type Sequencer struct {
	store        Store
	defaultScope string
	prefix       string
	start        int64
}

// New builds a sequencer. prefix and start only apply to a scope's first use;
// after that the persisted sequence is authoritative.
func New(store Store, defaultScope string, prefix string, start int64) *Sequencer {
	if strings.TrimSpace(defaultScope) == "" {
		defaultScope = "main"
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if start < 1 {
		start = DefaultStart
	}
	return &Sequencer{store: store, defaultScope: defaultScope, prefix: prefix, start: start}
}

func (s *Sequencer) Scope(scope string) string {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return s.defaultScope
	}
	return scope
}

func (s *Sequencer) Initial(scope string) domain.ReceiptSequence {
	return domain.ReceiptSequence{Scope: s.Scope(scope), Prefix: s.prefix, Next: s.start}
}

func (s *Sequencer) Issue(ctx context.Context, scope string) (domain.ReceiptNumber, error) {
	scope = s.Scope(scope)
	n, err := s.store.NextReceiptNumber(ctx, scope, s.Initial(scope))
	if err != nil {
		return domain.ReceiptNumber{}, fmt.Errorf("issue receipt number for %s: %w", scope, err)
	}
	return n, nil
}
