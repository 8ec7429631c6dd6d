package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/store"
)

func (s *Service) GetSale(ctx context.Context, idOrReceipt string) (domain.Sale, error) {
	idOrReceipt = strings.TrimSpace(idOrReceipt)
	if idOrReceipt == "" {
		return domain.Sale{}, domain.Invalid(domain.ReasonInvalidRequest, "sale id or receipt number is required")
	}
	sale, err := s.repo.GetSale(ctx, idOrReceipt)
	if err != nil {
		return domain.Sale{}, persistence("read sale", err)
	}
	return *sale, nil
}

// ReceiptSequence reports the sequence for a register. A register that has
// never issued a number reports the values its first number will use.
func (s *Service) ReceiptSequence(ctx context.Context, registerID string) (domain.ReceiptSequence, error) {
	scope := s.sequencer.Scope(registerID)
	seq, err := s.repo.GetReceiptSequence(ctx, scope)
	if errors.Is(err, store.ErrNotFound) {
		return s.sequencer.Initial(scope), nil
	}
	if err != nil {
		return domain.ReceiptSequence{}, persistence("read receipt sequence", err)
	}
	return *seq, nil
}

func (s *Service) ConfigureReceiptSequence(ctx context.Context, req domain.ReceiptSequenceUpdate) (domain.ReceiptSequence, error) {
	if req.Next < 1 {
		return domain.ReceiptSequence{}, domain.Invalid(domain.ReasonInvalidRequest, "next must be at least 1")
	}
	scope := s.sequencer.Scope(req.RegisterID)
	prefix := strings.TrimSpace(req.Prefix)
	if prefix == "" {
		current, err := s.ReceiptSequence(ctx, scope)
		if err != nil {
			return domain.ReceiptSequence{}, err
		}
		prefix = current.Prefix
	}
	seq, err := s.repo.ConfigureReceiptSequence(ctx, domain.ReceiptSequence{
		Scope:  scope,
		Prefix: prefix,
		Next:   req.Next,
	})
	if errors.Is(err, store.ErrSequenceRewind) {
		return domain.ReceiptSequence{}, domain.Invalid(domain.ReasonSequenceRewind, "receipt sequence %s cannot move below its current value", scope)
	}
	if err != nil {
		return domain.ReceiptSequence{}, persistence("configure receipt sequence", err)
	}
	s.logAudit(ctx, "receipt_sequence_configure", "receipt_sequence", scope, fmt.Sprintf("prefix=%s,next=%d", seq.Prefix, seq.Next))
	return *seq, nil
}

func (s *Service) SetStock(ctx context.Context, productID string, qty int64) error {
	productID = strings.TrimSpace(productID)
	if productID == "" || qty < 0 {
		return domain.Invalid(domain.ReasonInvalidQuantity, "product id and a non-negative quantity are required")
	}
	if err := s.repo.SetStock(ctx, productID, qty); err != nil {
		return persistence("set stock", err)
	}
	s.logAudit(ctx, "stock_set", "product", productID, fmt.Sprintf("qty=%d", qty))
	return nil
}
