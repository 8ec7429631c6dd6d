package domain

import (
	"errors"
	"fmt"
	"strings"
)

const (
	ReasonEmptyCart           = "empty_cart"
	ReasonInvalidQuantity     = "invalid_quantity"
	ReasonFractionalQuantity  = "fractional_quantity"
	ReasonInvalidPrice        = "invalid_price"
	ReasonInvalidKind         = "invalid_kind"
	ReasonCatalogItemMissing  = "catalog_item_missing"
	ReasonCatalogItemInactive = "catalog_item_inactive"
	ReasonInvalidDiscount     = "invalid_discount"
	ReasonInvalidTip          = "invalid_tip"
	ReasonNoPayments          = "no_payments"
	ReasonInvalidPayment      = "invalid_payment_amount"
	ReasonInvalidMethod       = "invalid_payment_method"
	ReasonPaymentShort        = "payment_short"
	ReasonOverpaymentTooLarge = "overpayment_exceeds_last_payment"
	ReasonInvalidDate         = "invalid_date"
	ReasonInvalidAmount       = "invalid_amount"
	ReasonInvalidMovement     = "invalid_movement_kind"
	ReasonCartLineMissing     = "cart_line_missing"
	ReasonInvalidRequest      = "invalid_request"
	ReasonSequenceRewind      = "sequence_rewind"

	ReasonInsufficientStock = "insufficient_stock"
	ReasonDayFinalized      = "day_finalized"

	ReasonPersistence = "persistence_failed"
)

// ValidationError rejects input before anything is mutated.
type ValidationError struct {
	Reason  string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func Invalid(reason string, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

type ConflictError struct {
	Reason     string
	Message    string
	Shortfalls []StockShortfall
}

func (e *ConflictError) Error() string {
	return e.Message
}

func InsufficientStock(shortfalls []StockShortfall) *ConflictError {
	parts := make([]string, 0, len(shortfalls))
	for _, s := range shortfalls {
		parts = append(parts, fmt.Sprintf("%s short by %d", s.ProductID, s.Missing))
	}
	return &ConflictError{
		Reason:     ReasonInsufficientStock,
		Message:    "insufficient stock: " + strings.Join(parts, ", "),
		Shortfalls: shortfalls,
	}
}

// PersistenceError means the store failed and the attempt was rolled back.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ReasonOf returns the stable reason code carried by err, or "" when err is
// not part of the checkout error taxonomy.
func ReasonOf(err error) string {
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Reason
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict.Reason
	}
	var persistence *PersistenceError
	if errors.As(err, &persistence) {
		return ReasonPersistence
	}
	return ""
}
