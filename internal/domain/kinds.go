package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// LineKind is the closed set of things a cart or sale line can reference.
type LineKind uint8

const (
	KindService LineKind = iota + 1
	KindProduct
)

func ParseLineKind(raw string) (LineKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "service":
		return KindService, nil
	case "product":
		return KindProduct, nil
	default:
		return 0, fmt.Errorf("unknown line kind %q", raw)
	}
}

func (k LineKind) String() string {
	switch k {
	case KindService:
		return "service"
	case KindProduct:
		return "product"
	default:
		return fmt.Sprintf("LineKind(%d)", uint8(k))
	}
}

func (k LineKind) Valid() bool {
	return k == KindService || k == KindProduct
}

func (k LineKind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid line kind %d", uint8(k))
	}
	return json.Marshal(k.String())
}

func (k *LineKind) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseLineKind(raw)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k LineKind) Value() (driver.Value, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid line kind %d", uint8(k))
	}
	return k.String(), nil
}

func (k *LineKind) Scan(value any) error {
	switch v := value.(type) {
	case string:
		parsed, err := ParseLineKind(v)
		if err != nil {
			return err
		}
		*k = parsed
	case []byte:
		return k.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into LineKind", value)
	}
	return nil
}

type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "cash"
	PaymentCard    PaymentMethod = "card"
	PaymentWallet  PaymentMethod = "wallet"
	PaymentVoucher PaymentMethod = "voucher"
	PaymentCredit  PaymentMethod = "credit"
	// PaymentOpen records an amount left on account.
	PaymentOpen PaymentMethod = "open"
)

var paymentMethods = []PaymentMethod{PaymentCash, PaymentCard, PaymentWallet, PaymentVoucher, PaymentCredit, PaymentOpen}

func PaymentMethods() []PaymentMethod {
	out := make([]PaymentMethod, len(paymentMethods))
	copy(out, paymentMethods)
	return out
}

func ParsePaymentMethod(raw string) (PaymentMethod, bool) {
	method := PaymentMethod(strings.ToLower(strings.TrimSpace(raw)))
	return method, method.Valid()
}

func (m PaymentMethod) Valid() bool {
	for _, known := range paymentMethods {
		if m == known {
			return true
		}
	}
	return false
}

// ValidForExpense reports whether money can actually leave the business
// through this method; "open" has no meaning for an expense.
func (m PaymentMethod) ValidForExpense() bool {
	return m.Valid() && m != PaymentOpen
}

type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusOpen    PaymentStatus = "open"
)

type MovementKind string

const (
	MovementCashIn  MovementKind = "in"
	MovementCashOut MovementKind = "out"
)

func ParseMovementKind(raw string) (MovementKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "in", "einlage":
		return MovementCashIn, true
	case "out", "entnahme":
		return MovementCashOut, true
	default:
		return "", false
	}
}

const (
	RoleManager = "manager"
	RoleCashier = "cashier"
)
