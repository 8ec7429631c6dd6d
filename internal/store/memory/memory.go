package memory

import (
	"context"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"salonpos/backend/internal/domain"
	"salonpos/backend/internal/store"
)

// Store keeps everything in process. Each mutation runs as one critical
// section under mu, which is what makes checkout and sequencing atomic here.
type Store struct {
	mu            sync.RWMutex
	catalog       map[domain.CatalogRef]domain.CatalogItem
	stock         map[string]int64
	sequences     map[string]domain.ReceiptSequence
	salesByID     map[string]*domain.Sale
	saleByReceipt map[string]string
	saleOrder     []string
	ledger        map[string]domain.CashLedgerEntry
	movements     map[string][]domain.CashMovement
	expenses      []domain.Expense
	closes        map[string]domain.DayClose
	auditLogs     []domain.AuditLog
	users         map[string]domain.UserAccount
	commitFault   error
}

func New() *Store {
	return &Store{
		catalog:       make(map[domain.CatalogRef]domain.CatalogItem),
		stock:         make(map[string]int64),
		sequences:     make(map[string]domain.ReceiptSequence),
		salesByID:     make(map[string]*domain.Sale),
		saleByReceipt: make(map[string]string),
		ledger:        make(map[string]domain.CashLedgerEntry),
		movements:     make(map[string][]domain.CashMovement),
		closes:        make(map[string]domain.DayClose),
		auditLogs:     make([]domain.AuditLog, 0, 128),
		users:         make(map[string]domain.UserAccount),
	}
}

// NewSeeded returns a store with a small salon catalog, stock of 120 per
// product and dev users for local runs.
func NewSeeded() *Store {
	s := New()
	for _, item := range seedCatalog() {
		s.PutCatalogItem(item)
		if item.Kind == domain.KindProduct && item.TracksStock {
			s.stock[item.ID] = 120
		}
	}
	s.users = seedUsers()
	return s
}

func seedCatalog() []domain.CatalogItem {
	price := decimal.RequireFromString
	return []domain.CatalogItem{
		{Kind: domain.KindService, ID: "cut", Name: "Haarschnitt", UnitPrice: price("48.00"), TaxCode: "CH-7.7", Active: true},
		{Kind: domain.KindService, ID: "color", Name: "Coloration", UnitPrice: price("95.00"), TaxCode: "CH-7.7", Active: true},
		{Kind: domain.KindService, ID: "beard", Name: "Bartpflege", UnitPrice: price("25.00"), TaxCode: "CH-7.7", Active: true},
		{Kind: domain.KindService, ID: "perm", Name: "Dauerwelle", UnitPrice: price("120.00"), TaxCode: "CH-7.7", Active: false},
		{Kind: domain.KindProduct, ID: "shampoo", Name: "Shampoo 250ml", UnitPrice: price("19.90"), TaxCode: "CH-7.7", Active: true, TracksStock: true},
		{Kind: domain.KindProduct, ID: "conditioner", Name: "Conditioner 200ml", UnitPrice: price("22.50"), TaxCode: "CH-7.7", Active: true, TracksStock: true},
		{Kind: domain.KindProduct, ID: "wax", Name: "Styling Wax", UnitPrice: price("14.00"), TaxCode: "CH-7.7", Active: true, TracksStock: true},
		{Kind: domain.KindProduct, ID: "voucher-card", Name: "Geschenkkarte", UnitPrice: price("10.00"), TaxCode: "CH-0", Active: true},
	}
}

// seedUsers builds dev accounts from SEED_MANAGER_PASSWORD and
// SEED_CASHIER_PASSWORD, falling back to fixed dev passwords with a warning.
func seedUsers() map[string]domain.UserAccount {
	managerPwd := envOr("SEED_MANAGER_PASSWORD", "manager123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_MANAGER_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Warn().Msg("memory store: using default dev credentials; set SEED_MANAGER_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"manager", managerPwd, domain.RoleManager},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatal().Err(err).Str("username", u.username).Msg("memory store: hash seed password")
		}
		users[u.username] = domain.UserAccount{
			Username:     u.username,
			PasswordHash: string(hash),
			Role:         u.role,
			Active:       true,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) PutCatalogItem(item domain.CatalogItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog[item.Ref()] = item
}

func (s *Store) PutUser(user domain.UserAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Username] = user
}

// FailNextCommit makes the next CommitSale fail with err after its stock
// check, without writing anything.
func (s *Store) FailNextCommit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitFault = err
}

func (s *Store) LookupCatalog(_ context.Context, refs []domain.CatalogRef) (map[domain.CatalogRef]domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.CatalogRef]domain.CatalogItem, len(refs))
	for _, ref := range refs {
		if item, ok := s.catalog[ref]; ok {
			out[ref] = item
		}
	}
	return out, nil
}

func (s *Store) ListCatalog(_ context.Context) ([]domain.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.CatalogItem, 0, len(s.catalog))
	for _, item := range s.catalog {
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.CatalogItem) int {
		if a.Kind != b.Kind {
			return int(a.Kind) - int(b.Kind)
		}
		return strings.Compare(a.ID, b.ID)
	})
	return items, nil
}

func (s *Store) GetStockLevels(_ context.Context, productIDs []string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int64, len(productIDs))
	for _, id := range productIDs {
		if qty, ok := s.stock[id]; ok {
			out[id] = qty
		}
	}
	return out, nil
}

func (s *Store) SetStock(_ context.Context, productID string, qty int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.catalog[domain.CatalogRef{Kind: domain.KindProduct, ID: productID}]
	if !ok {
		return store.ErrNotFound
	}
	if !item.TracksStock {
		item.TracksStock = true
		s.catalog[item.Ref()] = item
	}
	s.stock[productID] = qty
	return nil
}

func (s *Store) NextReceiptNumber(_ context.Context, scope string, initial domain.ReceiptSequence) (domain.ReceiptNumber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.sequences[scope]
	if !ok {
		seq = initial
		seq.Scope = scope
	}
	issued := domain.ReceiptNumber{Prefix: seq.Prefix, Value: seq.Next}
	seq.Next++
	seq.UpdatedAt = time.Now().UTC()
	s.sequences[scope] = seq
	return issued, nil
}

func (s *Store) GetReceiptSequence(_ context.Context, scope string) (*domain.ReceiptSequence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seq, ok := s.sequences[scope]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &seq, nil
}

func (s *Store) ConfigureReceiptSequence(_ context.Context, seq domain.ReceiptSequence) (*domain.ReceiptSequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sequences[seq.Scope]; ok {
		if seq.Next < existing.Next {
			return nil, store.ErrSequenceRewind
		}
		if seq.Prefix == "" {
			seq.Prefix = existing.Prefix
		}
	}
	seq.UpdatedAt = time.Now().UTC()
	s.sequences[seq.Scope] = seq
	return &seq, nil
}

func (s *Store) CommitSale(_ context.Context, sale domain.Sale, demand map[string]int64) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if shortfalls := s.shortfallsLocked(demand); len(shortfalls) > 0 {
		return nil, domain.InsufficientStock(shortfalls)
	}
	if s.commitFault != nil {
		err := s.commitFault
		s.commitFault = nil
		return nil, err
	}
	if _, exists := s.salesByID[sale.ID]; exists {
		return nil, store.ErrDuplicate
	}
	if _, exists := s.saleByReceipt[sale.ReceiptNumber]; exists {
		return nil, store.ErrDuplicate
	}

	stored := cloneSale(sale)
	s.salesByID[sale.ID] = &stored
	s.saleByReceipt[sale.ReceiptNumber] = sale.ID
	s.saleOrder = append(s.saleOrder, sale.ID)

	for productID, qty := range demand {
		onHand, tracked := s.stock[productID]
		if !tracked {
			continue
		}
		s.stock[productID] = max(onHand-qty, 0)
	}

	out := cloneSale(stored)
	return &out, nil
}

func (s *Store) shortfallsLocked(demand map[string]int64) []domain.StockShortfall {
	var shortfalls []domain.StockShortfall
	for productID, qty := range demand {
		onHand, tracked := s.stock[productID]
		if !tracked || qty <= onHand {
			continue
		}
		shortfalls = append(shortfalls, domain.StockShortfall{
			ProductID: productID,
			Requested: qty,
			Available: onHand,
			Missing:   qty - onHand,
		})
	}
	slices.SortFunc(shortfalls, func(a, b domain.StockShortfall) int {
		return strings.Compare(a.ProductID, b.ProductID)
	})
	return shortfalls
}

func (s *Store) GetSale(_ context.Context, idOrReceipt string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[idOrReceipt]
	if !ok {
		id, byReceipt := s.saleByReceipt[idOrReceipt]
		if !byReceipt {
			return nil, store.ErrNotFound
		}
		sale = s.salesByID[id]
	}
	out := cloneSale(*sale)
	return &out, nil
}

func (s *Store) GetCashLedger(_ context.Context, date string) (domain.CashLedgerEntry, []domain.CashMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	movements := slices.Clone(s.movements[date])
	if movements == nil {
		movements = []domain.CashMovement{}
	}
	return s.ledgerLocked(date), movements, nil
}

func (s *Store) ledgerLocked(date string) domain.CashLedgerEntry {
	entry, ok := s.ledger[date]
	if !ok {
		return domain.CashLedgerEntry{Date: date}
	}
	return entry
}

func (s *Store) SetOpeningFloat(_ context.Context, date string, amount decimal.Decimal, actor string) (*domain.CashLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, closed := s.closes[date]; closed {
		return nil, store.ErrDayFinalized
	}
	entry := s.ledgerLocked(date)
	entry.OpeningFloat = amount
	entry.UpdatedAt = time.Now().UTC()
	entry.UpdatedBy = actor
	s.ledger[date] = entry
	return &entry, nil
}

func (s *Store) AppendCashMovement(_ context.Context, movement domain.CashMovement) (*domain.CashLedgerEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, closed := s.closes[movement.Date]; closed {
		return nil, store.ErrDayFinalized
	}
	entry := s.ledgerLocked(movement.Date)
	switch movement.Kind {
	case domain.MovementCashIn:
		entry.CashIns = entry.CashIns.Add(movement.Amount)
	case domain.MovementCashOut:
		entry.CashOuts = entry.CashOuts.Add(movement.Amount)
	default:
		return nil, domain.Invalid(domain.ReasonInvalidMovement, "unknown movement kind %q", movement.Kind)
	}
	entry.UpdatedAt = movement.CreatedAt
	entry.UpdatedBy = movement.Actor
	s.ledger[movement.Date] = entry
	s.movements[movement.Date] = append(s.movements[movement.Date], movement)
	return &entry, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expenses = append(s.expenses, expense)
	return &expense, nil
}

func (s *Store) ListExpenses(_ context.Context, from string, to string) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Expense, 0)
	for _, e := range s.expenses {
		if e.Date >= from && e.Date <= to {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Expense) int {
		return strings.Compare(a.Date, b.Date)
	})
	return out, nil
}

func (s *Store) DaySnapshot(_ context.Context, date string) (domain.DaySnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(date), nil
}

func (s *Store) snapshotLocked(date string) domain.DaySnapshot {
	snap := domain.DaySnapshot{
		Date:             date,
		PaymentsByMethod: make(map[domain.PaymentMethod]decimal.Decimal),
		ExpensesByMethod: make(map[domain.PaymentMethod]decimal.Decimal),
		Ledger:           s.ledgerLocked(date),
	}
	for _, id := range s.saleOrder {
		sale := s.salesByID[id]
		if sale.BusinessDate != date {
			continue
		}
		snap.SaleCount++
		snap.Subtotal = snap.Subtotal.Add(sale.Subtotal)
		snap.DiscountTotal = snap.DiscountTotal.Add(sale.DiscountTotal)
		snap.TaxTotal = snap.TaxTotal.Add(sale.TaxTotal)
		snap.TipTotal = snap.TipTotal.Add(sale.Tip)
		snap.NetTotal = snap.NetTotal.Add(sale.Total)
		for _, p := range sale.Payments {
			snap.PaymentsByMethod[p.Method] = snap.PaymentsByMethod[p.Method].Add(p.Amount)
		}
	}
	for _, e := range s.expenses {
		if e.Date == date {
			snap.ExpensesByMethod[e.Method] = snap.ExpensesByMethod[e.Method].Add(e.Amount)
		}
	}
	if closed, ok := s.closes[date]; ok {
		closed := cloneDayClose(closed)
		snap.Close = &closed
	}
	return snap
}

func (s *Store) FinalizeDay(_ context.Context, date string, fn store.FinalizeFunc) (domain.DaySnapshot, *domain.DayClose, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshotLocked(date)
	closed, err := fn(snap)
	if err != nil {
		return domain.DaySnapshot{}, nil, err
	}
	closed.Date = date
	s.closes[date] = cloneDayClose(closed)

	entry := s.ledgerLocked(date)
	entry.CountedCash = decimal.NewNullDecimal(closed.CountedCash)
	entry.UpdatedAt = closed.FinalizedAt
	entry.UpdatedBy = closed.FinalizedBy
	s.ledger[date] = entry

	return snap, &closed, nil
}

func (s *Store) GetDayClose(_ context.Context, date string) (*domain.DayClose, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	closed, ok := s.closes[date]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := cloneDayClose(closed)
	return &out, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.auditLogs) {
		limit = len(s.auditLogs)
	}
	out := make([]domain.AuditLog, 0, limit)
	for i := len(s.auditLogs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.auditLogs[i])
	}
	return out, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func cloneSale(sale domain.Sale) domain.Sale {
	sale.Lines = slices.Clone(sale.Lines)
	sale.Payments = slices.Clone(sale.Payments)
	return sale
}

func cloneDayClose(closed domain.DayClose) domain.DayClose {
	methods := make(map[domain.PaymentMethod]decimal.Decimal, len(closed.PaymentsByMethod))
	for k, v := range closed.PaymentsByMethod {
		methods[k] = v
	}
	closed.PaymentsByMethod = methods
	return closed
}
