package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"salonpos/backend/internal/cartstore"
	"salonpos/backend/internal/config"
	"salonpos/backend/internal/pricing"
	"salonpos/backend/internal/sequence"
	"salonpos/backend/internal/service"
	"salonpos/backend/internal/store/memory"
)

func memoryOpener(t *testing.T) opener {
	t.Helper()
	repo := memory.NewSeeded()
	svc := service.New(repo, cartstore.NewMemory(), sequence.New(repo, "main", "KS-", 10001), service.Options{
		TaxRates: pricing.DefaultTaxTable(),
		Location: time.UTC,
	})
	return func(ctx context.Context, cfg config.Config) (*backend, error) {
		return &backend{svc: svc, close: func() error { return nil }}, nil
	}
}

func execute(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(open)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLedgerAndDayCloseCommands(t *testing.T) {
	open := memoryOpener(t)

	if _, err := execute(t, open, "ledger", "float", "--date", "2026-03-02", "--amount", "150"); err != nil {
		t.Fatalf("ledger float: %v", err)
	}
	if _, err := execute(t, open, "ledger", "move", "--date", "2026-03-02", "--kind", "out", "--amount", "20.50", "--note", "change run"); err != nil {
		t.Fatalf("ledger move: %v", err)
	}

	out, err := execute(t, open, "dayclose", "preview", "--date", "2026-03-02")
	if err != nil {
		t.Fatalf("dayclose preview: %v", err)
	}
	var report struct {
		ExpectedCash decimal.Decimal `json:"expected_cash"`
		Finalized    bool            `json:"finalized"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode preview %q: %v", out, err)
	}
	if !report.ExpectedCash.Equal(decimal.RequireFromString("129.50")) || report.Finalized {
		t.Fatalf("unexpected preview: %+v", report)
	}

	out, err = execute(t, open, "dayclose", "finalize", "--date", "2026-03-02", "--counted", "130")
	if err != nil {
		t.Fatalf("dayclose finalize: %v", err)
	}
	var finalized struct {
		Difference decimal.Decimal `json:"difference"`
	}
	if err := json.Unmarshal([]byte(out), &finalized); err != nil {
		t.Fatalf("decode finalize: %v", err)
	}
	if !finalized.Difference.Equal(decimal.RequireFromString("0.50")) {
		t.Fatalf("expected difference 0.50, got %s", finalized.Difference)
	}

	if _, err := execute(t, open, "ledger", "move", "--date", "2026-03-02", "--kind", "in", "--amount", "5"); err == nil {
		t.Fatalf("expected movement on a finalized day to fail")
	}
}

func TestCountedMustBeDecimal(t *testing.T) {
	_, err := execute(t, memoryOpener(t), "dayclose", "finalize", "--date", "2026-03-02", "--counted", "abc")
	if err == nil || !strings.Contains(err.Error(), "--counted") {
		t.Fatalf("expected --counted parse error, got %v", err)
	}
}

func TestSequenceCommands(t *testing.T) {
	open := memoryOpener(t)

	out, err := execute(t, open, "sequence", "set", "--register", "till-2", "--prefix", "T2-", "--next", "700")
	if err != nil {
		t.Fatalf("sequence set: %v", err)
	}
	if !strings.Contains(out, `"T2-"`) {
		t.Fatalf("expected prefix in output, got %s", out)
	}

	if _, err := execute(t, open, "sequence", "set", "--register", "till-2", "--next", "10"); err == nil {
		t.Fatalf("expected rewind to be refused")
	}

	out, err = execute(t, open, "sequence", "show", "--register", "till-2")
	if err != nil {
		t.Fatalf("sequence show: %v", err)
	}
	var seq struct {
		Next int64 `json:"next"`
	}
	if err := json.Unmarshal([]byte(out), &seq); err != nil {
		t.Fatalf("decode sequence: %v", err)
	}
	if seq.Next != 700 {
		t.Fatalf("expected next 700, got %d", seq.Next)
	}
}

func TestAdminCommandsNeedPostgres(t *testing.T) {
	open := memoryOpener(t)
	if _, err := execute(t, open, "migrate"); err == nil || !strings.Contains(err.Error(), "postgres") {
		t.Fatalf("expected migrate to require postgres, got %v", err)
	}
	if _, err := execute(t, open, "catalog", "put", "--kind", "service", "--id", "svc-x", "--name", "X", "--price", "10"); err == nil {
		t.Fatalf("expected catalog put to require postgres")
	}
	if _, err := execute(t, open, "user", "put", "--username", "anna", "--password", "secret", "--role", "owner"); err == nil || !strings.Contains(err.Error(), "--role") {
		t.Fatalf("expected role validation error, got %v", err)
	}
}
