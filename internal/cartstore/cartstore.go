// Package cartstore holds open carts between requests, keyed by session.
package cartstore

import (
	"context"
	"sync"

	"salonpos/backend/internal/domain"
)

type Store interface {
	Get(ctx context.Context, session string) (*domain.Cart, bool, error)
	Save(ctx context.Context, cart domain.Cart) error
	Delete(ctx context.Context, session string) error
}

type Memory struct {
	mu    sync.Mutex
	carts map[string]domain.Cart
}

func NewMemory() *Memory {
	return &Memory{carts: make(map[string]domain.Cart)}
}

func (m *Memory) Get(_ context.Context, session string) (*domain.Cart, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart, ok := m.carts[session]
	if !ok {
		return nil, false, nil
	}
	cart.Lines = append([]domain.CartLine(nil), cart.Lines...)
	return &cart, true, nil
}

func (m *Memory) Save(_ context.Context, cart domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cart.Lines = append([]domain.CartLine(nil), cart.Lines...)
	m.carts[cart.Session] = cart
	return nil
}

func (m *Memory) Delete(_ context.Context, session string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.carts, session)
	return nil
}
