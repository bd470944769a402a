package registrations

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/emberfest/backend/internal/models"
)

// Memory implements Store in process memory with the same conditional-write
// semantics as the PostgreSQL repository. Used as the test double for the
// lifecycle service and its race tests.
type Memory struct {
	mu     sync.Mutex
	regs   map[uuid.UUID]*models.Registration
	emails map[string]uuid.UUID
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		regs:   make(map[uuid.UUID]*models.Registration),
		emails: make(map[string]uuid.UUID),
	}
}

var _ Store = (*Memory)(nil)

// ConfirmPaid inserts reg as paid or transitions an existing unpaid row, all
// under one lock so concurrent confirmations serialize like the single-SQL
// version does.
func (m *Memory) ConfirmPaid(_ context.Context, reg *models.Registration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.regs[reg.ID]; ok {
		if existing.PaymentStatus == models.PaymentStatusPaid {
			return false, nil
		}
		existing.PaymentStatus = models.PaymentStatusPaid
		existing.UpdatedAt = time.Now()
		reg.CreatedAt = existing.CreatedAt
		reg.UpdatedAt = existing.UpdatedAt
		reg.PaymentStatus = models.PaymentStatusPaid
		return true, nil
	}
	if owner, ok := m.emails[reg.Email]; ok && owner != reg.ID {
		return false, ErrDuplicateEmail
	}

	now := time.Now()
	stored := *reg
	stored.PaymentStatus = models.PaymentStatusPaid
	stored.CreatedAt = now
	stored.UpdatedAt = now
	m.regs[reg.ID] = &stored
	m.emails[reg.Email] = reg.ID

	reg.PaymentStatus = stored.PaymentStatus
	reg.CreatedAt = stored.CreatedAt
	reg.UpdatedAt = stored.UpdatedAt
	return true, nil
}

// CheckIn marks the registration checked-in exactly once.
func (m *Memory) CheckIn(_ context.Context, id uuid.UUID, at time.Time) (*models.Registration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.regs[id]
	if !ok {
		return nil, false, ErrNotFound
	}
	if reg.CheckedIn {
		cp := *reg
		return &cp, true, nil
	}
	reg.CheckedIn = true
	checkedAt := at
	reg.CheckedInAt = &checkedAt
	reg.UpdatedAt = at
	cp := *reg
	return &cp, false, nil
}

// GetByID returns a copy of the registration or ErrNotFound.
func (m *Memory) GetByID(_ context.Context, id uuid.UUID) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.regs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *reg
	return &cp, nil
}

// List returns all registrations, newest first.
func (m *Memory) List(_ context.Context) ([]models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := make([]models.Registration, 0, len(m.regs))
	for _, reg := range m.regs {
		list = append(list, *reg)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
	return list, nil
}

// Count reports the number of stored registrations.
func (m *Memory) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.regs)
}
