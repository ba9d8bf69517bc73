package directory

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Directory. It backs tests and local runs without
// the owning subsystems.
type Memory struct {
	mu        sync.RWMutex
	companies map[string]Company
	services  map[string]Service
	staff     map[string]Staff
	products  map[string]Product
}

func NewMemory() *Memory {
	return &Memory{
		companies: map[string]Company{},
		services:  map[string]Service{},
		staff:     map[string]Staff{},
		products:  map[string]Product{},
	}
}

func (m *Memory) PutCompany(c Company) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.companies[c.ID] = c
	return m
}

func (m *Memory) PutService(s Service) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.services[s.ID] = s
	return m
}

func (m *Memory) PutStaff(s Staff) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staff[s.ID] = s
	return m
}

func (m *Memory) PutProduct(p Product) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
	return m
}

func (m *Memory) GetCompany(_ context.Context, id string) (Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.companies[id]
	if !ok {
		return Company{}, ErrNotFound
	}
	return c, nil
}

func (m *Memory) ListCompaniesByOwner(_ context.Context, ownerID string) ([]Company, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Company
	for _, c := range m.companies {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetService(_ context.Context, id string) (Service, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.services[id]
	if !ok {
		return Service{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) FindStaffByUserID(_ context.Context, userID string) ([]Staff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Staff
	for _, s := range m.staff {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) GetStaff(_ context.Context, id string) (Staff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.staff[id]
	if !ok {
		return Staff{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) GetProduct(_ context.Context, id string) (Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

var _ Directory = (*Memory)(nil)
