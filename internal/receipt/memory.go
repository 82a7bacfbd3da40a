package receipt

import (
	"fmt"
	"sync"
)

// MemoryDB implements DB with in-process maps. Contents are lost on exit.
type MemoryDB struct {
	mu          sync.RWMutex
	receipts    map[string]*Receipt
	users       map[string]*User
	departments map[string]*Department
	seq         uint64
}

// NewMemoryDB creates an empty MemoryDB
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		receipts:    make(map[string]*Receipt),
		users:       make(map[string]*User),
		departments: make(map[string]*Department),
	}
}

func (m *MemoryDB) SaveReceipt(receipt *Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receipts[receipt.ID] = receipt.Clone()
	return nil
}

func (m *MemoryDB) GetReceipt(id string) (*Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.receipts[id]
	if !ok {
		return nil, fmt.Errorf("receipt %s: %w", id, ErrNotFound)
	}
	return r.Clone(), nil
}

func (m *MemoryDB) ListReceipts() ([]*Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Receipt, 0, len(m.receipts))
	for _, r := range m.receipts {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *MemoryDB) DeleteReceipt(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.receipts, id)
	return nil
}

func (m *MemoryDB) NextSequence() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq, nil
}

func (m *MemoryDB) SaveUser(user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := *user
	m.users[user.ID] = &u
	return nil
}

func (m *MemoryDB) GetUser(id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	c := *u
	return &c, nil
}

func (m *MemoryDB) ListUsers() ([]*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*User, 0, len(m.users))
	for _, u := range m.users {
		c := *u
		out = append(out, &c)
	}
	return out, nil
}

func (m *MemoryDB) DeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
	return nil
}

func (m *MemoryDB) SaveDepartment(department *Department) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := *department
	d.EmployeeIDs = nil
	m.departments[department.ID] = &d
	return nil
}

func (m *MemoryDB) GetDepartment(id string) (*Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.departments[id]
	if !ok {
		return nil, fmt.Errorf("department %s: %w", id, ErrNotFound)
	}
	c := *d
	return &c, nil
}

func (m *MemoryDB) ListDepartments() ([]*Department, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Department, 0, len(m.departments))
	for _, d := range m.departments {
		c := *d
		out = append(out, &c)
	}
	return out, nil
}

func (m *MemoryDB) DeleteDepartment(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.departments, id)
	return nil
}

func (m *MemoryDB) Close() error {
	return nil
}
