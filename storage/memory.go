package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"emlak-ingest/models"
)

// MemoryStore keeps documents, tasks and photos in process memory.
// It backs local runs without MONGO_URI and the tests.
type MemoryStore struct {
	mu            sync.RWMutex
	users         []models.User
	customers     map[string][]models.Customer
	rules         map[string][]models.MonitorRule
	properties    map[string]*models.Property
	order         []string
	notifications []models.Notification
	tasks         map[string]models.ImportTask
	photos        map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers:  make(map[string][]models.Customer),
		rules:      make(map[string][]models.MonitorRule),
		properties: make(map[string]*models.Property),
		tasks:      make(map[string]models.ImportTask),
		photos:     make(map[string][]byte),
	}
}

func (m *MemoryStore) AddUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append(m.users, u)
}

func (m *MemoryStore) AddCustomer(c models.Customer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.UserID] = append(m.customers[c.UserID], c)
}

func (m *MemoryStore) AddRule(r models.MonitorRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[r.UserID] = append(m.rules[r.UserID], r)
}

func (m *MemoryStore) ListUsers(_ context.Context) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.User(nil), m.users...), nil
}

func (m *MemoryStore) ListCustomers(_ context.Context, userID string) ([]models.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Customer(nil), m.customers[userID]...), nil
}

func (m *MemoryStore) ListEnabledRules(_ context.Context, userID string) ([]models.MonitorRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.MonitorRule
	for _, r := range m.rules[userID] {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryStore) ListProperties(_ context.Context, userID string) ([]models.Property, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Property
	for _, id := range m.order {
		if p := m.properties[id]; p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *MemoryStore) CreateProperty(_ context.Context, p *models.Property) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Photos == nil {
		p.Photos = []string{}
	}
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	m.properties[p.ID] = &cp
	m.order = append(m.order, p.ID)
	return nil
}

func (m *MemoryStore) UpdatePropertyPhotos(_ context.Context, propertyID string, photos []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.properties[propertyID]
	if !ok {
		return fmt.Errorf("property %s: %w", propertyID, ErrNotFound)
	}
	p.Photos = append([]string{}, photos...)
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// Property returns a copy of a stored property.
func (m *MemoryStore) Property(id string) (models.Property, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.properties[id]
	if !ok {
		return models.Property{}, false
	}
	return *p, true
}

func (m *MemoryStore) CreateNotification(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	m.notifications = append(m.notifications, *n)
	return nil
}

// Notifications returns every notification written so far, oldest first.
func (m *MemoryStore) Notifications() []models.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Notification(nil), m.notifications...)
}

func (m *MemoryStore) SaveTask(_ context.Context, t *models.ImportTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = *t
	return nil
}

func (m *MemoryStore) GetTask(_ context.Context, id string) (*models.ImportTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return &t, nil
}

func (m *MemoryStore) UploadPhoto(_ context.Context, propertyID string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := PhotoKey(propertyID)
	m.photos[key] = append([]byte(nil), data...)
	return "memory://" + key, nil
}

// PhotoCount reports how many photos were uploaded.
func (m *MemoryStore) PhotoCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.photos)
}
