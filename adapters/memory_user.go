package adapters

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/satriahrh/voiceassist/domain/entities"
)

// ErrUserNotFound is returned by GetByID for unknown IDs
var ErrUserNotFound = errors.New("user not found")

// MemoryUserRepository is an in-memory implementation of UserRepository.
// Contents are lost on restart.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	users  map[int]*entities.User // id -> user mapping
	nextID int
}

// NewMemoryUserRepository creates a repository holding the given users.
// IDs of later users continue after the highest seeded ID.
func NewMemoryUserRepository(seed ...entities.User) *MemoryUserRepository {
	m := &MemoryUserRepository{
		users:  make(map[int]*entities.User),
		nextID: 1,
	}
	for _, u := range seed {
		user := u
		if user.CreatedAt.IsZero() {
			user.CreatedAt = time.Now()
		}
		m.users[user.ID] = &user
		if user.ID >= m.nextID {
			m.nextID = user.ID + 1
		}
	}
	return m
}

// DefaultUsers are the accounts the service starts with
func DefaultUsers() []entities.User {
	return []entities.User{
		{ID: 1, Name: "Alice"},
		{ID: 2, Name: "Bob"},
	}
}

// List returns all users ordered by ID
func (m *MemoryUserRepository) List(ctx context.Context) ([]*entities.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	users := make([]*entities.User, 0, len(m.users))
	for _, u := range m.users {
		copied := *u
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// Create implements UserRepository interface. The user's ID is assigned here.
func (m *MemoryUserRepository) Create(ctx context.Context, user *entities.User) error {
	if user == nil {
		return errors.New("user cannot be nil")
	}
	if err := user.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	user.ID = m.nextID
	user.Name = strings.TrimSpace(user.Name)
	user.CreatedAt = time.Now()
	m.nextID++

	stored := *user
	m.users[user.ID] = &stored
	return nil
}

// GetByID implements UserRepository interface
func (m *MemoryUserRepository) GetByID(ctx context.Context, id int) (*entities.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, exists := m.users[id]
	if !exists {
		return nil, fmt.Errorf("%w: %d", ErrUserNotFound, id)
	}
	copied := *user
	return &copied, nil
}
