package adapters

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/satriahrh/voiceassist/domain/entities"
	"github.com/satriahrh/voiceassist/domain/repositories"
)

var _ repositories.UserRepository = &MemoryUserRepository{}

func TestMemoryUserRepositorySeed(t *testing.T) {
	repo := NewMemoryUserRepository(DefaultUsers()...)

	users, err := repo.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("Expected 2 users, got %d", len(users))
	}
	if users[0].ID != 1 || users[0].Name != "Alice" || users[1].ID != 2 || users[1].Name != "Bob" {
		t.Errorf("Unexpected seed %+v %+v", users[0], users[1])
	}
}

func TestMemoryUserRepositoryCreate(t *testing.T) {
	repo := NewMemoryUserRepository(DefaultUsers()...)
	ctx := context.Background()

	user := &entities.User{Name: "  Carol "}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if user.ID != 3 {
		t.Errorf("Expected ID 3, got %d", user.ID)
	}

	got, err := repo.GetByID(ctx, 3)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Name != "Carol" {
		t.Errorf("Expected trimmed name Carol, got %q", got.Name)
	}

	// returned users are copies
	got.Name = "Mallory"
	again, _ := repo.GetByID(ctx, 3)
	if again.Name != "Carol" {
		t.Error("Mutating a returned user changed the repository")
	}
}

func TestMemoryUserRepositoryCreateInvalid(t *testing.T) {
	repo := NewMemoryUserRepository()
	if err := repo.Create(context.Background(), &entities.User{Name: "   "}); err == nil {
		t.Error("Expected error for blank name")
	}
	if err := repo.Create(context.Background(), nil); err == nil {
		t.Error("Expected error for nil user")
	}
}

func TestMemoryUserRepositoryNotFound(t *testing.T) {
	repo := NewMemoryUserRepository()
	if _, err := repo.GetByID(context.Background(), 42); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("Expected ErrUserNotFound, got %v", err)
	}
}

func TestMemoryUserRepositoryConcurrentCreate(t *testing.T) {
	repo := NewMemoryUserRepository()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			repo.Create(context.Background(), &entities.User{Name: "user"})
		}()
	}
	wg.Wait()

	users, _ := repo.List(context.Background())
	if len(users) != 50 {
		t.Fatalf("Expected 50 users, got %d", len(users))
	}
	for i, u := range users {
		if u.ID != i+1 {
			t.Errorf("Expected sequential IDs, got %d at %d", u.ID, i)
		}
	}
}
