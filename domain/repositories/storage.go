package repositories

import (
	"context"

	"github.com/satriahrh/voiceassist/domain/entities"
)

// UserRepository defines data access methods for users
type UserRepository interface {
	List(ctx context.Context) ([]*entities.User, error)
	Create(ctx context.Context, user *entities.User) error
	GetByID(ctx context.Context, id int) (*entities.User, error)
}
