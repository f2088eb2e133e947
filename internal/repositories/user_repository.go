package repositories

import (
	"errors"

	"github.com/yuehan04/pawconnect/backend/internal/apperrors"
	"github.com/yuehan04/pawconnect/backend/internal/models"
	"gorm.io/gorm"
)

// UserRepository is the user directory consulted when resolving poster and
// counterparty identities into embedded snapshots. Account management is
// owned elsewhere; the board only ever looks users up by display name.
type UserRepository interface {
	GetUserByUserName(userName string) (*models.User, error)
}

// PostgresUserRepository implements UserRepository for PostgreSQL.
type PostgresUserRepository struct {
	db *gorm.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository.
func NewPostgresUserRepository(db *gorm.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

// CreateUser creates a new user in PostgreSQL.
func (r *PostgresUserRepository) CreateUser(user *models.User) error {
	if err := r.db.Create(user).Error; err != nil {
		return apperrors.Storage(err)
	}
	return nil
}

// GetUserByID retrieves a user by ID.
func (r *PostgresUserRepository) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user")
		}
		return nil, apperrors.Storage(err)
	}
	return &user, nil
}

// GetUserByUserName retrieves a user by display name.
func (r *PostgresUserRepository) GetUserByUserName(userName string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("user_name = ?", userName).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user")
		}
		return nil, apperrors.Storage(err)
	}
	return &user, nil
}
