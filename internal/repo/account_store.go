package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ABTechWorks/TinyLittleHelper/internal/auth"
	"github.com/ABTechWorks/TinyLittleHelper/internal/models"
)

type AccountStore struct{ db *gorm.DB }

func NewAccountStore(db *gorm.DB) *AccountStore { return &AccountStore{db: db} }

var _ auth.Accounts = (*AccountStore)(nil)

func (s *AccountStore) Create(ctx context.Context, a *models.Account) error {
	err := s.db.WithContext(ctx).Create(a).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return auth.ErrAccountExists
	}
	return err
}

func (s *AccountStore) GetByID(ctx context.Context, id uint) (*models.Account, error) {
	var a models.Account
	err := s.db.WithContext(ctx).First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auth.ErrUnknownAccount
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AccountStore) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	var a models.Account
	err := s.db.WithContext(ctx).Where("username = ?", username).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auth.ErrUnknownAccount
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *AccountStore) GetByAgentToken(ctx context.Context, token string) (*models.Account, error) {
	var a models.Account
	err := s.db.WithContext(ctx).Where("agent_token = ?", token).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auth.ErrUnknownAccount
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}
