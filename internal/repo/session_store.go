package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ABTechWorks/TinyLittleHelper/internal/auth"
	"github.com/ABTechWorks/TinyLittleHelper/internal/models"
)

type SessionStore struct{ db *gorm.DB }

func NewSessionStore(db *gorm.DB) *SessionStore { return &SessionStore{db: db} }

var _ auth.Sessions = (*SessionStore)(nil)

func (s *SessionStore) Create(ctx context.Context, sess *models.Session) error {
	return s.db.WithContext(ctx).Create(sess).Error
}

func (s *SessionStore) Get(ctx context.Context, token string) (*models.Session, error) {
	var sess models.Session
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auth.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if time.Now().UTC().After(sess.ExpiresAt) {
		// ленивое удаление протухшей сессии
		_ = s.db.WithContext(ctx).Delete(&sess).Error
		return nil, auth.ErrUnauthorized
	}
	return &sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	return s.db.WithContext(ctx).Where("token = ?", token).Delete(&models.Session{}).Error
}
