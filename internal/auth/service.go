package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ABTechWorks/TinyLittleHelper/internal/models"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrUnknownAccount = errors.New("unknown account")
	ErrAccountExists  = errors.New("account already exists")
)

// SessionCookie — имя cookie дашборда (как в исходном HTML-фронте).
const SessionCookie = "session"

// AgentTokenHeader — заголовок агентского токена для register/heartbeat.
const AgentTokenHeader = "X-Agent-Token"

type Accounts interface {
	Create(ctx context.Context, a *models.Account) error
	GetByID(ctx context.Context, id uint) (*models.Account, error)
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetByAgentToken(ctx context.Context, token string) (*models.Account, error)
}

type Sessions interface {
	Create(ctx context.Context, s *models.Session) error
	Get(ctx context.Context, token string) (*models.Session, error)
	Delete(ctx context.Context, token string) error
}

// Service — единая capability "сессия/токен → аккаунт".
// Повторяющийся паттерн "достань session, найди аккаунт" живёт только здесь.
type Service struct {
	accounts Accounts
	sessions Sessions
	ttl      time.Duration
}

func New(accounts Accounts, sessions Sessions, sessionTTL time.Duration) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &Service{accounts: accounts, sessions: sessions, ttl: sessionTTL}
}

func (s *Service) Signup(ctx context.Context, username, email, password string) (*models.Account, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, errors.New("username and password required")
	}
	if _, err := s.accounts.GetByUsername(ctx, username); err == nil {
		return nil, ErrAccountExists
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	a := &models.Account{
		Username:     username,
		Email:        strings.TrimSpace(email),
		PasswordHash: hash,
		AgentToken:   uuid.NewString(),
	}
	if err := s.accounts.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Login проверяет пароль и заводит сессию; возвращает её токен.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	a, err := s.accounts.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUnknownAccount) {
			return "", ErrUnauthorized
		}
		return "", err
	}
	if !VerifyPassword(a.PasswordHash, password) {
		return "", ErrUnauthorized
	}
	now := time.Now().UTC()
	sess := &models.Session{
		Token:     uuid.NewString(),
		AccountID: a.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return "", err
	}
	return sess.Token, nil
}

// Account — карточка аккаунта по id (для дашборда).
func (s *Service) Account(ctx context.Context, id uint) (*models.Account, error) {
	return s.accounts.GetByID(ctx, id)
}

func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

func (s *Service) ResolveSession(ctx context.Context, token string) (uint, error) {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return 0, err
	}
	return sess.AccountID, nil
}

func (s *Service) ResolveToken(ctx context.Context, token string) (uint, error) {
	a, err := s.accounts.GetByAgentToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUnknownAccount) {
			return 0, ErrUnauthorized
		}
		return 0, err
	}
	return a.ID, nil
}

// ResolveRequest — токен агента в заголовке, иначе cookie сессии.
func (s *Service) ResolveRequest(ctx context.Context, r *http.Request) (uint, error) {
	if tok := strings.TrimSpace(r.Header.Get(AgentTokenHeader)); tok != "" {
		return s.ResolveToken(ctx, tok)
	}
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		return s.ResolveSession(ctx, c.Value)
	}
	return 0, ErrUnauthorized
}
