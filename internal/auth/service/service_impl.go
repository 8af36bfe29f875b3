package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/switchboard/internal/auth/domain"
	"github.com/smallbiznis/switchboard/internal/auth/password"
	"github.com/smallbiznis/switchboard/internal/auth/session"
	"github.com/smallbiznis/switchboard/internal/clock"
	"github.com/smallbiznis/switchboard/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	sessionTokenBytes = 32
	defaultSessionTTL = 7 * 24 * time.Hour
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Cfg         config.Config
	Repo        domain.Repository
	SessionRepo domain.SessionRepository
	GenID       *snowflake.Node
	Clock       clock.Clock
	Cache       session.Cache `optional:"true"`
}

type Service struct {
	log         *zap.Logger
	repo        domain.Repository
	sessionRepo domain.SessionRepository
	genID       *snowflake.Node
	clock       clock.Clock
	cache       session.Cache
	sessionTTL  time.Duration
}

func New(p Params) domain.Service {
	ttl := p.Cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	cache := p.Cache
	if cache == nil {
		cache = session.NoopCache{}
	}
	return &Service{
		log:         p.Log.Named("auth.service"),
		repo:        p.Repo,
		sessionRepo: p.SessionRepo,
		genID:       p.GenID,
		clock:       p.Clock,
		cache:       cache,
		sessionTTL:  ttl,
	}
}

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if err := password.Validate(req.Password); err != nil {
		return nil, domain.ErrWeakPassword
	}

	role := strings.TrimSpace(req.GlobalRole)
	if role == "" {
		role = domain.GlobalRoleUser
	}
	if !domain.IsValidGlobalRole(role) {
		return nil, domain.ErrInvalidGlobalRole
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = defaultDisplayName(email)
	}

	now := s.clock.Now()
	user := &domain.User{
		ID:           s.genID.Generate(),
		Email:        email,
		PasswordHash: hashed,
		DisplayName:  displayName,
		GlobalRole:   role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("user created", zap.String("user_id", user.ID.String()), zap.String("global_role", role))
	return user, nil
}

func (s *Service) GetUser(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil || req.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if !password.Verify(req.Password, user.PasswordHash) {
		s.log.Info("login rejected", zap.String("user_id", user.ID.String()))
		return nil, domain.ErrInvalidCredentials
	}

	rawToken, err := newSessionToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	sess := &domain.Session{
		ID:               s.genID.Generate(),
		UserID:           user.ID,
		SessionTokenHash: HashToken(rawToken),
		UserAgent:        strings.TrimSpace(req.UserAgent),
		IPAddress:        strings.TrimSpace(req.IPAddress),
		ExpiresAt:        now.Add(s.sessionTTL),
		CreatedAt:        now,
		LastSeenAt:       &now,
	}
	if err := s.sessionRepo.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	return &domain.LoginResult{
		Token:     rawToken,
		ExpiresAt: sess.ExpiresAt,
		User:      user,
	}, nil
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return domain.ErrInvalidSession
	}

	hash := HashToken(token)
	sess, err := s.sessionRepo.GetSessionByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return domain.ErrInvalidSession
		}
		return err
	}

	s.cache.Delete(ctx, hash)
	if err := s.sessionRepo.RevokeSession(ctx, sess.ID, s.clock.Now()); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// Authenticate resolves a bearer token to a live session.
// Cached sessions skip the last_seen_at write.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Session, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, domain.ErrInvalidSession
	}

	now := s.clock.Now()
	hash := HashToken(token)
	if cached, ok := s.cache.Get(ctx, hash); ok {
		if err := checkLive(cached, now); err != nil {
			s.cache.Delete(ctx, hash)
			return nil, err
		}
		return cached, nil
	}

	sess, err := s.sessionRepo.GetSessionByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil, domain.ErrInvalidSession
		}
		return nil, err
	}
	if err := checkLive(sess, now); err != nil {
		return nil, err
	}

	if err := s.sessionRepo.UpdateLastSeen(ctx, sess.ID, now); err != nil {
		return nil, err
	}
	sess.LastSeenAt = &now
	s.cache.Set(ctx, sess, now)
	return sess, nil
}

func checkLive(sess *domain.Session, now time.Time) error {
	if sess.RevokedAt != nil {
		return domain.ErrSessionRevoked
	}
	if now.After(sess.ExpiresAt) {
		return domain.ErrSessionExpired
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func defaultDisplayName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if strings.TrimSpace(local) != "" {
		return strings.TrimSpace(local)
	}
	return email
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken is the sha256 hex digest stored in sessions.session_token_hash.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
