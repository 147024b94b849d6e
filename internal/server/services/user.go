package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vitaria/catalog/internal/common"
	"github.com/vitaria/catalog/internal/dbx"
	"github.com/vitaria/catalog/internal/logging"
	"github.com/vitaria/catalog/internal/media"
	"github.com/vitaria/catalog/internal/server/auth"
	"github.com/vitaria/catalog/internal/server/config"
	"github.com/vitaria/catalog/internal/server/models"
	"github.com/vitaria/catalog/internal/server/reconcile"
	"github.com/vitaria/catalog/internal/server/repositories/repomanager"
	"github.com/vitaria/catalog/internal/server/repositories/users"
)

// MinPasswordLength bounds passwords accepted by CreateUser and EnsureAdmin.
const MinPasswordLength = 8

// AccessToken is a signed session token.
type AccessToken struct {
	Token     string
	ExpiresAt time.Time
	User      *models.User
}

// UserService handles sign-in and staff account management.
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	reconciler                  *reconcile.Reconciler
	authz                       auth.Authorizer
	audit                       auditor
	log                         logging.Logger
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, r *reconcile.Reconciler, authz auth.Authorizer, cfg *config.Config, log logging.Logger) *UserService {
	log = log.With("service", "users")
	return &UserService{
		db:                          db,
		repomanager:                 m,
		reconciler:                  r,
		authz:                       authz,
		audit:                       newAuditor(db, m, log),
		log:                         log,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

// dummyHash is compared against when the email is unknown, so both paths
// spend one bcrypt comparison.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)
	return h
})

// Login verifies the credentials and returns a signed access token.
func (s *UserService) Login(ctx context.Context, email, password string) (*AccessToken, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
			return nil, common.ErrorUnauthorized
		}
		return nil, failure(ctx, s.log, "load user", err)
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, common.ErrorUnauthorized
	}

	id := auth.Identity{UserID: user.ID, Email: user.Email, Role: user.Role}
	token, err := auth.GenerateToken(id, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return nil, failure(ctx, s.log, "sign token", err)
	}
	return &AccessToken{
		Token:     token,
		ExpiresAt: time.Now().Add(s.accessTokenValidityDuration),
		User:      user,
	}, nil
}

// EnsureAdmin creates the first admin account when no users exist yet. It
// reports whether an account was created.
func (s *UserService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	if email == "" {
		return false, nil
	}
	repo := s.repomanager.Users(s.db)
	n, err := repo.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if n > 0 {
		return false, nil
	}
	if _, err := s.createUser(ctx, repo, email, "Administrator", models.RoleAdmin, password); err != nil {
		return false, err
	}
	s.log.Info(ctx, "admin account created", "email", email)
	return true, nil
}

// CreateUser adds a staff account. Only admins may call it.
func (s *UserService) CreateUser(ctx context.Context, email, name string, role models.Role, password string) (*models.User, error) {
	if _, err := s.authz.RequireRole(ctx, models.RoleAdmin); err != nil {
		return nil, err
	}
	u, err := s.createUser(ctx, s.repomanager.Users(s.db), email, name, role, password)
	if err != nil {
		return nil, failure(ctx, s.log, "create user", err)
	}
	return u, nil
}

func (s *UserService) createUser(ctx context.Context, repo users.Repository, email, name string, role models.Role, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, &media.ValidationError{Constraint: constraintEmail, Message: "invalid email address"}
	}
	if !role.Valid() {
		return nil, &media.ValidationError{Constraint: media.ConstraintRole, Message: fmt.Sprintf("unknown role %q", role)}
	}
	if len(password) < MinPasswordLength {
		return nil, &media.ValidationError{Constraint: constraintPassword, Message: fmt.Sprintf("password must be at least %d characters", MinPasswordLength)}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return repo.Create(ctx, &models.User{Email: email, Name: strings.TrimSpace(name), Role: role, PasswordHash: hash})
}

// DeleteUser removes another user's account and their avatar object.
func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	id, err := s.authz.RequireRole(ctx, models.RoleAdmin)
	if err != nil {
		return err
	}
	if userID == id.UserID {
		return common.ErrorForbidden
	}

	var email string
	err = s.reconciler.DeleteEntity(ctx, userID, func(ctx context.Context) ([]string, error) {
		var avatar string
		err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			repo := s.repomanager.Users(tx)
			var err error
			if avatar, err = repo.LoadAvatarKey(ctx, userID); err != nil {
				return err
			}
			u, err := repo.GetByID(ctx, userID)
			if err != nil {
				return err
			}
			email = u.Email
			return repo.Delete(ctx, userID)
		})
		if err != nil {
			return nil, err
		}
		return media.CompactKeys(avatar), nil
	})
	if err != nil {
		return failure(ctx, s.log, "delete user", err)
	}

	s.audit.record(ctx, id, models.ActivityLog{
		Action: models.ActionUserDeleted, Entity: "user", EntityID: userID, EntityTitle: email,
		Severity: models.SeverityWarning,
	})
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
