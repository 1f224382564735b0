package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vignesh-goutham/coinledger/pkg/apperrors"
	"github.com/vignesh-goutham/coinledger/pkg/types"
	"github.com/vignesh-goutham/coinledger/pkg/validation"
)

// Caller-facing messages of the lookup and create operations.
const (
	MsgMissingParameter = `Missing required parameter: either "id" or "email" must be provided`
	MsgInvalidEmail     = "Invalid email format"
	MsgNameRequired     = "Name is required"
	MsgEmailRequired    = "Email is required"
	MsgEmailExists      = "Email already exists"
	MsgInternal         = "Internal server error"
	MsgDatabaseFailed   = "Database operation failed"
)

// LookupQuery selects a user by id or by email. Presence of a parameter
// counts, not its value; id wins when both are present.
type LookupQuery struct {
	ID       string
	HasID    bool
	Email    string
	HasEmail bool
}

// CreateRequest is the body accepted by the create endpoint.
type CreateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Service implements the lookup and create operations.
type Service struct {
	repo   *Repository
	logger *zap.Logger
	newID  func() string
}

// NewService builds a service over repo with uuid ids.
func NewService(repo *Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
		newID:  func() string { return uuid.New().String() },
	}
}

// Lookup returns one user matching q.
func (s *Service) Lookup(ctx context.Context, q LookupQuery) (types.User, error) {
	switch {
	case q.HasID:
		user, found, err := s.repo.GetByID(ctx, q.ID)
		if err != nil {
			return types.User{}, apperrors.Store(MsgInternal, err)
		}
		if !found {
			return types.User{}, apperrors.NotFound(fmt.Sprintf("User with ID %s not found", q.ID))
		}
		return user, nil

	case q.HasEmail:
		if !validation.IsValidEmail(q.Email) {
			return types.User{}, apperrors.Input(MsgInvalidEmail)
		}
		matches, err := s.repo.FindByEmail(ctx, q.Email)
		if err != nil {
			return types.User{}, apperrors.Store(MsgInternal, err)
		}
		if len(matches) == 0 {
			return types.User{}, apperrors.NotFound(fmt.Sprintf("User with email %s not found", q.Email))
		}
		// Emails are not unique at the store level; any match will do.
		return matches[0], nil

	default:
		return types.User{}, apperrors.Input(MsgMissingParameter)
	}
}

// Create validates req and stores a new user under a fresh UUID.
//
// The duplicate check is a read followed by a separate write. A failing
// check is logged and creation goes ahead, and two concurrent requests with
// the same email can both pass it. Only the guarded repository mode closes
// that window.
func (s *Service) Create(ctx context.Context, req CreateRequest) (types.User, error) {
	if req.Name == "" {
		return types.User{}, apperrors.Input(MsgNameRequired)
	}
	if req.Email == "" {
		return types.User{}, apperrors.Input(MsgEmailRequired)
	}
	if !validation.IsValidEmail(req.Email) {
		return types.User{}, apperrors.Input(MsgInvalidEmail)
	}

	exists, err := s.repo.EmailExists(ctx, req.Email)
	switch {
	case err != nil:
		s.logger.Warn("error checking existing email, creating anyway",
			zap.String("email", req.Email), zap.Error(err))
	case exists:
		return types.User{}, apperrors.Conflict(MsgEmailExists)
	}

	user := types.User{ID: s.newID(), Name: req.Name, Email: req.Email}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return types.User{}, apperrors.Conflict(MsgEmailExists)
		}
		return types.User{}, apperrors.Store(MsgDatabaseFailed, err)
	}

	s.logger.Info("user created", zap.String("id", user.ID))
	return user, nil
}
