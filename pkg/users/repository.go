package users

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/vignesh-goutham/coinledger/pkg/dynamo"
	"github.com/vignesh-goutham/coinledger/pkg/types"
)

const (
	emailAttr   = "email"
	guardPrefix = "email#"
)

// ErrEmailTaken is returned by Create in guarded mode when the email is
// already reserved.
var ErrEmailTaken = errors.New("email already reserved")

// Repository reads and writes user records.
type Repository struct {
	table      *dynamo.Table
	emailIndex string
	guarded    bool
	logger     *zap.Logger
}

// NewRepository binds a repository to the users table. When guarded is true
// Create reserves the email atomically next to the user record.
func NewRepository(table *dynamo.Table, emailIndex string, guarded bool, logger *zap.Logger) *Repository {
	return &Repository{
		table:      table,
		emailIndex: emailIndex,
		guarded:    guarded,
		logger:     logger,
	}
}

// GetByID returns the user stored under id. Email reservation rows share
// the table but are not users and are reported as not found.
func (r *Repository) GetByID(ctx context.Context, id string) (types.User, bool, error) {
	if strings.HasPrefix(id, guardPrefix) {
		return types.User{}, false, nil
	}
	item, found, err := r.table.Get(ctx, r.table.StringKey(id))
	if err != nil || !found {
		return types.User{}, false, err
	}
	if _, isUser := item[emailAttr]; !isUser {
		return types.User{}, false, nil
	}
	user, err := dynamo.Decode[types.User](item)
	return user, err == nil, err
}

// FindByEmail returns every user with email. It queries the email index and,
// if DynamoDB rejects that query, scans the whole table and filters in
// memory.
func (r *Repository) FindByEmail(ctx context.Context, email string) ([]types.User, error) {
	items, err := r.table.QueryIndex(ctx, r.emailIndex, emailAttr, email)
	if dynamo.IsValidation(err) {
		r.logger.Warn("email index query rejected, falling back to scan",
			zap.String("index", r.emailIndex), zap.Error(err))
		all, scanErr := r.table.ScanAll(ctx)
		if scanErr != nil {
			return nil, scanErr
		}
		items, err = filterByEmail(all, email), nil
	}
	if err != nil {
		return nil, err
	}
	return dynamo.DecodeAll[types.User](items)
}

// EmailExists reports whether some user already has email. The scan fallback
// only looks at the first page, so on a large table without the index a
// duplicate can go unnoticed.
func (r *Repository) EmailExists(ctx context.Context, email string) (bool, error) {
	items, err := r.table.QueryIndex(ctx, r.emailIndex, emailAttr, email)
	if dynamo.IsValidation(err) {
		page, scanErr := r.table.ScanPage(ctx, nil)
		if scanErr != nil {
			return false, scanErr
		}
		return len(filterByEmail(page.Items, email)) > 0, nil
	}
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

// Create stores user. In unguarded mode this is a plain upsert and nothing
// stops two concurrent creates with the same email from both landing. In
// guarded mode the user and an email reservation are written in one
// transaction and ErrEmailTaken is returned if the reservation exists.
func (r *Repository) Create(ctx context.Context, user types.User) error {
	item, err := dynamo.Encode(user)
	if err != nil {
		return err
	}
	if !r.guarded {
		return r.table.Put(ctx, item)
	}

	guard, err := dynamo.Encode(types.EmailGuard{ID: GuardID(user.Email), UserID: user.ID})
	if err != nil {
		return err
	}
	err = r.table.PutAllIfAbsent(ctx, item, guard)
	if errors.Is(err, dynamo.ErrConditionFailed) {
		return errors.Join(ErrEmailTaken, err)
	}
	return err
}

// GuardID is the key of the reservation row for email.
func GuardID(email string) string {
	return guardPrefix + strings.ToLower(email)
}

func filterByEmail(items []dynamo.Item, email string) []dynamo.Item {
	var out []dynamo.Item
	for _, item := range items {
		if dynamo.StringAttr(item, emailAttr) == email {
			out = append(out, item)
		}
	}
	return out
}
