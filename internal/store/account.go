package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/worldview-app/apiserver/types"
)

const accountColumns = `id, username, email, password_hash, favorites, created_at, updated_at`

// AccountRepository handles persistence for accounts and their favorites.
type AccountRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db, now: time.Now}
}

func (r *AccountRepository) GetByID(ctx context.Context, id int) (types.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (types.Account, error) {
	const query = `SELECT ` + accountColumns + ` FROM users WHERE email = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, email))
}

// ExistsByUsernameOrEmail reports whether either identifier is taken.
func (r *AccountRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR email = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, username, email).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *AccountRepository) Create(ctx context.Context, account types.Account) (types.Account, error) {
	now := r.now()
	account.CreatedAt = now
	account.UpdatedAt = now
	if account.Favorites == nil {
		account.Favorites = []string{}
	}

	const query = `
		INSERT INTO users (username, email, password_hash, favorites, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		account.Username,
		account.Email,
		account.PasswordHash,
		pq.StringArray(account.Favorites),
		account.CreatedAt,
		account.UpdatedAt,
	).Scan(&account.ID); err != nil {
		if isUniqueViolation(err) {
			return types.Account{}, ErrConflict
		}
		return types.Account{}, err
	}
	return account, nil
}

func (r *AccountRepository) ListFavorites(ctx context.Context, id int) ([]string, error) {
	const query = `SELECT favorites FROM users WHERE id = $1`
	return r.scanFavorites(r.db.QueryRowContext(ctx, query, id))
}

// AddFavorite appends code unless it is already present. The membership
// check and the write happen in one statement, so concurrent calls for the
// same account cannot drop each other's update.
func (r *AccountRepository) AddFavorite(ctx context.Context, id int, code string) ([]string, error) {
	const query = `
		UPDATE users
		SET favorites = CASE WHEN $2::text = ANY(favorites) THEN favorites ELSE array_append(favorites, $2::text) END,
			updated_at = CASE WHEN $2::text = ANY(favorites) THEN updated_at ELSE $3 END
		WHERE id = $1
		RETURNING favorites`
	return r.scanFavorites(r.db.QueryRowContext(ctx, query, id, code, r.now()))
}

// RemoveFavorite drops every occurrence of code in a single statement.
func (r *AccountRepository) RemoveFavorite(ctx context.Context, id int, code string) ([]string, error) {
	const query = `
		UPDATE users
		SET favorites = array_remove(favorites, $2::text),
			updated_at = CASE WHEN $2::text = ANY(favorites) THEN $3 ELSE updated_at END
		WHERE id = $1
		RETURNING favorites`
	return r.scanFavorites(r.db.QueryRowContext(ctx, query, id, code, r.now()))
}

func (r *AccountRepository) scanOne(row *sql.Row) (types.Account, error) {
	var account types.Account
	var favorites pq.StringArray
	err := row.Scan(
		&account.ID,
		&account.Username,
		&account.Email,
		&account.PasswordHash,
		&favorites,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	account.Favorites = normalize(favorites)
	return account, nil
}

func (r *AccountRepository) scanFavorites(row *sql.Row) ([]string, error) {
	var favorites pq.StringArray
	if err := row.Scan(&favorites); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return normalize(favorites), nil
}

func normalize(favorites pq.StringArray) []string {
	if favorites == nil {
		return []string{}
	}
	return []string(favorites)
}
