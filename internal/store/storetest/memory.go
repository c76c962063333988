// Package storetest provides an in-memory account repository for tests.
package storetest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/worldview-app/apiserver/internal/store"
	"github.com/worldview-app/apiserver/types"
)

// Repository mirrors store.AccountRepository in memory. Calls counts every
// method invocation so tests can assert that no storage was touched.
type Repository struct {
	mu       sync.Mutex
	nextID   int
	accounts map[int]types.Account

	Calls atomic.Int32
	// Err, when set, is returned by every method.
	Err error
}

func NewRepository() *Repository {
	return &Repository{nextID: 1, accounts: make(map[int]types.Account)}
}

func (r *Repository) GetByID(_ context.Context, id int) (types.Account, error) {
	r.Calls.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return types.Account{}, r.Err
	}
	account, ok := r.accounts[id]
	if !ok {
		return types.Account{}, store.ErrNotFound
	}
	return clone(account), nil
}

func (r *Repository) GetByEmail(_ context.Context, email string) (types.Account, error) {
	r.Calls.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return types.Account{}, r.Err
	}
	for _, account := range r.accounts {
		if account.Email == email {
			return clone(account), nil
		}
	}
	return types.Account{}, store.ErrNotFound
}

func (r *Repository) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	r.Calls.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return false, r.Err
	}
	return r.taken(username, email), nil
}

func (r *Repository) Create(_ context.Context, account types.Account) (types.Account, error) {
	r.Calls.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return types.Account{}, r.Err
	}
	if r.taken(account.Username, account.Email) {
		return types.Account{}, store.ErrConflict
	}
	now := time.Now().UTC()
	account.ID = r.nextID
	r.nextID++
	account.CreatedAt = now
	account.UpdatedAt = now
	if account.Favorites == nil {
		account.Favorites = []string{}
	}
	r.accounts[account.ID] = clone(account)
	return account, nil
}

func (r *Repository) ListFavorites(ctx context.Context, id int) ([]string, error) {
	account, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return account.Favorites, nil
}

func (r *Repository) AddFavorite(_ context.Context, id int, code string) ([]string, error) {
	return r.update(id, func(account *types.Account) {
		if !account.HasFavorite(code) {
			account.Favorites = append(account.Favorites, code)
		}
	})
}

func (r *Repository) RemoveFavorite(_ context.Context, id int, code string) ([]string, error) {
	return r.update(id, func(account *types.Account) {
		kept := account.Favorites[:0]
		for _, existing := range account.Favorites {
			if existing != code {
				kept = append(kept, existing)
			}
		}
		account.Favorites = kept
	})
}

// Delete drops an account, simulating one that vanished after a token
// was issued.
func (r *Repository) Delete(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.accounts, id)
}

// Len returns the number of stored accounts.
func (r *Repository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

func (r *Repository) update(id int, mutate func(*types.Account)) ([]string, error) {
	r.Calls.Add(1)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	account, ok := r.accounts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	mutate(&account)
	account.UpdatedAt = time.Now().UTC()
	r.accounts[id] = clone(account)
	return clone(account).Favorites, nil
}

func (r *Repository) taken(username, email string) bool {
	for _, account := range r.accounts {
		if account.Username == username || account.Email == email {
			return true
		}
	}
	return false
}

func clone(account types.Account) types.Account {
	favorites := make([]string, len(account.Favorites))
	copy(favorites, account.Favorites)
	account.Favorites = favorites
	return account
}
