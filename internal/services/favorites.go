package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/worldview-app/apiserver/types"
)

// FavoritesRepository defines the atomic favorites operations. Add and
// remove must each be a single read-modify-write at the storage layer.
type FavoritesRepository interface {
	ListFavorites(ctx context.Context, accountID int) ([]string, error)
	AddFavorite(ctx context.Context, accountID int, code string) ([]string, error)
	RemoveFavorite(ctx context.Context, accountID int, code string) ([]string, error)
}

// FavoritesService manages the per-account favorites set.
type FavoritesService struct {
	repo   FavoritesRepository
	events emitter
}

func NewFavoritesService(repo FavoritesRepository, publisher EventPublisher, logger *slog.Logger) *FavoritesService {
	return &FavoritesService{
		repo:   repo,
		events: newEmitter(publisher, logger),
	}
}

// NormalizeCode trims and upper-cases a country code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *FavoritesService) List(ctx context.Context, accountID int) ([]string, error) {
	return s.repo.ListFavorites(ctx, accountID)
}

// Add inserts code into the favorites set. Adding an existing code leaves
// the set unchanged.
func (s *FavoritesService) Add(ctx context.Context, accountID int, code string) ([]string, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("country code is required: %w", ErrValidation)
	}

	favorites, err := s.repo.AddFavorite(ctx, accountID, code)
	if err != nil {
		return nil, err
	}

	s.events.emit(ctx, types.Event{
		Type:        types.EventFavoriteAdded,
		AccountID:   accountID,
		CountryCode: code,
		Favorites:   favorites,
	})
	return favorites, nil
}

// Remove deletes code from the favorites set. Removing an absent code is
// not an error.
func (s *FavoritesService) Remove(ctx context.Context, accountID int, code string) ([]string, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, fmt.Errorf("country code is required: %w", ErrValidation)
	}

	favorites, err := s.repo.RemoveFavorite(ctx, accountID, code)
	if err != nil {
		return nil, err
	}

	s.events.emit(ctx, types.Event{
		Type:        types.EventFavoriteRemoved,
		AccountID:   accountID,
		CountryCode: code,
		Favorites:   favorites,
	})
	return favorites, nil
}
