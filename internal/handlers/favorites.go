package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/worldview-app/apiserver/internal/countries"
	"github.com/worldview-app/apiserver/internal/services"
)

// CountrySource reads country data from the upstream API.
type CountrySource interface {
	All(ctx context.Context) (json.RawMessage, error)
	ByName(ctx context.Context, name string) (json.RawMessage, error)
	ByRegion(ctx context.Context, region string) (json.RawMessage, error)
	ByCode(ctx context.Context, code string) (json.RawMessage, error)
}

// FavoritesHandler serves the authenticated favorites endpoints.
type FavoritesHandler struct {
	favorites *services.FavoritesService
	countries CountrySource
	logger    *slog.Logger
}

func NewFavoritesHandler(favorites *services.FavoritesService, source CountrySource, logger *slog.Logger) *FavoritesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &FavoritesHandler{favorites: favorites, countries: source, logger: logger}
}

// FavoritesRouter registers favorites routes. Every route requires a session.
func FavoritesRouter(r chi.Router, favorites *services.FavoritesService, source CountrySource, session func(http.Handler) http.Handler, logger *slog.Logger) {
	handler := NewFavoritesHandler(favorites, source, logger)

	r.Group(func(r chi.Router) {
		r.Use(session)
		r.Get("/", handler.List)
		r.Post("/add", handler.Add)
		r.Post("/remove", handler.Remove)
		r.Get("/countries", handler.Countries)
	})
}

func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	accountID, err := accountIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	favorites, err := h.favorites.List(r.Context(), accountID)
	if err != nil {
		h.writeFavoritesError(w, r, accountID, err)
		return
	}
	writeJSON(w, http.StatusOK, FavoritesResponse{Favorites: favorites})
}

func (h *FavoritesHandler) Add(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.favorites.Add)
}

func (h *FavoritesHandler) Remove(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.favorites.Remove)
}

// Countries returns the full country records for the account's favorites.
func (h *FavoritesHandler) Countries(w http.ResponseWriter, r *http.Request) {
	accountID, err := accountIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	favorites, err := h.favorites.List(r.Context(), accountID)
	if err != nil {
		h.writeFavoritesError(w, r, accountID, err)
		return
	}
	if len(favorites) == 0 {
		writeJSON(w, http.StatusOK, json.RawMessage(`[]`))
		return
	}

	all, err := h.countries.All(r.Context())
	if err != nil {
		writeCountryError(w, r, h.logger, err)
		return
	}
	selected, err := countries.SelectByCodes(all, favorites)
	if err != nil {
		writeCountryError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, selected)
}

type favoritesMutation func(ctx context.Context, accountID int, code string) ([]string, error)

func (h *FavoritesHandler) mutate(w http.ResponseWriter, r *http.Request, apply favoritesMutation) {
	accountID, err := accountIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req FavoriteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "country code required")
		return
	}

	favorites, err := apply(r.Context(), accountID, req.CountryCode)
	if err != nil {
		h.writeFavoritesError(w, r, accountID, err)
		return
	}
	writeJSON(w, http.StatusOK, FavoritesResponse{Favorites: favorites})
}

func (h *FavoritesHandler) writeFavoritesError(w http.ResponseWriter, r *http.Request, accountID int, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		writeError(w, http.StatusBadRequest, "country code required")
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	default:
		h.logger.ErrorContext(r.Context(), "favorites request failed", slog.Int("account_id", accountID), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to update favorites")
	}
}

type FavoriteRequest struct {
	CountryCode string `json:"countryCode" validate:"required"`
}

type FavoritesResponse struct {
	Favorites []string `json:"favorites"`
}
