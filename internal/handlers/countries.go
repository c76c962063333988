package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/worldview-app/apiserver/internal/countries"
)

// CountriesHandler proxies the public country API through the response cache.
type CountriesHandler struct {
	source CountrySource
	logger *slog.Logger
}

func NewCountriesHandler(source CountrySource, logger *slog.Logger) *CountriesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CountriesHandler{source: source, logger: logger}
}

// CountriesRouter registers the public country routes.
func CountriesRouter(r chi.Router, source CountrySource, logger *slog.Logger) {
	handler := NewCountriesHandler(source, logger)

	r.Get("/", handler.List)
	r.Get("/languages", handler.Languages)
	r.Get("/name/{name}", handler.ByName)
	r.Get("/region/{region}", handler.ByRegion)
	r.Get("/alpha/{code}", handler.ByCode)
}

// List returns all countries narrowed by the search, region and language
// query parameters.
func (h *CountriesHandler) List(w http.ResponseWriter, r *http.Request) {
	all, err := h.source.All(r.Context())
	if err != nil {
		writeCountryError(w, r, h.logger, err)
		return
	}

	query := r.URL.Query()
	filtered, err := countries.Filter(all, countries.FilterOptions{
		Search:   query.Get("search"),
		Region:   query.Get("region"),
		Language: query.Get("language"),
	})
	if err != nil {
		writeCountryError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, filtered)
}

func (h *CountriesHandler) Languages(w http.ResponseWriter, r *http.Request) {
	all, err := h.source.All(r.Context())
	if err != nil {
		writeCountryError(w, r, h.logger, err)
		return
	}
	languages, err := countries.Languages(all)
	if err != nil {
		writeCountryError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, LanguagesResponse{Languages: languages})
}

func (h *CountriesHandler) ByName(w http.ResponseWriter, r *http.Request) {
	payload, err := h.source.ByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeCountryError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *CountriesHandler) ByRegion(w http.ResponseWriter, r *http.Request) {
	payload, err := h.source.ByRegion(r.Context(), chi.URLParam(r, "region"))
	if err != nil {
		writeCountryError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *CountriesHandler) ByCode(w http.ResponseWriter, r *http.Request) {
	payload, err := h.source.ByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeCountryError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func writeCountryError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, countries.ErrMissingParam):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, countries.ErrUpstream):
		logger.WarnContext(r.Context(), "country upstream failed", slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "country data is temporarily unavailable, please retry")
	default:
		logger.ErrorContext(r.Context(), "country request failed", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to load countries")
	}
}

type LanguagesResponse struct {
	Languages []string `json:"languages"`
}
