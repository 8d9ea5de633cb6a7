package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tokenapi/tokenapi/internal/middleware"
	"github.com/tokenapi/tokenapi/internal/repository"
	"github.com/tokenapi/tokenapi/internal/service"
)

// CatalogHandler serves the public movie catalog.
type CatalogHandler struct {
	catalog *service.CatalogService
	logger  *slog.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(catalog *service.CatalogService, logger *slog.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, logger: logger}
}

// Categories handles GET /categories/
func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	out, err := h.catalog.Categories(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Genres handles GET /genres/
func (h *CatalogHandler) Genres(w http.ResponseWriter, r *http.Request) {
	out, err := h.catalog.Genres(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Actors handles GET /actors/
func (h *CatalogHandler) Actors(w http.ResponseWriter, r *http.Request) {
	out, err := h.catalog.Actors(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Movies handles GET /movies/?category={slug}&genre={slug}
func (h *CatalogHandler) Movies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	out, err := h.catalog.Movies(r.Context(), repository.MovieFilter{
		Category: q.Get("category"),
		Genre:    q.Get("genre"),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// Movie handles GET /movies/{slug}/
func (h *CatalogHandler) Movie(w http.ResponseWriter, r *http.Request) {
	movie, err := h.catalog.Movie(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, movie)
}

// AddReview handles POST /reviews/
func (h *CatalogHandler) AddReview(w http.ResponseWriter, r *http.Request) {
	p, reqErr := decodePayload(r, false)
	if reqErr != nil {
		reqErr.write(w)
		return
	}

	in := service.ReviewInput{
		Email: p.str("email"),
		Name:  p.str("name"),
		Text:  p.str("text"),
	}
	errs := service.ValidationError{}
	in.Parent = pkField(errs, p, "parent")
	in.Movie = pkField(errs, p, "movie")
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	review, err := h.catalog.AddReview(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

// Rate handles POST /rating/. The rating is keyed by the client address.
func (h *CatalogHandler) Rate(w http.ResponseWriter, r *http.Request) {
	p, reqErr := decodePayload(r, false)
	if reqErr != nil {
		reqErr.write(w)
		return
	}

	errs := service.ValidationError{}
	in := service.RatingInput{
		Star:  pkField(errs, p, "star"),
		Movie: pkField(errs, p, "movie"),
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	rating, err := h.catalog.Rate(r.Context(), middleware.ClientIP(r), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{
		"star":  rating.StarID,
		"movie": rating.MovieID,
	})
}

func pkField(errs service.ValidationError, p payload, name string) *int64 {
	v, msg := p.pk(name)
	if msg != "" {
		errs.Add(name, msg)
	}
	return v
}
