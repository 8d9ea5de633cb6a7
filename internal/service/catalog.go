package service

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/tokenapi/tokenapi/internal/model"
	"github.com/tokenapi/tokenapi/internal/repository"
)

// CatalogStore is the movie catalog persistence the service depends on.
type CatalogStore interface {
	ListCategories(ctx context.Context) ([]model.Category, error)
	ListGenres(ctx context.Context) ([]model.Genre, error)
	ListActors(ctx context.Context) ([]model.Actor, error)
	ListMovies(ctx context.Context, filter repository.MovieFilter) ([]model.MovieSummary, error)
	GetMovieBySlug(ctx context.Context, slug string) (*model.MovieDetail, []model.Review, error)
	GetPublishedMovie(ctx context.Context, id int64) (*model.Movie, error)
	GetReview(ctx context.Context, id int64) (*model.Review, error)
	CreateReview(ctx context.Context, review *model.Review) error
	GetRatingStar(ctx context.Context, id int64) (*model.RatingStar, error)
	UpsertRating(ctx context.Context, rating *model.Rating) error
}

// CatalogService serves the movie catalog.
type CatalogService struct {
	store CatalogStore
}

// NewCatalogService creates a CatalogService.
func NewCatalogService(store CatalogStore) *CatalogService {
	return &CatalogService{store: store}
}

// ReviewInput is the payload for AddReview. Nil means absent.
type ReviewInput struct {
	Email  *string `json:"email"`
	Name   *string `json:"name"`
	Text   *string `json:"text"`
	Parent *int64  `json:"parent"`
	Movie  *int64  `json:"movie"`
}

// RatingInput is the payload for Rate. Nil means absent.
type RatingInput struct {
	Star  *int64 `json:"star"`
	Movie *int64 `json:"movie"`
}

// Categories lists all categories.
func (s *CatalogService) Categories(ctx context.Context) ([]model.Category, error) {
	out, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

// Genres lists all genres.
func (s *CatalogService) Genres(ctx context.Context) ([]model.Genre, error) {
	out, err := s.store.ListGenres(ctx)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	return out, nil
}

// Actors lists all actors and directors.
func (s *CatalogService) Actors(ctx context.Context) ([]model.Actor, error) {
	out, err := s.store.ListActors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	return out, nil
}

// Movies lists published movies, optionally filtered by category and genre slug.
func (s *CatalogService) Movies(ctx context.Context, filter repository.MovieFilter) ([]model.MovieSummary, error) {
	out, err := s.store.ListMovies(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	return out, nil
}

// Movie returns a published movie with its reviews nested under their parents.
func (s *CatalogService) Movie(ctx context.Context, slug string) (*model.MovieDetail, error) {
	detail, reviews, err := s.store.GetMovieBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get movie: %w", err)
	}
	detail.Reviews = model.BuildReviewTree(reviews)
	return detail, nil
}

// AddReview validates and stores a review. A parent must belong to the same movie.
func (s *CatalogService) AddReview(ctx context.Context, in ReviewInput) (*model.Review, error) {
	errs := ValidationError{}

	name := requireString(errs, "name", in.Name, 100)
	text := requireString(errs, "text", in.Text, 5000)
	email := requireString(errs, "email", in.Email, 254)
	if email != "" && !errs.Has("email") && !validEmail(email) {
		errs.Add("email", MsgInvalidEmail)
	}

	var movieID int64
	if in.Movie == nil {
		errs.Add("movie", MsgRequired)
	} else if _, err := s.store.GetPublishedMovie(ctx, *in.Movie); err != nil {
		if !errors.Is(err, repository.ErrMovieNotFound) {
			return nil, fmt.Errorf("lookup movie: %w", err)
		}
		errs.Add("movie", invalidPKMsg(*in.Movie))
	} else {
		movieID = *in.Movie
	}

	if in.Parent != nil {
		parent, err := s.store.GetReview(ctx, *in.Parent)
		switch {
		case errors.Is(err, repository.ErrReviewNotFound):
			errs.Add("parent", invalidPKMsg(*in.Parent))
		case err != nil:
			return nil, fmt.Errorf("lookup parent review: %w", err)
		case movieID != 0 && parent.MovieID != movieID:
			errs.Add("parent", "Parent review belongs to a different movie.")
		}
	}

	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	review := &model.Review{
		Email:    email,
		Name:     name,
		Text:     text,
		ParentID: in.Parent,
		MovieID:  movieID,
	}
	if err := s.store.CreateReview(ctx, review); err != nil {
		return nil, fmt.Errorf("create review: %w", err)
	}
	return review, nil
}

// Rate records the client's star for a movie, replacing any earlier rating
// from the same IP.
func (s *CatalogService) Rate(ctx context.Context, clientIP string, in RatingInput) (*model.Rating, error) {
	errs := ValidationError{}

	if in.Star == nil {
		errs.Add("star", MsgRequired)
	} else if _, err := s.store.GetRatingStar(ctx, *in.Star); err != nil {
		if !errors.Is(err, repository.ErrRatingStarNotFound) {
			return nil, fmt.Errorf("lookup star: %w", err)
		}
		errs.Add("star", invalidPKMsg(*in.Star))
	}

	if in.Movie == nil {
		errs.Add("movie", MsgRequired)
	} else if _, err := s.store.GetPublishedMovie(ctx, *in.Movie); err != nil {
		if !errors.Is(err, repository.ErrMovieNotFound) {
			return nil, fmt.Errorf("lookup movie: %w", err)
		}
		errs.Add("movie", invalidPKMsg(*in.Movie))
	}

	ip := normalizeIP(clientIP)
	if ip == "" {
		errs.Add(NonFieldErrors, "Could not determine client address.")
	}

	if err := errs.OrNil(); err != nil {
		return nil, err
	}

	rating := &model.Rating{IP: ip, StarID: *in.Star, MovieID: *in.Movie}
	if err := s.store.UpsertRating(ctx, rating); err != nil {
		return nil, fmt.Errorf("save rating: %w", err)
	}
	return rating, nil
}

// normalizeIP returns the canonical text form of addr, or "" if invalid.
func normalizeIP(addr string) string {
	addr = strings.TrimSpace(addr)
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		if ap, perr := netip.ParseAddrPort(addr); perr == nil {
			ip = ap.Addr()
		} else {
			return ""
		}
	}
	return ip.Unmap().String()
}
