package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"github.com/tokenapi/tokenapi/internal/model"
)

// Common errors for catalog repository operations.
var (
	ErrMovieNotFound      = errors.New("movie not found")
	ErrReviewNotFound     = errors.New("review not found")
	ErrRatingStarNotFound = errors.New("rating star not found")
)

// MovieFilter narrows the published movie listing by slug.
type MovieFilter struct {
	Category string
	Genre    string
}

// ListCategories returns all categories ordered by name.
func (r *Repository) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name, description, url FROM categories ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]model.Category, 0)
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.URL); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// ListGenres returns all genres ordered by name.
func (r *Repository) ListGenres(ctx context.Context) ([]model.Genre, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name, description, url FROM genres ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list genres: %w", err)
	}
	defer rows.Close()

	genres := make([]model.Genre, 0)
	for rows.Next() {
		var g model.Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.URL); err != nil {
			return nil, fmt.Errorf("failed to scan genre: %w", err)
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

// ListActors returns all actors and directors ordered by name.
func (r *Repository) ListActors(ctx context.Context) ([]model.Actor, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name, age, description, image FROM actors ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list actors: %w", err)
	}
	defer rows.Close()

	actors := make([]model.Actor, 0)
	for rows.Next() {
		var a model.Actor
		if err := rows.Scan(&a.ID, &a.Name, &a.Age, &a.Description, &a.Image); err != nil {
			return nil, fmt.Errorf("failed to scan actor: %w", err)
		}
		actors = append(actors, a)
	}
	return actors, rows.Err()
}

// ListMovies returns published movies with their average rating.
func (r *Repository) ListMovies(ctx context.Context, filter MovieFilter) ([]model.MovieSummary, error) {
	query := `
		SELECT m.id, m.title, m.tagline, COALESCE(c.name, ''), m.url, m.poster, m.year,
			(SELECT AVG(s.value)::float8 FROM ratings rt JOIN rating_stars s ON s.id = rt.star_id WHERE rt.movie_id = m.id)
		FROM movies m
		LEFT JOIN categories c ON c.id = m.category_id
		WHERE NOT m.draft
			AND ($1 = '' OR c.url = $1)
			AND ($2 = '' OR EXISTS (
				SELECT 1 FROM movie_genres mg JOIN genres g ON g.id = mg.genre_id
				WHERE mg.movie_id = m.id AND g.url = $2
			))
		ORDER BY m.id
	`

	rows, err := r.conn(ctx).Query(ctx, query, filter.Category, filter.Genre)
	if err != nil {
		return nil, fmt.Errorf("failed to list movies: %w", err)
	}
	defer rows.Close()

	movies := make([]model.MovieSummary, 0)
	for rows.Next() {
		var m model.MovieSummary
		if err := rows.Scan(&m.ID, &m.Title, &m.Tagline, &m.Category, &m.URL, &m.Poster, &m.Year, &m.AverageRating); err != nil {
			return nil, fmt.Errorf("failed to scan movie: %w", err)
		}
		movies = append(movies, m)
	}
	return movies, rows.Err()
}

// GetMovieBySlug returns a published movie with its people, genres, shots
// and flat review list. Draft movies are reported as not found.
// Name arrays are selected as text so pq.Array can parse them.
func (r *Repository) GetMovieBySlug(ctx context.Context, slug string) (*model.MovieDetail, []model.Review, error) {
	query := `
		SELECT m.id, m.title, m.tagline, m.description, m.poster, m.year, m.country,
			m.category_id, m.url, m.world_premiere, m.budget, m.fees_in_usa, m.fees_in_world, m.draft,
			COALESCE(c.name, ''),
			ARRAY(SELECT a.name FROM movie_directors md JOIN actors a ON a.id = md.actor_id WHERE md.movie_id = m.id ORDER BY a.name)::text,
			ARRAY(SELECT a.name FROM movie_actors ma JOIN actors a ON a.id = ma.actor_id WHERE ma.movie_id = m.id ORDER BY a.name)::text,
			ARRAY(SELECT g.name FROM movie_genres mg JOIN genres g ON g.id = mg.genre_id WHERE mg.movie_id = m.id ORDER BY g.name)::text
		FROM movies m
		LEFT JOIN categories c ON c.id = m.category_id
		WHERE m.url = $1 AND NOT m.draft
	`

	var d model.MovieDetail
	var directors, actors, genres []string
	err := r.conn(ctx).QueryRow(ctx, query, slug).Scan(
		&d.ID, &d.Title, &d.Tagline, &d.Description, &d.Poster, &d.Year, &d.Country,
		&d.CategoryID, &d.URL, &d.WorldPremiere, &d.Budget, &d.FeesInUSA, &d.FeesInWorld, &d.Draft,
		&d.Category,
		pq.Array(&directors),
		pq.Array(&actors),
		pq.Array(&genres),
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrMovieNotFound
		}
		return nil, nil, fmt.Errorf("failed to get movie: %w", err)
	}
	d.Directors = nonNil(directors)
	d.Actors = nonNil(actors)
	d.Genres = nonNil(genres)

	shots, err := r.listShots(ctx, d.ID)
	if err != nil {
		return nil, nil, err
	}
	d.Shots = shots

	reviews, err := r.listReviews(ctx, d.ID)
	if err != nil {
		return nil, nil, err
	}

	return &d, reviews, nil
}

// GetPublishedMovie returns the movie with id if it is not a draft.
func (r *Repository) GetPublishedMovie(ctx context.Context, id int64) (*model.Movie, error) {
	query := `
		SELECT id, title, tagline, description, poster, year, country, category_id, url,
			world_premiere, budget, fees_in_usa, fees_in_world, draft
		FROM movies WHERE id = $1 AND NOT draft
	`

	var m model.Movie
	err := r.conn(ctx).QueryRow(ctx, query, id).Scan(
		&m.ID, &m.Title, &m.Tagline, &m.Description, &m.Poster, &m.Year, &m.Country, &m.CategoryID, &m.URL,
		&m.WorldPremiere, &m.Budget, &m.FeesInUSA, &m.FeesInWorld, &m.Draft,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMovieNotFound
		}
		return nil, fmt.Errorf("failed to get movie: %w", err)
	}
	return &m, nil
}

// GetReview retrieves a review by ID.
func (r *Repository) GetReview(ctx context.Context, id int64) (*model.Review, error) {
	var rv model.Review
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, email, name, text, parent_id, movie_id FROM reviews WHERE id = $1`, id,
	).Scan(&rv.ID, &rv.Email, &rv.Name, &rv.Text, &rv.ParentID, &rv.MovieID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReviewNotFound
		}
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return &rv, nil
}

// CreateReview inserts a review and fills its ID.
func (r *Repository) CreateReview(ctx context.Context, review *model.Review) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO reviews (email, name, text, parent_id, movie_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, review.Email, review.Name, review.Text, review.ParentID, review.MovieID).Scan(&review.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrMovieNotFound
		}
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// GetRatingStar retrieves a rating star by ID.
func (r *Repository) GetRatingStar(ctx context.Context, id int64) (*model.RatingStar, error) {
	var s model.RatingStar
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, value FROM rating_stars WHERE id = $1`, id).Scan(&s.ID, &s.Value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRatingStarNotFound
		}
		return nil, fmt.Errorf("failed to get rating star: %w", err)
	}
	return &s, nil
}

// UpsertRating records the star for (ip, movie), replacing an earlier one.
func (r *Repository) UpsertRating(ctx context.Context, rating *model.Rating) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO ratings (ip, star_id, movie_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (ip, movie_id) DO UPDATE SET star_id = EXCLUDED.star_id
		RETURNING id
	`, rating.IP, rating.StarID, rating.MovieID).Scan(&rating.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrMovieNotFound
		}
		return fmt.Errorf("failed to save rating: %w", err)
	}
	return nil
}

func (r *Repository) listShots(ctx context.Context, movieID int64) ([]model.MovieShot, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, title, description, image, movie_id FROM movie_shots WHERE movie_id = $1 ORDER BY id`, movieID)
	if err != nil {
		return nil, fmt.Errorf("failed to list shots: %w", err)
	}
	defer rows.Close()

	shots := make([]model.MovieShot, 0)
	for rows.Next() {
		var s model.MovieShot
		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.Image, &s.MovieID); err != nil {
			return nil, fmt.Errorf("failed to scan shot: %w", err)
		}
		shots = append(shots, s)
	}
	return shots, rows.Err()
}

func (r *Repository) listReviews(ctx context.Context, movieID int64) ([]model.Review, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, email, name, text, parent_id, movie_id FROM reviews WHERE movie_id = $1 ORDER BY id`, movieID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]model.Review, 0)
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.Email, &rv.Name, &rv.Text, &rv.ParentID, &rv.MovieID); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	return reviews, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
