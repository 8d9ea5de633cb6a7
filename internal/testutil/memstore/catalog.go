package memstore

import (
	"context"
	"sort"

	"github.com/tokenapi/tokenapi/internal/model"
	"github.com/tokenapi/tokenapi/internal/repository"
)

// AddCategory seeds a category and returns its ID.
func (s *Store) AddCategory(c model.Category) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.data.id()
	s.data.categories[c.ID] = c
	return c.ID
}

// AddGenre seeds a genre and returns its ID.
func (s *Store) AddGenre(g model.Genre) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = s.data.id()
	s.data.genres[g.ID] = g
	return g.ID
}

// AddActor seeds an actor or director and returns its ID.
func (s *Store) AddActor(a model.Actor) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.data.id()
	s.data.actors[a.ID] = a
	return a.ID
}

// AddMovie seeds a movie with its people and genres and returns its ID.
func (s *Store) AddMovie(m model.Movie, directors, actors, genres []int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.ID = s.data.id()
	s.data.movies[m.ID] = movieRow{movie: m, directors: directors, actors: actors, genres: genres}
	return m.ID
}

// AddShot seeds a movie still and returns its ID.
func (s *Store) AddShot(sh model.MovieShot) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh.ID = s.data.id()
	s.data.shots[sh.ID] = sh
	return sh.ID
}

// AddRatingStar seeds a rating star and returns its ID.
func (s *Store) AddRatingStar(value int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.data.id()
	s.data.stars[id] = model.RatingStar{ID: id, Value: value}
	return id
}

// Ratings returns all ratings for a movie.
func (s *Store) Ratings(movieID int64) []model.Rating {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Rating, 0)
	for _, r := range s.data.ratings {
		if r.MovieID == movieID {
			out = append(out, r)
		}
	}
	return out
}

// ListCategories returns categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]model.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Category, 0, len(s.data.categories))
	for _, c := range s.data.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListGenres returns genres ordered by name.
func (s *Store) ListGenres(ctx context.Context) ([]model.Genre, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Genre, 0, len(s.data.genres))
	for _, g := range s.data.genres {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListActors returns actors ordered by name.
func (s *Store) ListActors(ctx context.Context) ([]model.Actor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Actor, 0, len(s.data.actors))
	for _, a := range s.data.actors {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ListMovies returns published movies matching filter, ordered by ID.
func (s *Store) ListMovies(ctx context.Context, filter repository.MovieFilter) ([]model.MovieSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.MovieSummary, 0)
	for _, row := range s.data.movies {
		m := row.movie
		if m.Draft {
			continue
		}
		category := s.categoryOf(m)
		if filter.Category != "" && (category == nil || category.URL != filter.Category) {
			continue
		}
		if filter.Genre != "" && !s.hasGenre(row, filter.Genre) {
			continue
		}
		summary := model.MovieSummary{
			ID:            m.ID,
			Title:         m.Title,
			Tagline:       m.Tagline,
			URL:           m.URL,
			Poster:        m.Poster,
			Year:          m.Year,
			AverageRating: s.averageRating(m.ID),
		}
		if category != nil {
			summary.Category = category.Name
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetMovieBySlug returns a published movie and its reviews ordered by ID.
func (s *Store) GetMovieBySlug(ctx context.Context, slug string) (*model.MovieDetail, []model.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.data.movies {
		if row.movie.URL != slug || row.movie.Draft {
			continue
		}
		d := &model.MovieDetail{
			Movie:     row.movie,
			Directors: s.actorNames(row.directors),
			Actors:    s.actorNames(row.actors),
			Genres:    s.genreNames(row.genres),
			Shots:     make([]model.MovieShot, 0),
		}
		if c := s.categoryOf(row.movie); c != nil {
			d.Category = c.Name
		}
		for _, sh := range s.data.shots {
			if sh.MovieID == row.movie.ID {
				d.Shots = append(d.Shots, sh)
			}
		}
		sort.Slice(d.Shots, func(i, j int) bool { return d.Shots[i].ID < d.Shots[j].ID })

		reviews := make([]model.Review, 0)
		for _, r := range s.data.reviews {
			if r.MovieID == row.movie.ID {
				reviews = append(reviews, r)
			}
		}
		sort.Slice(reviews, func(i, j int) bool { return reviews[i].ID < reviews[j].ID })
		return d, reviews, nil
	}
	return nil, nil, repository.ErrMovieNotFound
}

// GetPublishedMovie returns a non-draft movie by ID.
func (s *Store) GetPublishedMovie(ctx context.Context, id int64) (*model.Movie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.data.movies[id]
	if !ok || row.movie.Draft {
		return nil, repository.ErrMovieNotFound
	}
	m := row.movie
	return &m, nil
}

// GetReview retrieves a review by ID.
func (s *Store) GetReview(ctx context.Context, id int64) (*model.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.data.reviews[id]
	if !ok {
		return nil, repository.ErrReviewNotFound
	}
	return &r, nil
}

// CreateReview inserts a review.
func (s *Store) CreateReview(ctx context.Context, review *model.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.movies[review.MovieID]; !ok {
		return repository.ErrMovieNotFound
	}
	review.ID = s.data.id()
	s.data.reviews[review.ID] = *review
	return nil
}

// GetRatingStar retrieves a rating star by ID.
func (s *Store) GetRatingStar(ctx context.Context, id int64) (*model.RatingStar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	star, ok := s.data.stars[id]
	if !ok {
		return nil, repository.ErrRatingStarNotFound
	}
	return &star, nil
}

// UpsertRating records the star for (ip, movie).
func (s *Store) UpsertRating(ctx context.Context, rating *model.Rating) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data.movies[rating.MovieID]; !ok {
		return repository.ErrMovieNotFound
	}
	for id, r := range s.data.ratings {
		if r.IP == rating.IP && r.MovieID == rating.MovieID {
			r.StarID = rating.StarID
			s.data.ratings[id] = r
			rating.ID = id
			return nil
		}
	}
	rating.ID = s.data.id()
	s.data.ratings[rating.ID] = *rating
	return nil
}

func (s *Store) categoryOf(m model.Movie) *model.Category {
	if m.CategoryID == nil {
		return nil
	}
	c, ok := s.data.categories[*m.CategoryID]
	if !ok {
		return nil
	}
	return &c
}

func (s *Store) hasGenre(row movieRow, slug string) bool {
	for _, id := range row.genres {
		if g, ok := s.data.genres[id]; ok && g.URL == slug {
			return true
		}
	}
	return false
}

func (s *Store) averageRating(movieID int64) *float64 {
	var sum, n int
	for _, r := range s.data.ratings {
		if r.MovieID != movieID {
			continue
		}
		sum += s.data.stars[r.StarID].Value
		n++
	}
	if n == 0 {
		return nil
	}
	avg := float64(sum) / float64(n)
	return &avg
}

func (s *Store) actorNames(ids []int64) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if a, ok := s.data.actors[id]; ok {
			names = append(names, a.Name)
		}
	}
	sort.Strings(names)
	return names
}

func (s *Store) genreNames(ids []int64) []string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if g, ok := s.data.genres[id]; ok {
			names = append(names, g.Name)
		}
	}
	sort.Strings(names)
	return names
}
