package model

import "time"

// Category groups movies, e.g. "Films" or "Series".
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// Actor is an actor or a director.
type Actor struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Age         int    `json:"age"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// Genre is a movie genre.
type Genre struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// Movie is a catalog entry. Draft movies are hidden from the public API.
type Movie struct {
	ID            int64     `json:"id"`
	Title         string    `json:"title"`
	Tagline       string    `json:"tagline"`
	Description   string    `json:"description"`
	Poster        string    `json:"poster"`
	Year          int       `json:"year"`
	Country       string    `json:"country"`
	CategoryID    *int64    `json:"category_id,omitempty"`
	URL           string    `json:"url"`
	WorldPremiere time.Time `json:"world_premiere"`
	Budget        int64     `json:"budget"`
	FeesInUSA     int64     `json:"fees_in_usa"`
	FeesInWorld   int64     `json:"fees_in_world"`
	Draft         bool      `json:"draft"`
}

// MovieShot is a still frame from a movie.
type MovieShot struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	MovieID     int64  `json:"movie_id"`
}

// RatingStar is a selectable rating value.
type RatingStar struct {
	ID    int64 `json:"id"`
	Value int   `json:"value"`
}

// Rating is one visitor's star for a movie, keyed by client IP.
type Rating struct {
	ID      int64  `json:"id"`
	IP      string `json:"ip"`
	StarID  int64  `json:"star"`
	MovieID int64  `json:"movie"`
}

// Review is a visitor comment on a movie. ParentID links replies.
type Review struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Text     string `json:"text"`
	ParentID *int64 `json:"parent,omitempty"`
	MovieID  int64  `json:"movie"`
}

// MovieSummary is a published movie in list views.
type MovieSummary struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Tagline       string   `json:"tagline"`
	Category      string   `json:"category,omitempty"`
	URL           string   `json:"url"`
	Poster        string   `json:"poster"`
	Year          int      `json:"year"`
	AverageRating *float64 `json:"average_rating"`
}

// ReviewNode is a review with its replies.
type ReviewNode struct {
	ID       int64         `json:"id"`
	Name     string        `json:"name"`
	Text     string        `json:"text"`
	Children []*ReviewNode `json:"children"`
}

// MovieDetail is the full view of a published movie.
type MovieDetail struct {
	Movie
	Category  string        `json:"category,omitempty"`
	Directors []string      `json:"directors"`
	Actors    []string      `json:"actors"`
	Genres    []string      `json:"genres"`
	Shots     []MovieShot   `json:"shots"`
	Reviews   []*ReviewNode `json:"reviews"`
}

// BuildReviewTree nests reviews under their parents, preserving input order.
// Replies whose parent is not in the list are promoted to the top level.
func BuildReviewTree(reviews []Review) []*ReviewNode {
	nodes := make(map[int64]*ReviewNode, len(reviews))
	for _, r := range reviews {
		nodes[r.ID] = &ReviewNode{ID: r.ID, Name: r.Name, Text: r.Text, Children: []*ReviewNode{}}
	}

	roots := make([]*ReviewNode, 0, len(reviews))
	for _, r := range reviews {
		node := nodes[r.ID]
		if r.ParentID != nil {
			if parent, ok := nodes[*r.ParentID]; ok && *r.ParentID != r.ID {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}
	return roots
}
