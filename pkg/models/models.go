package models

import (
	"fmt"
	"time"
)

// Kind is the entity kind an invocation synchronizes.
type Kind string

const (
	KindMovies  Kind = "movies"
	KindPersons Kind = "persons"
	KindGenres  Kind = "genres"
)

// Kinds lists every supported kind in scheduling order.
var Kinds = []Kind{KindMovies, KindPersons, KindGenres}

// ParseKind validates a user-supplied kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown kind %q", s)
}

// Role is the part a person plays in a film work.
type Role string

const (
	RoleActor    Role = "actor"
	RoleWriter   Role = "writer"
	RoleDirector Role = "director"
)

// MovieRow is one flat row of the movies query. A row carries either a person
// reference or a genre reference, never both.
type MovieRow struct {
	ID          string    `db:"id" validate:"required"`
	Title       string    `db:"title"`
	Description *string   `db:"description"`
	Rating      *float64  `db:"rating"`
	Modified    time.Time `db:"modified" validate:"required"`
	Role        *string   `db:"role" validate:"omitempty,oneof=actor writer director"`
	PersonID    *string   `db:"person_id" validate:"required_with=Role"`
	PersonName  *string   `db:"full_name"`
	GenreID     *string   `db:"genre_id"`
	GenreName   *string   `db:"genre_name"`
}

// PersonRow is one flat row of the persons query.
type PersonRow struct {
	ID        string     `db:"id" validate:"required"`
	FullName  string     `db:"full_name"`
	BirthDate *time.Time `db:"birth_date"`
	Modified  time.Time  `db:"modified" validate:"required"`
	MovieID   *string    `db:"film_work_id" validate:"required_with=Role"`
	Role      *string    `db:"role" validate:"omitempty,oneof=actor writer director"`
}

// GenreRow is one row of the genres query.
type GenreRow struct {
	ID          string    `db:"id" validate:"required"`
	Name        string    `db:"name"`
	Description *string   `db:"description"`
	Modified    time.Time `db:"modified" validate:"required"`
}

// PersonRef is a person as embedded in a movie.
type PersonRef struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
}

// GenreRef is a genre as embedded in a movie.
type GenreRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// RelatedMovie is a movie a person took part in.
type RelatedMovie struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Movie is the nested movie aggregate.
type Movie struct {
	ID          string
	Modified    time.Time
	Rating      *float64
	Title       string
	Description *string
	Directors   []PersonRef
	Writers     []PersonRef
	Actors      []PersonRef
	Genres      []GenreRef
}

// Person is the nested person aggregate.
type Person struct {
	ID            string
	FullName      string
	BirthDate     *time.Time
	Modified      time.Time
	RelatedMovies []RelatedMovie
}

// Genre is the genre aggregate.
type Genre struct {
	ID          string
	Name        string
	Description *string
	Modified    time.Time
}

// Document is an aggregate rendered for the index. Modified drives watermarking
// and is not part of Body.
type Document struct {
	ID       string
	Modified time.Time
	Body     any
}
