package transform

import (
	"slices"

	"github.com/Ramsey-B/fern/pkg/models"
)

// MovieMerger builds movies from the movie query rows.
type MovieMerger struct{}

func (MovieMerger) Key(row models.MovieRow) string { return row.ID }

func (m MovieMerger) New(row models.MovieRow) *models.Movie {
	movie := &models.Movie{
		ID:          row.ID,
		Modified:    row.Modified,
		Rating:      row.Rating,
		Title:       row.Title,
		Description: row.Description,
		Directors:   []models.PersonRef{},
		Writers:     []models.PersonRef{},
		Actors:      []models.PersonRef{},
		Genres:      []models.GenreRef{},
	}
	m.Merge(movie, row)
	return movie
}

func (MovieMerger) Merge(movie *models.Movie, row models.MovieRow) {
	if row.PersonID != nil && row.Role != nil {
		ref := models.PersonRef{ID: *row.PersonID, FullName: deref(row.PersonName)}
		switch models.Role(*row.Role) {
		case models.RoleDirector:
			movie.Directors = appendPerson(movie.Directors, ref)
		case models.RoleWriter:
			movie.Writers = appendPerson(movie.Writers, ref)
		case models.RoleActor:
			movie.Actors = appendPerson(movie.Actors, ref)
		}
	}
	if row.GenreID != nil {
		ref := models.GenreRef{ID: *row.GenreID, Name: deref(row.GenreName)}
		if !slices.ContainsFunc(movie.Genres, func(g models.GenreRef) bool { return g.ID == ref.ID }) {
			movie.Genres = append(movie.Genres, ref)
		}
	}
}

func appendPerson(list []models.PersonRef, ref models.PersonRef) []models.PersonRef {
	if slices.ContainsFunc(list, func(p models.PersonRef) bool { return p.ID == ref.ID }) {
		return list
	}
	return append(list, ref)
}

// PersonMerger builds persons with their related movies.
type PersonMerger struct{}

func (PersonMerger) Key(row models.PersonRow) string { return row.ID }

func (m PersonMerger) New(row models.PersonRow) *models.Person {
	person := &models.Person{
		ID:            row.ID,
		FullName:      row.FullName,
		BirthDate:     row.BirthDate,
		Modified:      row.Modified,
		RelatedMovies: []models.RelatedMovie{},
	}
	m.Merge(person, row)
	return person
}

func (PersonMerger) Merge(person *models.Person, row models.PersonRow) {
	if row.MovieID == nil || row.Role == nil {
		return
	}
	related := models.RelatedMovie{ID: *row.MovieID, Role: models.Role(*row.Role)}
	if !slices.Contains(person.RelatedMovies, related) {
		person.RelatedMovies = append(person.RelatedMovies, related)
	}
}

// GenreMerger maps genre rows one to one.
type GenreMerger struct{}

func (GenreMerger) Key(row models.GenreRow) string { return row.ID }

func (GenreMerger) New(row models.GenreRow) *models.Genre {
	return &models.Genre{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Modified:    row.Modified,
	}
}

func (GenreMerger) Merge(*models.Genre, models.GenreRow) {}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
