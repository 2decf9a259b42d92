package transform

import (
	"strings"

	"github.com/Ramsey-B/fern/pkg/models"
)

// MovieDoc is the movies index document.
type MovieDoc struct {
	ID           string             `json:"id"`
	IMDBRating   *float64           `json:"imdb_rating"`
	Title        string             `json:"title"`
	Description  *string            `json:"description"`
	Genres       []models.GenreRef  `json:"genres"`
	ActorsNames  string             `json:"actors_names"`
	WritersNames string             `json:"writers_names"`
	Directors    []models.PersonRef `json:"directors"`
	Actors       []models.PersonRef `json:"actors"`
	Writers      []models.PersonRef `json:"writers"`
}

// PersonDoc is the persons index document.
type PersonDoc struct {
	ID            string                `json:"id"`
	FullName      string                `json:"full_name"`
	BirthDate     *string               `json:"birth_date"`
	RelatedMovies []models.RelatedMovie `json:"related_movies"`
}

// GenreDoc is the genres index document.
type GenreDoc struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

func MovieDocument(m *models.Movie) models.Document {
	return models.Document{
		ID:       m.ID,
		Modified: m.Modified,
		Body: MovieDoc{
			ID:           m.ID,
			IMDBRating:   m.Rating,
			Title:        m.Title,
			Description:  m.Description,
			Genres:       nonNil(m.Genres),
			ActorsNames:  joinNames(m.Actors),
			WritersNames: joinNames(m.Writers),
			Directors:    nonNil(m.Directors),
			Actors:       nonNil(m.Actors),
			Writers:      nonNil(m.Writers),
		},
	}
}

func PersonDocument(p *models.Person) models.Document {
	var birth *string
	if p.BirthDate != nil {
		s := p.BirthDate.Format("2006-01-02")
		birth = &s
	}
	return models.Document{
		ID:       p.ID,
		Modified: p.Modified,
		Body: PersonDoc{
			ID:            p.ID,
			FullName:      p.FullName,
			BirthDate:     birth,
			RelatedMovies: nonNil(p.RelatedMovies),
		},
	}
}

func GenreDocument(g *models.Genre) models.Document {
	return models.Document{
		ID:       g.ID,
		Modified: g.Modified,
		Body: GenreDoc{
			ID:          g.ID,
			Name:        g.Name,
			Description: g.Description,
		},
	}
}

func joinNames(people []models.PersonRef) string {
	names := make([]string, len(people))
	for i, p := range people {
		names[i] = p.FullName
	}
	return strings.Join(names, ", ")
}

// nonNil keeps empty lists serializing as [] instead of null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
