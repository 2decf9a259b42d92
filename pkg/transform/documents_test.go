package transform_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovieDocument(t *testing.T) {
	movie := &models.Movie{
		ID:       "M1",
		Modified: t0,
		Rating:   ptr(8.1),
		Title:    "Heat",
		Actors:   []models.PersonRef{{ID: "P1", FullName: "Al"}, {ID: "P2", FullName: "Bob"}},
		Genres:   []models.GenreRef{{ID: "G1", Name: "Crime"}},
	}

	doc := transform.MovieDocument(movie)
	assert.Equal(t, "M1", doc.ID)
	assert.Equal(t, t0, doc.Modified)

	body, err := json.Marshal(doc.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "M1",
		"imdb_rating": 8.1,
		"title": "Heat",
		"description": null,
		"genres": [{"id": "G1", "name": "Crime"}],
		"actors_names": "Al, Bob",
		"writers_names": "",
		"directors": [],
		"actors": [{"id": "P1", "full_name": "Al"}, {"id": "P2", "full_name": "Bob"}],
		"writers": []
	}`, string(body))
}

func TestPersonDocument(t *testing.T) {
	birth := time.Date(1940, 4, 25, 0, 0, 0, 0, time.UTC)
	doc := transform.PersonDocument(&models.Person{
		ID:            "P1",
		FullName:      "Al",
		BirthDate:     &birth,
		Modified:      t0,
		RelatedMovies: []models.RelatedMovie{{ID: "M1", Role: models.RoleActor}},
	})

	body, err := json.Marshal(doc.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"P1","full_name":"Al","birth_date":"1940-04-25","related_movies":[{"id":"M1","role":"actor"}]}`, string(body))

	body, err = json.Marshal(transform.PersonDocument(&models.Person{ID: "P2"}).Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"P2","full_name":"","birth_date":null,"related_movies":[]}`, string(body))
}

func TestGenreDocument(t *testing.T) {
	body, err := json.Marshal(transform.GenreDocument(&models.Genre{ID: "G1", Name: "Drama"}).Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"G1","name":"Drama","description":null}`, string(body))
}
