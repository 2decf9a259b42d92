package extractor

import (
	"context"
	"iter"
	"slices"
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
)

type keyRow struct {
	ID       string    `db:"id"`
	Modified time.Time `db:"modified"`
}

// Movies streams movie rows changed since since, ordered by (modified, id).
func (e *Extractor) Movies(ctx context.Context, since time.Time) iter.Seq2[models.MovieRow, error] {
	return stream(ctx, e, "movies", since, func(ctx context.Context, conn database.Conn, yield func(models.MovieRow, error) bool) bool {
		query, args := e.tables.moviesSince(since)
		return scan(ctx, e, conn, yield, query, args...)
	})
}

// Persons streams person rows changed since since, ordered by (modified, id).
func (e *Extractor) Persons(ctx context.Context, since time.Time) iter.Seq2[models.PersonRow, error] {
	return stream(ctx, e, "persons", since, func(ctx context.Context, conn database.Conn, yield func(models.PersonRow, error) bool) bool {
		query, args := e.tables.personsSince(since)
		return scan(ctx, e, conn, yield, query, args...)
	})
}

// Genres streams genres changed since since, ordered by (modified, id).
func (e *Extractor) Genres(ctx context.Context, since time.Time) iter.Seq2[models.GenreRow, error] {
	return stream(ctx, e, "genres", since, func(ctx context.Context, conn database.Conn, yield func(models.GenreRow, error) bool) bool {
		query, args := e.tables.genresSince(since)
		return scan(ctx, e, conn, yield, query, args...)
	})
}

// MoviesForPersons streams the rows of every movie linked to a person changed
// since since, ordered by movie id. The movies' own modified times are not filtered.
func (e *Extractor) MoviesForPersons(ctx context.Context, since time.Time) iter.Seq2[models.MovieRow, error] {
	return e.cascade(ctx, "movies_for_persons", since, e.tables.person, e.tables.personFilmWork, "film_work_id", "person_id")
}

// MoviesForGenres is MoviesForPersons for genres.
func (e *Extractor) MoviesForGenres(ctx context.Context, since time.Time) iter.Seq2[models.MovieRow, error] {
	return e.cascade(ctx, "movies_for_genres", since, e.tables.genre, e.tables.filmWorkGenre, "filmwork_id", "genre_id")
}

func (e *Extractor) cascade(ctx context.Context, name string, since time.Time, drivingTable, joinTable, movieColumn, keyColumn string) iter.Seq2[models.MovieRow, error] {
	return stream(ctx, e, name, since, func(ctx context.Context, conn database.Conn, yield func(models.MovieRow, error) bool) bool {
		movieIDs, err := e.affectedMovies(ctx, conn, since, drivingTable, joinTable, movieColumn, keyColumn)
		if err != nil {
			yield(models.MovieRow{}, err)
			return false
		}

		e.logger.WithContext(ctx).WithFields(map[string]any{
			"query":  name,
			"movies": len(movieIDs),
		}).Info("Resolved movies affected by related changes")

		for chunk := range slices.Chunk(movieIDs, e.pageSize) {
			query, args := e.tables.moviesByID(chunk)
			if !scan(ctx, e, conn, yield, query, args...) {
				return false
			}
		}
		return true
	})
}

// affectedMovies returns the sorted, de-duplicated ids of movies linked to any
// driving row changed since since.
func (e *Extractor) affectedMovies(ctx context.Context, conn database.Conn, since time.Time, drivingTable, joinTable, movieColumn, keyColumn string) ([]string, error) {
	seen := make(map[string]struct{})
	var after *keyRow
	for page := 1; ; page++ {
		query, args := changedIDs(drivingTable, since, after, e.pageSize)
		var changed []keyRow
		if err := conn.Select(ctx, &changed, query, args...); err != nil {
			return nil, err
		}
		if len(changed) == 0 {
			break
		}

		ids := make([]string, len(changed))
		for i, row := range changed {
			ids[i] = row.ID
		}

		query, args = linkedMovieIDs(joinTable, movieColumn, keyColumn, ids)
		var linked []string
		if err := conn.Select(ctx, &linked, query, args...); err != nil {
			return nil, err
		}
		for _, id := range linked {
			seen[id] = struct{}{}
		}

		e.logger.WithContext(ctx).WithFields(map[string]any{
			"table":  drivingTable,
			"page":   page,
			"ids":    len(ids),
			"movies": len(linked),
		}).Debug("Scanned changed ids page")

		if len(changed) < e.pageSize {
			break
		}
		last := changed[len(changed)-1]
		after = &last
	}

	movieIDs := make([]string, 0, len(seen))
	for id := range seen {
		movieIDs = append(movieIDs, id)
	}
	slices.Sort(movieIDs)
	return movieIDs, nil
}
