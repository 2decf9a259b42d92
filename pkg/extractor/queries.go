package extractor

import (
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"
)

type tables struct {
	filmWork       string
	person         string
	personFilmWork string
	filmWorkGenre  string
	genre          string
}

func newTables(prefix string) tables {
	return tables{
		filmWork:       prefix + "filmwork",
		person:         prefix + "person",
		personFilmWork: prefix + "personfilmwork",
		filmWorkGenre:  prefix + "filmwork_genres",
		genre:          prefix + "genre",
	}
}

// movieQuery returns one row per movie x person and one per movie x genre, so a
// row never carries both references. A movie with no people still yields a base row.
func (t tables) movieQuery(where, orderBy string) string {
	return fmt.Sprintf(`
		SELECT * FROM (
			SELECT fw.id::text AS id, fw.title, fw.description, fw.rating, fw.modified,
				CASE WHEN p.id IS NULL THEN NULL ELSE pfw.role END AS role,
				p.id::text AS person_id, p.full_name,
				NULL::text AS genre_id, NULL::text AS genre_name
			FROM %[1]s fw
			LEFT JOIN %[2]s pfw ON pfw.film_work_id = fw.id
			LEFT JOIN %[3]s p ON p.id = pfw.person_id
			WHERE %[6]s
			UNION ALL
			SELECT fw.id::text, fw.title, fw.description, fw.rating, fw.modified,
				NULL, NULL, NULL,
				g.id::text, g.name
			FROM %[1]s fw
			JOIN %[4]s gfw ON gfw.filmwork_id = fw.id
			JOIN %[5]s g ON g.id = gfw.genre_id
			WHERE %[6]s
		) movie_rows
		ORDER BY %[7]s`,
		t.filmWork, t.personFilmWork, t.person, t.filmWorkGenre, t.genre, where, orderBy)
}

func (t tables) moviesSince(since time.Time) (string, []any) {
	return t.movieQuery("fw.modified >= $1", "modified, id"), []any{since}
}

func (t tables) moviesByID(ids []string) (string, []any) {
	return t.movieQuery("fw.id::text = ANY($1)", "id"), []any{pq.Array(ids)}
}

func (t tables) personsSince(since time.Time) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("p.id::text AS id", "p.full_name", "p.birth_date", "p.modified", "pfw.film_work_id::text AS film_work_id", "pfw.role")
	sb.From(sb.As(t.person, "p"))
	sb.JoinWithOption(sqlbuilder.LeftJoin, sb.As(t.personFilmWork, "pfw"), "pfw.person_id = p.id")
	sb.Where(sb.GreaterEqualThan("p.modified", since))
	sb.OrderBy("p.modified", "p.id")
	return sb.Build()
}

func (t tables) genresSince(since time.Time) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id::text AS id", "name", "description", "modified")
	sb.From(t.genre)
	sb.Where(sb.GreaterEqualThan("modified", since))
	sb.OrderBy("modified", "id")
	return sb.Build()
}

// changedIDs pages through ids of table changed since since, keyed on (modified, id).
func changedIDs(table string, since time.Time, after *keyRow, limit int) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id::text AS id", "modified")
	sb.From(table)
	sb.Where(sb.GreaterEqualThan("modified", since))
	if after != nil {
		sb.Where(sb.Or(
			sb.GreaterThan("modified", after.Modified),
			sb.And(sb.Equal("modified", after.Modified), sb.GreaterThan("id::text", after.ID)),
		))
	}
	sb.OrderBy("modified", "id::text")
	sb.Limit(limit)
	return sb.Build()
}

// linkedMovieIDs selects the film works linked to ids through a join table.
func linkedMovieIDs(joinTable, movieColumn, keyColumn string, ids []string) (string, []any) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(movieColumn + "::text")
	sb.Distinct()
	sb.From(joinTable)
	sb.Where(sb.In(keyColumn+"::text", sqlbuilder.Flatten(ids)...))
	return sb.Build()
}
