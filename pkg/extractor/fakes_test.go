package extractor

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/Ramsey-B/fern/pkg/database"
)

type response struct {
	items   []any
	err     error
	rowsErr error
}

type fakeRows struct {
	items  []any
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.items) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) StructScan(dest any) error {
	item := r.items[r.pos-1]
	if err, ok := item.(error); ok {
		return err
	}
	reflect.ValueOf(dest).Elem().Set(reflect.ValueOf(item))
	return nil
}

func (r *fakeRows) Err() error   { return r.err }
func (r *fakeRows) Close() error { r.closed = true; return nil }

type fakeConn struct {
	responses []response
	queries   []string
	args      [][]any
	rows      []*fakeRows
	closed    int
	closeErr  error
}

func (c *fakeConn) next(query string, args []any) response {
	c.queries = append(c.queries, query)
	c.args = append(c.args, args)
	if len(c.responses) == 0 {
		return response{err: errors.New("unexpected query: " + strings.TrimSpace(query))}
	}
	r := c.responses[0]
	c.responses = c.responses[1:]
	return r
}

func (c *fakeConn) Query(_ context.Context, query string, args ...any) (database.Rows, error) {
	r := c.next(query, args)
	if r.err != nil {
		return nil, r.err
	}
	rows := &fakeRows{items: r.items, err: r.rowsErr}
	c.rows = append(c.rows, rows)
	return rows, nil
}

func (c *fakeConn) Select(_ context.Context, dest any, query string, args ...any) error {
	r := c.next(query, args)
	if r.err != nil {
		return r.err
	}
	slice := reflect.ValueOf(dest).Elem()
	for _, item := range r.items {
		slice.Set(reflect.Append(slice, reflect.ValueOf(item)))
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closed++
	return c.closeErr
}

type fakeConnector struct {
	conn     *fakeConn
	failures []error
	attempts int
}

func (f *fakeConnector) Conn(context.Context) (database.Conn, error) {
	f.attempts++
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return nil, err
	}
	return f.conn, nil
}
