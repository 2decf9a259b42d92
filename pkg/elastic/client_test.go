package elastic_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/elastic"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCluster struct {
	mu          sync.Mutex
	indices     map[string]bool
	bulkStatus  int
	bulkReply   string
	bulkBodies  [][]byte
	existsCalls int
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodHead && r.URL.Path == "/":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodHead:
		f.existsCalls++
		if f.indices[r.URL.Path[1:]] {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.URL.Path == "/_bulk":
		body, _ := io.ReadAll(r.Body)
		f.bulkBodies = append(f.bulkBodies, body)
		status := f.bulkStatus
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
		reply := f.bulkReply
		if reply == "" {
			reply = `{"took":1,"errors":false,"items":[]}`
		}
		_, _ = w.Write([]byte(reply))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newClient(t *testing.T, cluster *fakeCluster) *elastic.Client {
	t.Helper()
	server := httptest.NewServer(cluster)
	t.Cleanup(server.Close)

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	client, err := elastic.NewClient(elastic.Config{Addresses: []string{server.URL}}, logger)
	require.NoError(t, err)
	return client
}

func docs() []models.Document {
	return []models.Document{
		{ID: "g1", Modified: time.Now(), Body: map[string]any{"id": "g1", "name": "Drama"}},
		{ID: "g2", Modified: time.Now(), Body: map[string]any{"id": "g2", "name": "Crime"}},
	}
}

func TestBulk_WritesIndexDirectives(t *testing.T) {
	cluster := &fakeCluster{indices: map[string]bool{"genres": true}}
	client := newClient(t, cluster)

	require.NoError(t, client.Bulk(context.Background(), "genres", docs()))

	require.Len(t, cluster.bulkBodies, 1)
	var lines []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(cluster.bulkBodies[0]))
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 4)
	assert.Equal(t, map[string]any{"index": map[string]any{"_index": "genres", "_id": "g1"}}, lines[0])
	assert.Equal(t, "Drama", lines[1]["name"])
	assert.Equal(t, map[string]any{"index": map[string]any{"_index": "genres", "_id": "g2"}}, lines[2])
}

func TestBulk_MissingIndexIsPermanent(t *testing.T) {
	cluster := &fakeCluster{indices: map[string]bool{}}
	client := newClient(t, cluster)

	err := client.Bulk(context.Background(), "movies", docs())

	require.ErrorIs(t, err, elastic.ErrIndexNotFound)
	assert.False(t, elastic.IsRetryable(err))
	assert.Empty(t, cluster.bulkBodies)
}

func TestBulk_ServerErrorIsTransient(t *testing.T) {
	cluster := &fakeCluster{indices: map[string]bool{"movies": true}, bulkStatus: http.StatusServiceUnavailable, bulkReply: `{"error":"unavailable"}`}
	client := newClient(t, cluster)

	err := client.Bulk(context.Background(), "movies", docs())

	var statusErr *elastic.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.True(t, elastic.IsRetryable(err))
}

func TestBulk_ItemFailures(t *testing.T) {
	cluster := &fakeCluster{
		indices: map[string]bool{"persons": true},
		bulkReply: `{"took":3,"errors":true,"items":[
			{"index":{"_index":"persons","_id":"g1","status":201}},
			{"index":{"_index":"persons","_id":"g2","status":400,"error":{"type":"mapper_parsing_exception","reason":"failed to parse"}}}
		]}`,
	}
	client := newClient(t, cluster)

	err := client.Bulk(context.Background(), "persons", docs())

	var bulkErr *elastic.BulkError
	require.ErrorAs(t, err, &bulkErr)
	require.Len(t, bulkErr.Items, 1)
	assert.Equal(t, "g2", bulkErr.Items[0].ID)
	assert.Equal(t, "mapper_parsing_exception", bulkErr.Items[0].Type)
	assert.False(t, elastic.IsRetryable(err))
}

func TestPing(t *testing.T) {
	client := newClient(t, &fakeCluster{})
	assert.NoError(t, client.Ping(context.Background()))
}

func TestEncodeBulk_InvalidDocument(t *testing.T) {
	_, err := elastic.EncodeBulk("genres", []models.Document{{ID: "bad", Body: map[string]any{"ch": make(chan int)}}})
	require.ErrorIs(t, err, elastic.ErrInvalidDocument)
	assert.False(t, elastic.IsRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport", errors.New("dial tcp: connection refused"), true},
		{"too many requests", &elastic.StatusError{StatusCode: 429}, true},
		{"bad request", &elastic.StatusError{StatusCode: 400}, false},
		{"throttled items", &elastic.BulkError{Items: []elastic.ItemError{{Status: 429}}}, true},
		{"mixed items", &elastic.BulkError{Items: []elastic.ItemError{{Status: 429}, {Status: 400}}}, false},
		{"canceled", context.Canceled, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, elastic.IsRetryable(tt.err))
		})
	}
}
