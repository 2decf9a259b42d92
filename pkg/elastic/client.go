// Package elastic writes documents to Elasticsearch with the bulk API.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.opentelemetry.io/otel/attribute"
)

// Config holds Elasticsearch connection configuration
type Config struct {
	Addresses []string
	Username  string
	Password  string
	APIKey    string
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client is the index sink.
type Client struct {
	es     *elasticsearch.Client
	logger ectologger.Logger
}

// NewClient creates a client. Retries are left to the caller's backoff policy.
func NewClient(cfg Config, logger ectologger.Logger) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		APIKey:       cfg.APIKey,
		Transport:    cfg.Transport,
		DisableRetry: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &Client{es: es, logger: logger}, nil
}

// Ping checks the cluster is reachable.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return newStatusError("ping", res)
	}
	return nil
}

// IndexExists reports whether index is present.
func (c *Client) IndexExists(ctx context.Context, index string) (bool, error) {
	res, err := c.es.Indices.Exists([]string{index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return false, fmt.Errorf("index exists check failed: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusNotFound:
		return false, nil
	case res.IsError():
		return false, newStatusError("index exists", res)
	default:
		return true, nil
	}
}

// Bulk upserts docs into index in one request. The index must already exist.
func (c *Client) Bulk(ctx context.Context, index string, docs []models.Document) error {
	ctx, span := tracing.StartSpan(ctx, "elastic.Client.Bulk",
		attribute.String("index", index),
		attribute.Int("documents", len(docs)),
	)
	defer span.End()

	start := time.Now()
	err := c.bulk(ctx, index, docs)
	status := "success"
	if err != nil {
		status = "error"
		tracing.RecordError(span, err)
	}
	metrics.RecordBulk(index, status, len(docs), time.Since(start).Seconds())
	return err
}

func (c *Client) bulk(ctx context.Context, index string, docs []models.Document) error {
	exists, err := c.IndexExists(ctx, index)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrIndexNotFound, index)
	}

	body, err := EncodeBulk(index, docs)
	if err != nil {
		return err
	}

	res, err := c.es.Bulk(bytes.NewReader(body), c.es.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("bulk request failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return newStatusError("bulk", res)
	}

	var parsed bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if !parsed.Errors {
		return nil
	}

	bulkErr := &BulkError{Index: index}
	for _, item := range parsed.Items {
		for _, result := range item {
			if result.Error == nil {
				continue
			}
			bulkErr.Items = append(bulkErr.Items, ItemError{
				ID:     result.ID,
				Status: result.Status,
				Type:   result.Error.Type,
				Reason: result.Error.Reason,
			})
		}
	}
	c.logger.WithContext(ctx).WithFields(map[string]any{
		"index":  index,
		"failed": len(bulkErr.Items),
	}).Warn("Bulk request had item failures")
	return bulkErr
}

type bulkResponse struct {
	Errors bool                         `json:"errors"`
	Items  []map[string]bulkItemResult `json:"items"`
}

type bulkItemResult struct {
	ID     string `json:"_id"`
	Status int    `json:"status"`
	Error  *struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// EncodeBulk renders docs as an NDJSON bulk body of index directives.
func EncodeBulk(index string, docs []models.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		meta := map[string]map[string]string{"index": {"_index": index, "_id": doc.ID}}
		if err := enc.Encode(meta); err != nil {
			return nil, err
		}
		if err := enc.Encode(doc.Body); err != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrInvalidDocument, doc.ID, err)
		}
	}
	return buf.Bytes(), nil
}

func newStatusError(op string, res *esapi.Response) *StatusError {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return &StatusError{Op: op, StatusCode: res.StatusCode, Body: string(body)}
}
