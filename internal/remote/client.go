// Package remote is the gateway to the spreadsheet-shaped remote store. The
// store holds one document per user with three row-oriented regions —
// transactions, categories, and meta — behind a coarse, rate-limited CRUD
// API. The gateway is a stateless translator: it maps one entity to and from
// one row and owns the retry policy, so callers only ever see a transient
// error after retries are exhausted, or a permanent one immediately.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "moneta/internal/errors"
	"moneta/internal/logger"
)

const (
	regionTransactions = "transactions"
	regionCategories   = "categories"
	regionMeta         = "meta"
)

// errRowExists signals an append that collided with an existing row id; the
// caller falls back to an update, making inserts idempotent.
var errRowExists = &apperrors.AppError{
	Code:       "REMOTE_ROW_EXISTS",
	Message:    "Row already exists",
	StatusCode: http.StatusConflict,
}

// RowError reports a single remote row that could not be decoded. The fetch
// that produced it still succeeds; the bad row is the caller's to log and
// skip so one malformed row never aborts a whole cycle.
type RowError struct {
	Region string
	Index  int
	Err    error
}

func (e RowError) Error() string {
	return fmt.Sprintf("%s row %d: %v", e.Region, e.Index, e.Err)
}

// BatchResult reports the outcome of one chunk of a batched write. IDs are
// the entity ids in the chunk; Err is nil when the whole chunk committed.
type BatchResult struct {
	IDs []string
	Err error
}

// Client talks to the remote store. MaxAttempts, BackoffBase, and BatchSize
// have sensible defaults and are exported so tests can shrink them.
type Client struct {
	baseURL    string
	apiKey     string
	documentID string
	httpClient *http.Client
	log        *zap.SugaredLogger

	// MaxAttempts bounds how often a transiently failing call is tried.
	MaxAttempts int
	// BackoffBase is the first retry delay; it doubles per attempt.
	BackoffBase time.Duration
	// BatchSize is the chunk size for batched writes.
	BatchSize int
}

// NewClient creates a gateway for the given document.
func NewClient(baseURL, apiKey, documentID string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		documentID:  documentID,
		httpClient:  httpClient,
		log:         logger.Get(),
		MaxAttempts: 4,
		BackoffBase: 250 * time.Millisecond,
		BatchSize:   25,
	}
}

// DocumentID returns the identifier of the bound remote document.
func (c *Client) DocumentID() string { return c.documentID }

func (c *Client) regionURL(region string) string {
	return fmt.Sprintf("%s/v1/documents/%s/regions/%s/rows", c.baseURL, c.documentID, region)
}

// do performs one JSON request with retry-and-backoff on transient failures.
// Network errors, 429, and 5xx responses are transient; auth rejections and
// missing documents/regions are permanent and surface immediately. A 404 on
// DELETE is success: the row is already gone.
func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternal, err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.BackoffBase << (attempt - 1)
			c.log.Debugw("retrying remote call", "method", method, "url", url,
				"attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return apperrors.Wrap(apperrors.ErrRemoteUnavailable, ctx.Err())
			case <-time.After(delay):
			}
		}

		var reader *bytes.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		} else {
			reader = bytes.NewReader(nil)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternal, err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.apiKey != "" {
			req.Header.Set("X-API-Key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return apperrors.Wrap(apperrors.ErrRemoteUnavailable, ctx.Err())
			}
			lastErr = apperrors.Wrap(apperrors.ErrRemoteUnavailable, err)
			continue
		}

		retry, done := c.handleResponse(method, resp, out, &lastErr)
		if done {
			return lastErr
		}
		if !retry {
			break
		}
	}
	return lastErr
}

// handleResponse classifies one HTTP response. It returns retry=true for
// transient statuses and done=true when the call is settled (success or a
// permanent failure stored in *lastErr).
func (c *Client) handleResponse(method string, resp *http.Response, out any, lastErr *error) (retry, done bool) {
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		*lastErr = nil
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				*lastErr = apperrors.Wrap(apperrors.ErrRemoteSchema, fmt.Errorf("decoding response: %w", err))
			}
		}
		return false, true

	case resp.StatusCode == http.StatusTooManyRequests:
		*lastErr = apperrors.WithMessage(apperrors.ErrRemoteRateLimited,
			fmt.Sprintf("remote returned %d", resp.StatusCode))
		return true, false

	case resp.StatusCode >= 500:
		*lastErr = apperrors.WithMessage(apperrors.ErrRemoteUnavailable,
			fmt.Sprintf("remote returned %d", resp.StatusCode))
		return true, false

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		*lastErr = apperrors.Wrap(apperrors.ErrRemoteAuth,
			fmt.Errorf("remote returned %d", resp.StatusCode))
		return false, true

	case resp.StatusCode == http.StatusNotFound:
		if method == http.MethodDelete {
			// Deleting an already-absent row is success.
			*lastErr = nil
			return false, true
		}
		*lastErr = apperrors.Wrap(apperrors.ErrRemoteSchema,
			fmt.Errorf("remote returned 404"))
		return false, true

	case resp.StatusCode == http.StatusConflict:
		*lastErr = errRowExists
		return false, true

	default:
		*lastErr = apperrors.Wrap(apperrors.ErrRemoteSchema,
			fmt.Errorf("remote returned %d", resp.StatusCode))
		return false, true
	}
}

type rowsPayload struct {
	Rows [][]string `json:"rows"`
}

type rowPayload struct {
	Row []string `json:"row"`
}

// fetchRows retrieves all rows of a region.
func (c *Client) fetchRows(ctx context.Context, region string) ([][]string, error) {
	var out rowsPayload
	if err := c.do(ctx, http.MethodGet, c.regionURL(region), nil, &out); err != nil {
		return nil, err
	}
	return out.Rows, nil
}

// appendRows appends rows to a region in a single call.
func (c *Client) appendRows(ctx context.Context, region string, rows [][]string) error {
	return c.do(ctx, http.MethodPost, c.regionURL(region), rowsPayload{Rows: rows}, nil)
}

// putRow upserts a single keyed row.
func (c *Client) putRow(ctx context.Context, region, id string, row []string) error {
	return c.do(ctx, http.MethodPut, c.regionURL(region)+"/"+id, rowPayload{Row: row}, nil)
}

// deleteRow removes a single keyed row.
func (c *Client) deleteRow(ctx context.Context, region, id string) error {
	return c.do(ctx, http.MethodDelete, c.regionURL(region)+"/"+id, nil, nil)
}

// ReadMeta returns the value stored under key in the meta region, or the
// empty string when the key is absent.
func (c *Client) ReadMeta(ctx context.Context, key string) (string, error) {
	rows, err := c.fetchRows(ctx, regionMeta)
	if err != nil {
		return "", err
	}
	for _, row := range rows {
		if len(row) >= 2 && row[0] == key {
			return row[1], nil
		}
	}
	return "", nil
}

// WriteMeta upserts key=value into the meta region.
func (c *Client) WriteMeta(ctx context.Context, key, value string) error {
	return c.putRow(ctx, regionMeta, key, []string{key, value})
}

// chunk splits rows into BatchSize-sized chunks so a partial failure only
// affects the failing chunk.
func (c *Client) chunk(rows [][]string) [][][]string {
	size := c.BatchSize
	if size <= 0 {
		size = 25
	}
	var chunks [][][]string
	for start := 0; start < len(rows); start += size {
		end := start + size
		if end > len(rows) {
			end = len(rows)
		}
		chunks = append(chunks, rows[start:end])
	}
	return chunks
}

// appendChunked appends rows chunk by chunk, reporting per-chunk outcomes.
// A chunk that collides with existing row ids falls back to per-row upserts,
// keeping inserts idempotent.
func (c *Client) appendChunked(ctx context.Context, region string, rows [][]string) []BatchResult {
	var results []BatchResult
	for _, chunk := range c.chunk(rows) {
		ids := make([]string, len(chunk))
		for i, row := range chunk {
			ids[i] = row[0]
		}

		err := c.appendRows(ctx, region, chunk)
		if err == errRowExists {
			err = nil
			for _, row := range chunk {
				if putErr := c.putRow(ctx, region, row[0], row); putErr != nil {
					err = putErr
					break
				}
			}
		}
		results = append(results, BatchResult{IDs: ids, Err: err})
	}
	return results
}
