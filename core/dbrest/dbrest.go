// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package dbrest is a minimal client for the managed database's row-level REST
interface (PostgREST dialect). It supports filtered selects, inserts, updates
and an in-list batch select, authenticated with the privileged service key.

The client is constructed once during process initialization and injected into
the request handlers; it is never mutated afterwards, so it is safe to share
across concurrent requests.
*/
package dbrest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/flowlabs-tech/labflow/core"
	"github.com/flowlabs-tech/labflow/core/logger"
)

// Row is one table row as delivered by the REST interface.
type Row map[string]interface{}

// Filter is a set of equality predicates, column name to value.
type Filter map[string]string

// Client talks to the row-level REST interface of one database deployment.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	confErr    error
}

// New creates a client for the given base URL and privileged service key.
// A client built from missing configuration is still returned, but every call
// on it fails with a configuration error. The service must not silently
// operate unauthenticated.
func New(baseURL, serviceKey string) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
	if baseURL == "" || serviceKey == "" {
		logger.Default().Errorln("missing data API URL or service key, all data requests will fail")
		c.confErr = core.ConfigurationError("data gateway is not configured")
	}
	return c
}

// Select returns the rows of table matching the equality filters. Absence of
// matches is not an error, the result is simply empty. A limit of 0 means no
// limit. Order is a PostgREST order expression such as "id.asc" and may be
// empty.
func (c *Client) Select(ctx context.Context, table string, filters Filter, columns []string, limit int, order string) ([]Row, error) {
	if c.confErr != nil {
		return nil, c.confErr
	}
	query := url.Values{}
	query.Set("select", columnList(columns))
	for _, column := range sortedKeys(filters) {
		query.Set(column, "eq."+filters[column])
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if order != "" {
		query.Set("order", order)
	}

	var rows []Row
	if err := c.do(ctx, http.MethodGet, c.tableURL(table, query), nil, "", &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// SelectOne returns the single row matching the filters, or absent when there
// is none. When more than one row matches, it fails with an ambiguous-result
// error rather than silently picking the first; the probe is ordered by the
// primary key so the behavior is deterministic either way.
func (c *Client) SelectOne(ctx context.Context, table string, filters Filter, columns []string) (Row, bool, error) {
	rows, err := c.Select(ctx, table, filters, columns, 2, "id.asc")
	if err != nil {
		return nil, false, err
	}
	switch len(rows) {
	case 0:
		return nil, false, nil
	case 1:
		return rows[0], true, nil
	}
	return nil, false, core.AmbiguousError("multiple rows match a single-row lookup on " + table)
}

// Insert inserts the given rows and returns them with generated fields
// populated. Constraint violations surface as a write error carrying the
// store's message.
func (c *Client) Insert(ctx context.Context, table string, rows []Row) ([]Row, error) {
	if c.confErr != nil {
		return nil, c.confErr
	}
	body, err := json.Marshal(rows)
	if err != nil {
		return nil, core.InternalError(err)
	}
	var inserted []Row
	if err := c.do(ctx, http.MethodPost, c.tableURL(table, nil), body, "return=representation", &inserted); err != nil {
		return nil, err
	}
	return inserted, nil
}

// Update patches the rows matching the filters and returns the updated row.
// A filter matching zero rows is a no-op, not an error, and reports absent.
func (c *Client) Update(ctx context.Context, table string, filters Filter, patch Row) (Row, bool, error) {
	if c.confErr != nil {
		return nil, false, c.confErr
	}
	query := url.Values{}
	for _, column := range sortedKeys(filters) {
		query.Set(column, "eq."+filters[column])
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return nil, false, core.InternalError(err)
	}
	var updated []Row
	if err := c.do(ctx, http.MethodPatch, c.tableURL(table, query), body, "return=representation", &updated); err != nil {
		return nil, false, err
	}
	if len(updated) == 0 {
		return nil, false, nil
	}
	return updated[0], true, nil
}

// SelectBatch fetches the rows whose keyColumn is in the id list and returns
// them as a mapping from id to row. An empty id list short-circuits to an
// empty mapping without a network call; some backends reject a degenerate
// "in ()" filter.
func (c *Client) SelectBatch(ctx context.Context, table, keyColumn string, ids []string, columns []string) (map[string]Row, error) {
	if len(ids) == 0 {
		return map[string]Row{}, nil
	}
	if c.confErr != nil {
		return nil, c.confErr
	}
	query := url.Values{}
	query.Set("select", columnList(columns))
	query.Set(keyColumn, "in.("+strings.Join(ids, ",")+")")

	var rows []Row
	if err := c.do(ctx, http.MethodGet, c.tableURL(table, query), nil, "", &rows); err != nil {
		return nil, err
	}
	result := make(map[string]Row, len(rows))
	for _, row := range rows {
		result[ValueString(row[keyColumn])] = row
	}
	return result, nil
}

// ValueString renders a row value the way it appears in a filter, so that
// integer and text identifiers compare alike.
func ValueString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fmt.Sprintf("%v", value)
}

func (c *Client) tableURL(table string, query url.Values) string {
	tableURL := c.baseURL + "/rest/v1/" + table
	if len(query) > 0 {
		tableURL += "?" + query.Encode()
	}
	return tableURL
}

func (c *Client) do(ctx context.Context, method, rawURL string, body []byte, prefer string, result interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	request, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return core.InternalError(err)
	}
	request.Header.Set("apikey", c.serviceKey)
	request.Header.Set("Authorization", "Bearer "+c.serviceKey)
	request.Header.Set("Accept", "application/json")
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		request.Header.Set("Prefer", prefer)
	}

	rlog := logger.FromContext(ctx)
	rlog.Debugln("dbrest:", method, rawURL)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return core.WriteError("database request failed", err.Error())
	}
	defer response.Body.Close()

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return core.WriteError("database response unreadable", err.Error())
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		rlog.Errorln("dbrest:", method, rawURL, "status", response.StatusCode)
		return core.WriteError("database request failed", storeMessage(data))
	}
	if result == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, result); err != nil {
		return core.WriteError("database response malformed", err.Error())
	}
	return nil
}

// storeMessage extracts the store's own error message so callers can tell a
// constraint violation from an outage.
func storeMessage(data []byte) interface{} {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Message != "" {
		return payload.Message
	}
	return string(data)
}

func columnList(columns []string) string {
	if len(columns) == 0 {
		return "*"
	}
	return strings.Join(columns, ",")
}

func sortedKeys(filters Filter) []string {
	keys := make([]string, 0, len(filters))
	for key := range filters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
