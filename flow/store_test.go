// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package flow_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/flowlabs-tech/labflow/core"
	"github.com/flowlabs-tech/labflow/core/client"
	"github.com/flowlabs-tech/labflow/core/dbrest"
	"github.com/flowlabs-tech/labflow/core/kss"
	"github.com/flowlabs-tech/labflow/flow"
)

// testStore emulates the row-level REST interface in memory: equality and
// in-list filters, column projection, ordering by id and representation
// returns. Just enough of the dialect for the handlers under test.
type testStore struct {
	server *httptest.Server

	mu          sync.Mutex
	tables      map[string][]map[string]interface{}
	nextID      map[string]int
	failStatus  int
	failMessage string
}

func newTestStore(t *testing.T) *testStore {
	s := &testStore{
		tables: map[string][]map[string]interface{}{},
		nextID: map[string]int{},
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.server.Close)
	return s
}

func (s *testStore) seed(table string, rows ...map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		s.insert(table, row)
	}
}

// failWith makes every subsequent data request fail with the given status
// and store message.
func (s *testStore) failWith(status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = status
	s.failMessage = message
}

// rows returns a deep-enough copy of the table for assertions.
func (s *testStore) rows(table string) []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]map[string]interface{}, 0, len(s.tables[table]))
	for _, row := range s.tables[table] {
		copied := map[string]interface{}{}
		for key, value := range row {
			copied[key] = value
		}
		result = append(result, copied)
	}
	return result
}

func (s *testStore) insert(table string, row map[string]interface{}) map[string]interface{} {
	if _, ok := row["id"]; !ok {
		s.nextID[table]++
		row["id"] = s.nextID[table]
	} else if id, ok := row["id"].(int); ok && id > s.nextID[table] {
		s.nextID[table] = id
	}
	if table == "orders" {
		if _, ok := row["status"]; !ok {
			row["status"] = false
		}
	}
	s.tables[table] = append(s.tables[table], row)
	return row
}

func (s *testStore) handle(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("apikey") == "" || !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		writeStoreJSON(w, http.StatusUnauthorized, map[string]interface{}{"message": "No API key found in request"})
		return
	}
	s.mu.Lock()
	failStatus, failMessage := s.failStatus, s.failMessage
	s.mu.Unlock()
	if failStatus != 0 {
		writeStoreJSON(w, failStatus, map[string]interface{}{"message": failMessage})
		return
	}

	table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
	if table == r.URL.Path || strings.Contains(table, "/") {
		writeStoreJSON(w, http.StatusNotFound, map[string]interface{}{"message": "unknown path"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	query := r.URL.Query()

	switch r.Method {
	case http.MethodGet:
		rows := s.match(table, query)
		if query.Get("order") == "id.asc" {
			sort.Slice(rows, func(i, j int) bool { return idOf(rows[i]) < idOf(rows[j]) })
		}
		if limit := query.Get("limit"); limit != "" {
			if n, err := strconv.Atoi(limit); err == nil && n < len(rows) {
				rows = rows[:n]
			}
		}
		writeStoreJSON(w, http.StatusOK, project(rows, query.Get("select")))

	case http.MethodPost:
		var incoming []map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&incoming); err != nil {
			writeStoreJSON(w, http.StatusBadRequest, map[string]interface{}{"message": err.Error()})
			return
		}
		inserted := make([]map[string]interface{}, 0, len(incoming))
		for _, row := range incoming {
			inserted = append(inserted, s.insert(table, row))
		}
		writeStoreJSON(w, http.StatusCreated, inserted)

	case http.MethodPatch:
		var patch map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeStoreJSON(w, http.StatusBadRequest, map[string]interface{}{"message": err.Error()})
			return
		}
		updated := []map[string]interface{}{}
		for _, row := range s.match(table, query) {
			for key, value := range patch {
				row[key] = value
			}
			updated = append(updated, row)
		}
		writeStoreJSON(w, http.StatusOK, updated)

	default:
		writeStoreJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{"message": "unsupported method"})
	}
}

// match applies the eq. and in.() filters from the query. The returned slice
// aliases the stored rows so PATCH mutates in place.
func (s *testStore) match(table string, query url.Values) []map[string]interface{} {
	rows := []map[string]interface{}{}
	for _, row := range s.tables[table] {
		if matches(row, query) {
			rows = append(rows, row)
		}
	}
	return rows
}

func matches(row map[string]interface{}, query url.Values) bool {
	for column, values := range query {
		switch column {
		case "select", "limit", "order":
			continue
		}
		predicate := values[0]
		switch {
		case strings.HasPrefix(predicate, "eq."):
			if dbrest.ValueString(row[column]) != strings.TrimPrefix(predicate, "eq.") {
				return false
			}
		case strings.HasPrefix(predicate, "in.("):
			list := strings.TrimSuffix(strings.TrimPrefix(predicate, "in.("), ")")
			found := false
			for _, candidate := range strings.Split(list, ",") {
				if dbrest.ValueString(row[column]) == candidate {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func project(rows []map[string]interface{}, selectList string) []map[string]interface{} {
	if selectList == "" || selectList == "*" {
		return rows
	}
	columns := strings.Split(selectList, ",")
	projected := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		out := map[string]interface{}{}
		for _, column := range columns {
			out[column] = row[column]
		}
		projected = append(projected, out)
	}
	return projected
}

func idOf(row map[string]interface{}) int {
	id, _ := strconv.Atoi(dbrest.ValueString(row["id"]))
	return id
}

func writeStoreJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu            sync.Mutex
	notifications []notification
}

type notification struct {
	resource  string
	operation core.Operation
	payload   map[string]interface{}
}

func (n *recordingNotifier) Notify(resource string, operation core.Operation, payload []byte) {
	row := map[string]interface{}{}
	json.Unmarshal(payload, &row)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification{resource, operation, row})
}

func (n *recordingNotifier) all() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notification{}, n.notifications...)
}

// testBackend bundles everything a handler test needs.
type testBackend struct {
	store    *testStore
	router   *mux.Router
	client   client.Client
	notifier *recordingNotifier
}

type backendOptions struct {
	agentURL   string
	useStorage bool
}

func newTestBackend(t *testing.T, options backendOptions) *testBackend {
	store := newTestStore(t)
	router := mux.NewRouter()
	notifier := &recordingNotifier{}

	builder := &flow.Builder{
		DB:       dbrest.New(store.server.URL, "test-service-key"),
		Router:   router,
		Notifier: notifier,
		AgentURL: options.agentURL,
	}
	if options.useStorage {
		driver, err := kss.NewLocalFilesystem(router, t.TempDir(),
			url.URL{Scheme: "http", Host: "localhost"}, []byte("test-secret"))
		if err != nil {
			t.Fatal(err)
		}
		builder.KSS = driver
	}
	flow.New(builder)

	return &testBackend{
		store:    store,
		router:   router,
		client:   client.NewWithRouter(router),
		notifier: notifier,
	}
}

func mustJSON(t *testing.T, payload interface{}) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// postExpectError posts a JSON body and decodes the error envelope, asserting
// the expected status.
func (b *testBackend) postExpectError(t *testing.T, path string, payload interface{}, wantStatus int) map[string]interface{} {
	status, _, body, err := b.client.WithHeader("Content-Type", "application/json").
		RawRequest(http.MethodPost, path, nil, mustJSON(t, payload))
	if err != nil {
		t.Fatal(err)
	}
	if status != wantStatus {
		t.Fatalf("got status %d want %d: %s", status, wantStatus, string(body))
	}
	envelope := map[string]interface{}{}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("error response is not JSON: %s", string(body))
	}
	return envelope
}
