// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package flow implements the lab-order edge handlers: create orders, attach
records as inline content or uploaded files with signed URLs, look up orders
and records, list the test catalog and trigger the external agent call.

Each handler is a straight-line sequence: parse input, validate, call the
data or storage gateway, shape a JSON response. Handlers share no mutable
state, so they are safe to run in parallel across requests.
*/
package flow

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/flowlabs-tech/labflow/core"
	"github.com/flowlabs-tech/labflow/core/dbrest"
	"github.com/flowlabs-tech/labflow/core/kss"
	"github.com/flowlabs-tech/labflow/core/logger"
	"github.com/flowlabs-tech/labflow/core/notify"
	"github.com/flowlabs-tech/labflow/core/rest"
)

// table and resource names in the remote store
const (
	ordersTable  = "orders"
	recordsTable = "records"
	testsTable   = "tests"
)

// Backend wires the lab-order handlers onto a router. It is constructed once
// during process initialization; its gateways are shared read-only across
// concurrent requests.
type Backend struct {
	db         *dbrest.Client
	kss        kss.Driver
	notifier   core.Notifier
	agentURL   string
	httpClient *http.Client
}

// Builder is a builder helper for the Backend
type Builder struct {
	// DB is the data gateway for the row-level REST interface. This is mandatory.
	DB *dbrest.Client
	// Router is a mux router. This is mandatory.
	Router *mux.Router
	// KSS is the storage driver for uploaded record payloads. Without it, the
	// upload endpoint reports a configuration error. This is optional.
	KSS kss.Driver
	// Notifier receives resource notifications for modifying operations.
	// Defaults to the log notifier. This is optional.
	Notifier core.Notifier
	// AgentURL is the base URL of the external processing service. Without it,
	// the call-agent endpoint reports a configuration error. This is optional.
	AgentURL string
}

// New realizes the backend and adds the actual routes to the router.
func New(bb *Builder) *Backend {
	if bb.DB == nil {
		panic("DB is missing")
	}
	if bb.Router == nil {
		panic("Router is missing")
	}
	notifier := bb.Notifier
	if notifier == nil {
		notifier = notify.Log{}
	}
	b := &Backend{
		db:         bb.DB,
		kss:        bb.KSS,
		notifier:   notifier,
		agentURL:   bb.AgentURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
	b.handleRoutes(bb.Router)
	return b
}

// handleRoutes adds all endpoint handlers. CORS comes from one policy table
// keyed by endpoint, not from per-handler header literals.
func (b *Backend) handleRoutes(router *mux.Router) {
	nillog := logger.FromContext(nil)

	routes := []struct {
		endpoint string
		methods  []string
		compress bool
		handler  http.HandlerFunc
	}{
		{"/call-agent", []string{http.MethodPost}, false, b.callAgent},
		{"/create-order", []string{http.MethodPost}, false, b.createOrder},
		{"/create-record", []string{http.MethodPost}, false, b.createRecord},
		{"/insert-record", []string{http.MethodPost}, false, b.insertRecord},
		{"/get-order", []string{http.MethodGet}, false, b.getOrder},
		{"/get-orders", []string{http.MethodGet}, true, b.getOrders},
		{"/get-patient-tests", []string{http.MethodGet, http.MethodPost}, true, b.getPatientTests},
		{"/get-records-by-patient", []string{http.MethodPost}, true, b.getRecordsByPatient},
		{"/list-tests", []string{http.MethodGet}, true, b.listTests},
		{"/upload-record-and-link-order", []string{http.MethodPost}, false, b.uploadRecordAndLinkOrder},
	}

	for _, route := range routes {
		nillog.Debugln("handle route:", route.endpoint, route.methods)
		var handler http.Handler = route.handler
		if route.compress {
			handler = handlers.CompressHandler(handler)
		}
		handler = rest.WithCORS(rest.NewPolicy(route.methods...), handler)
		router.Handle(route.endpoint, handler).
			Methods(append(route.methods, http.MethodOptions)...)
	}
	// accept the order id as a trailing path segment as well
	router.Handle("/get-order/{id}",
		rest.WithCORS(rest.NewPolicy(http.MethodGet), http.HandlerFunc(b.getOrder))).
		Methods(http.MethodGet, http.MethodOptions)

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest.WriteJSON(w, http.StatusMethodNotAllowed,
			map[string]interface{}{"error": "method not allowed"}, nil)
	})
}

// notify publishes a resource notification. Failures are the notifier's
// problem, never the caller's.
func (b *Backend) notify(resource string, operation core.Operation, row dbrest.Row) {
	if row == nil {
		return
	}
	payload, err := json.Marshal(row)
	if err != nil {
		return
	}
	b.notifier.Notify(resource, operation, payload)
}
