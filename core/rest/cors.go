// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package rest

import (
	"net/http"
	"strings"

	"github.com/flowlabs-tech/labflow/core/logger"
)

// Policy describes the CORS surface of a single endpoint. Policies live in
// one table per service instead of per-handler header literals.
type Policy struct {
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         string
}

// DefaultHeaders is the header allow-list shared by all labflow endpoints.
var DefaultHeaders = []string{"Authorization", "apikey", "Content-Type"}

// NewPolicy returns a policy for the given verbs with the default header
// allow-list. OPTIONS is always included.
func NewPolicy(methods ...string) Policy {
	return Policy{
		AllowedMethods: append(methods, http.MethodOptions),
		AllowedHeaders: DefaultHeaders,
		MaxAge:         "86400",
	}
}

// WithCORS wraps a handler with the policy's CORS headers and answers
// preflight OPTIONS requests with an empty 204.
func WithCORS(policy Policy, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(policy.AllowedMethods, ", "))
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(policy.AllowedHeaders, ", "))
		if policy.MaxAge != "" {
			w.Header().Set("Access-Control-Max-Age", policy.MaxAge)
		}

		if r.Method == http.MethodOptions {
			logger.FromContext(r.Context()).Debugln("called route for", r.URL, r.Method, " (handled by CORS middleware)")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		h.ServeHTTP(w, r)
	})
}
