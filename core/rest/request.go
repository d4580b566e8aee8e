// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package rest provides the shared request/response plumbing for the labflow
edge handlers: tolerant request field extraction, the JSON response builder
with the error envelope, and the centralized CORS policy table.
*/
package rest

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/flowlabs-tech/labflow/core"
)

// ParseFields extracts a field map from the request, tolerating multiple
// encodings: a JSON body, a form body, or query parameters for bodyless reads.
func ParseFields(r *http.Request) (map[string]interface{}, error) {
	if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Body == nil {
		return queryFields(r), nil
	}

	contentType := r.Header.Get("Content-Type")
	switch {
	case strings.Contains(contentType, "application/json"):
		fields := map[string]interface{}{}
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			return nil, core.ParseError("invalid JSON body")
		}
		return fields, nil
	case strings.Contains(contentType, "application/x-www-form-urlencoded"),
		strings.Contains(contentType, "multipart/form-data"):
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			if err := r.ParseForm(); err != nil {
				return nil, core.ParseError("invalid form body")
			}
		}
		fields := map[string]interface{}{}
		for key, values := range r.PostForm {
			if len(values) > 0 {
				fields[key] = values[0]
			}
		}
		if r.MultipartForm != nil {
			for key, values := range r.MultipartForm.Value {
				if len(values) > 0 {
					fields[key] = values[0]
				}
			}
		}
		return fields, nil
	}
	return nil, core.ParseError("unsupported content type")
}

// RequireJSON rejects requests that do not declare a JSON content type.
func RequireJSON(r *http.Request) error {
	contentType := r.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		return core.UnsupportedMediaError("Content-Type must be application/json")
	}
	return nil
}

func queryFields(r *http.Request) map[string]interface{} {
	fields := map[string]interface{}{}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	return fields
}
