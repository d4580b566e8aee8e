// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package rest

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/flowlabs-tech/labflow/core"
)

// errorEnvelope is the uniform JSON failure body. Callers always receive a
// JSON body, even on failure.
type errorEnvelope struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// WriteJSON serializes payload as JSON with the content-type header set.
// Extra headers are merged in without overriding content-type. A nil payload
// with a 2xx no-content status omits the body entirely.
func WriteJSON(w http.ResponseWriter, status int, payload interface{}, extra http.Header) {
	for key, values := range extra {
		if http.CanonicalHeaderKey(key) == "Content-Type" {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	if payload == nil && (status == http.StatusNoContent || status == http.StatusResetContent) {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	jsonData, err := json.MarshalWithOption(payload, json.DisableHTMLEscape())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal server error"}`))
		return
	}
	w.WriteHeader(status)
	w.Write(jsonData)
}

// WriteErr converts a classified error into the JSON error envelope with the
// status code matching its kind.
func WriteErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	envelope := errorEnvelope{Error: "internal server error"}
	if e, ok := err.(*core.Error); ok {
		status = statusOf(e.Kind)
		envelope.Error = e.Message
		envelope.Details = e.Details
	}
	WriteJSON(w, status, envelope, nil)
}

func statusOf(kind core.ErrorKind) int {
	switch kind {
	case core.KindParse, core.KindValidation:
		return http.StatusBadRequest
	case core.KindUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	case core.KindNotFound:
		return http.StatusNotFound
	case core.KindDependency:
		return http.StatusBadGateway
	default:
		// write failures, ambiguous lookups, missing configuration
		return http.StatusInternalServerError
	}
}
