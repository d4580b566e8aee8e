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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flowlabs-tech/labflow/core"
	"github.com/flowlabs-tech/labflow/core/dbrest"
)

func TestInsertRecordFlipsOrder(t *testing.T) {
	b := newTestBackend(t, backendOptions{})
	b.store.seed("orders", map[string]interface{}{"patient_id": "patient-1", "test": "CBC"})

	var response struct {
		Data         []map[string]interface{} `json:"data"`
		UpdatedOrder map[string]interface{}   `json:"updated_order"`
	}
	status, err := b.client.RawPost("/insert-record", map[string]interface{}{
		"patient_id": "patient-1",
		"order_id":   1,
		"content":    "hemoglobin normal",
	}, &response)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, http.StatusCreated, status)
	if assert.Len(t, response.Data, 1) {
		assert.Equal(t, "hemoglobin normal", response.Data[0]["content"])
		assert.Equal(t, float64(1), response.Data[0]["order_id"])
	}
	assert.Equal(t, true, response.UpdatedOrder["status"])

	orders := b.store.rows("orders")
	assert.Equal(t, true, orders[0]["status"])

	notifications := b.notifier.all()
	if assert.Len(t, notifications, 2) {
		assert.Equal(t, "record", notifications[0].resource)
		assert.Equal(t, core.OperationCreate, notifications[0].operation)
		assert.Equal(t, "order", notifications[1].resource)
		assert.Equal(t, core.OperationUpdate, notifications[1].operation)
	}
}

func TestInsertRecordUnknownOrder(t *testing.T) {
	b := newTestBackend(t, backendOptions{})

	var response struct {
		Data         []map[string]interface{} `json:"data"`
		UpdatedOrder map[string]interface{}   `json:"updated_order"`
	}
	status, err := b.client.RawPost("/insert-record", map[string]interface{}{
		"patient_id": "patient-1",
		"order_id":   999,
		"content":    "orphaned result",
	}, &response)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, http.StatusCreated, status)
	assert.Len(t, response.Data, 1)
	assert.Nil(t, response.UpdatedOrder)
}

func TestInsertRecordRequiresJSON(t *testing.T) {
	b := newTestBackend(t, backendOptions{})

	form := url.Values{}
	form.Set("patient_id", "patient-1")
	form.Set("order_id", "1")
	form.Set("content", "hello")
	status, _, _, err := b.client.RawRequest(http.MethodPost, "/insert-record",
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		[]byte(form.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, http.StatusUnsupportedMediaType, status)
}

func TestCreateRecordForm(t *testing.T) {
	b := newTestBackend(t, backendOptions{})
	b.store.seed("orders", map[string]interface{}{"patient_id": "patient-1", "test": "CBC"})

	form := url.Values{}
	form.Set("patient_id", "patient-1")
	form.Set("order_id", "1")
	form.Set("content", "hemoglobin normal")
	var response struct {
		Data map[string]interface{} `json:"data"`
	}
	status, err := b.client.RawPostWithHeader("/create-record",
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
		[]byte(form.Encode()), &response)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "hemoglobin normal", response.Data["content"])
	// the form's order_id string was coerced to a number
	assert.Equal(t, float64(1), response.Data["order_id"])

	// create-record does not touch the order
	orders := b.store.rows("orders")
	assert.Equal(t, false, orders[0]["status"])
}

func TestCreateRecordValidation(t *testing.T) {
	b := newTestBackend(t, backendOptions{})

	envelope := b.postExpectError(t, "/create-record", map[string]interface{}{
		"patient_id": "patient-1",
		"order_id":   "not-a-number",
		"content":    "x",
	}, http.StatusBadRequest)
	assert.Equal(t, "missing or invalid fields", envelope["error"])
	details := envelope["details"].([]interface{})
	assert.Len(t, details, 1)
	assert.Contains(t, details[0], "order_id")
}

func TestGetRecordsByPatient(t *testing.T) {
	content := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/good":
			w.Write([]byte("stored content"))
		default:
			http.Error(w, "gone", http.StatusInternalServerError)
		}
	}))
	defer content.Close()

	b := newTestBackend(t, backendOptions{})
	b.store.seed("records",
		map[string]interface{}{"patient_id": "patient-1", "order_id": 1, "url": content.URL + "/good"},
		map[string]interface{}{"patient_id": "patient-1", "order_id": 2, "url": content.URL + "/gone"},
		map[string]interface{}{"patient_id": "patient-1", "order_id": 3},
		map[string]interface{}{"patient_id": "someone-else", "order_id": 4, "url": content.URL + "/good"},
	)

	var response struct {
		Data []dbrest.Row `json:"data"`
	}
	status, err := b.client.RawPost("/get-records-by-patient",
		map[string]interface{}{"patient_id": "patient-1"}, &response)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, http.StatusOK, status)
	if !assert.Len(t, response.Data, 3) {
		return
	}

	assert.Equal(t, "stored content", response.Data[0]["content"])
	assert.NotContains(t, response.Data[0], "content_error")

	assert.Nil(t, response.Data[1]["content"])
	assert.Contains(t, response.Data[1]["content_error"], "Failed to fetch")

	assert.Nil(t, response.Data[2]["content"])
	assert.Equal(t, "record has no stored url", response.Data[2]["content_error"])
}

func TestGetRecordsByPatientValidation(t *testing.T) {
	b := newTestBackend(t, backendOptions{})

	envelope := b.postExpectError(t, "/get-records-by-patient",
		map[string]interface{}{}, http.StatusBadRequest)
	assert.Equal(t, "missing or invalid fields", envelope["error"])
}
