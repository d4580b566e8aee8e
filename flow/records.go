// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package flow

import (
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/flowlabs-tech/labflow/core"
	"github.com/flowlabs-tech/labflow/core/dbrest"
	"github.com/flowlabs-tech/labflow/core/logger"
	"github.com/flowlabs-tech/labflow/core/rest"
	"github.com/flowlabs-tech/labflow/core/validate"
)

var createRecordSpec = []validate.Field{
	{Name: "patient_id", Kind: validate.NonEmptyText, Required: true},
	{Name: "order_id", Kind: validate.Integer, Required: true},
	{Name: "content", Kind: validate.Text, Required: true},
}

// createRecord inserts a record row with inline content. It tolerates JSON
// and form bodies.
func (b *Backend) createRecord(w http.ResponseWriter, r *http.Request) {
	b.handleCreateRecord(w, r, false, false)
}

// insertRecord is the stricter variant: JSON only, and it additionally flips
// the referenced order's status to complete.
func (b *Backend) insertRecord(w http.ResponseWriter, r *http.Request) {
	b.handleCreateRecord(w, r, true, true)
}

// handleCreateRecord inserts a record and optionally marks the order as
// complete. The two writes are not atomic; the status update is idempotent,
// so a caller observing the eventual-consistency window can simply retry.
func (b *Backend) handleCreateRecord(w http.ResponseWriter, r *http.Request, jsonOnly, flipOrder bool) {
	ctx := r.Context()
	if jsonOnly {
		if err := rest.RequireJSON(r); err != nil {
			rest.WriteErr(w, err)
			return
		}
	}
	fields, err := rest.ParseFields(r)
	if err != nil {
		rest.WriteErr(w, err)
		return
	}
	values, err := validate.Validate(fields, createRecordSpec)
	if err != nil {
		rest.WriteErr(w, err)
		return
	}
	orderID := values.Int("order_id")

	rows, err := b.db.Insert(ctx, recordsTable, []dbrest.Row{{
		"patient_id": values.String("patient_id"),
		"order_id":   orderID,
		"content":    values.String("content"),
	}})
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("insert record failed")
		rest.WriteErr(w, err)
		return
	}
	record := rows[0]
	b.notify("record", core.OperationCreate, record)

	if !flipOrder {
		rest.WriteJSON(w, http.StatusCreated, map[string]interface{}{"data": record}, nil)
		return
	}

	updatedOrder, found, err := b.db.Update(ctx, ordersTable,
		dbrest.Filter{"id": strconv.Itoa(orderID)}, dbrest.Row{"status": true})
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("update order status failed")
		rest.WriteErr(w, err)
		return
	}
	if found {
		b.notify("order", core.OperationUpdate, updatedOrder)
	}
	rest.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"data":          rows,
		"updated_order": nullable(updatedOrder, found),
	}, nil)
}

var patientSpec = []validate.Field{
	{Name: "patient_id", Kind: validate.NonEmptyText, Required: true},
}

// getRecordsByPatient returns the patient's records, each augmented by
// fetching its stored url's content inline. The fetches run concurrently and
// faults stay isolated per item: a failed fetch yields a content_error field,
// never a failed response.
func (b *Backend) getRecordsByPatient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := rest.RequireJSON(r); err != nil {
		rest.WriteErr(w, err)
		return
	}
	fields, err := rest.ParseFields(r)
	if err != nil {
		rest.WriteErr(w, err)
		return
	}
	values, err := validate.Validate(fields, patientSpec)
	if err != nil {
		rest.WriteErr(w, err)
		return
	}

	records, err := b.db.Select(ctx, recordsTable,
		dbrest.Filter{"patient_id": values.String("patient_id")}, nil, 0, "id.asc")
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("records query failed")
		rest.WriteErr(w, err)
		return
	}

	result := make([]dbrest.Row, len(records))
	var wg sync.WaitGroup
	for i, record := range records {
		wg.Add(1)
		go func(i int, record dbrest.Row) {
			defer wg.Done()
			result[i] = b.fetchRecordContent(r, record)
		}(i, record)
	}
	wg.Wait()
	rest.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": result}, nil)
}

// fetchRecordContent resolves the record's stored url into inline content.
func (b *Backend) fetchRecordContent(r *http.Request, record dbrest.Row) dbrest.Row {
	rlog := logger.FromContext(r.Context())
	out := dbrest.Row{}
	for key, value := range record {
		out[key] = value
	}
	recordURL, _ := record["url"].(string)
	if recordURL == "" {
		out["content"] = nil
		out["content_error"] = "record has no stored url"
		return out
	}

	request, err := http.NewRequestWithContext(r.Context(), http.MethodGet, recordURL, nil)
	if err != nil {
		out["content"] = nil
		out["content_error"] = "Fetch error: " + err.Error()
		return out
	}
	response, err := b.httpClient.Do(request)
	if err != nil {
		rlog.WithError(err).Errorln("could not fetch record url", recordURL)
		out["content"] = nil
		out["content_error"] = "Fetch error: " + err.Error()
		return out
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		rlog.Errorln("could not fetch record url", recordURL, "status", response.StatusCode)
		out["content"] = nil
		out["content_error"] = "Failed to fetch: " + response.Status
		return out
	}
	content, err := io.ReadAll(response.Body)
	if err != nil {
		out["content"] = nil
		out["content_error"] = "Fetch error: " + err.Error()
		return out
	}
	out["content"] = string(content)
	return out
}

func nullable(row dbrest.Row, found bool) interface{} {
	if !found {
		return nil
	}
	return row
}
