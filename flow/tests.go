// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package flow

import (
	"context"
	"net/http"

	"github.com/flowlabs-tech/labflow/core/dbrest"
	"github.com/flowlabs-tech/labflow/core/join"
	"github.com/flowlabs-tech/labflow/core/logger"
	"github.com/flowlabs-tech/labflow/core/rest"
	"github.com/flowlabs-tech/labflow/core/validate"
)

// listTests returns the test catalog ordered by id. The catalog is read-only
// reference data, so repeated calls yield identical ordered output.
func (b *Backend) listTests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tests, err := b.db.Select(ctx, testsTable, nil, []string{"name", "description"}, 0, "id.asc")
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("tests query failed")
		rest.WriteErr(w, err)
		return
	}
	if tests == nil {
		tests = []dbrest.Row{}
	}
	extra := http.Header{}
	extra.Set("Cache-Control", "no-store")
	rest.WriteJSON(w, http.StatusOK, map[string]interface{}{"tests": tests}, extra)
}

// getPatientTests joins the patient's records against their orders to attach
// each record's test name. The join happens in process: collect the distinct
// order ids, batch-fetch the orders once, merge. A record whose order is
// missing gets a null test instead of failing the response.
func (b *Backend) getPatientTests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method == http.MethodPost {
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
	values, err := validate.Validate(fields, patientSpec)
	if err != nil {
		rest.WriteErr(w, err)
		return
	}

	records, err := b.db.Select(ctx, recordsTable,
		dbrest.Filter{"patient_id": values.String("patient_id")},
		[]string{"id", "order_id", "content"}, 0, "id.asc")
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("records query failed")
		rest.WriteErr(w, err)
		return
	}

	joined, err := join.Resolve(ctx, records, "order_id",
		func(ctx context.Context, ids []string) (map[string]dbrest.Row, error) {
			return b.db.SelectBatch(ctx, ordersTable, "id", ids, []string{"id", "test"})
		}, []string{"test"})
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("orders batch query failed")
		rest.WriteErr(w, err)
		return
	}

	result := make([]dbrest.Row, 0, len(joined))
	for _, row := range joined {
		result = append(result, dbrest.Row{
			"record_id": row["id"],
			"order_id":  row["order_id"],
			"content":   row["content"],
			"test":      row["test"],
		})
	}
	rest.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": result}, nil)
}
