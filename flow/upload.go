// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package flow

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/flowlabs-tech/labflow/core"
	"github.com/flowlabs-tech/labflow/core/dbrest"
	"github.com/flowlabs-tech/labflow/core/kss"
	"github.com/flowlabs-tech/labflow/core/logger"
	"github.com/flowlabs-tech/labflow/core/rest"
	"github.com/flowlabs-tech/labflow/core/validate"
)

// signed URL lifetime for uploaded record payloads
const uploadURLExpiry = time.Hour

var uploadSpec = []validate.Field{
	{Name: "order_id", Kind: validate.Integer, Required: true},
}

// uploadRecordAndLinkOrder serializes the posted data, uploads it to the
// bucket, mints a time-limited signed URL, inserts a record referencing that
// URL and flips the order's status. Storage keys carry a random component, so
// concurrent uploads for the same order never collide.
func (b *Backend) uploadRecordAndLinkOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rlog := logger.FromContext(ctx)
	if err := rest.RequireJSON(r); err != nil {
		rest.WriteErr(w, err)
		return
	}
	fields, err := rest.ParseFields(r)
	if err != nil {
		rest.WriteErr(w, err)
		return
	}
	values, err := validate.Validate(fields, uploadSpec)
	data, hasData := fields["data"]
	if err != nil || !hasData {
		violations := []string{}
		if e, ok := err.(*core.Error); ok {
			violations, _ = e.Details.([]string)
		}
		if !hasData {
			violations = append(violations, "data: data is required")
		}
		rest.WriteErr(w, core.ValidationError("missing or invalid fields", violations))
		return
	}
	if b.kss == nil {
		rest.WriteErr(w, core.ConfigurationError("storage is not configured"))
		return
	}
	orderID := values.Int("order_id")

	payload, err := json.Marshal(data)
	if err != nil {
		rest.WriteErr(w, core.InternalError(err))
		return
	}
	key := fmt.Sprintf("order_%d_%s.json", orderID, uuid.New().String())
	if err := b.kss.UploadData(key, payload, "application/json"); err != nil {
		rlog.WithError(err).Errorln("upload failed for", key)
		rest.WriteErr(w, core.WriteError("failed to upload file to storage", err.Error()))
		return
	}
	tempURL, err := b.kss.GetPreSignedURL(kss.Get, key, uploadURLExpiry)
	if err != nil {
		rlog.WithError(err).Errorln("presign failed for", key)
		rest.WriteErr(w, core.WriteError("failed to create signed URL", err.Error()))
		return
	}

	order, found, err := b.db.SelectOne(ctx, ordersTable,
		dbrest.Filter{"id": strconv.Itoa(orderID)}, []string{"id", "patient_id"})
	if err != nil {
		rlog.WithError(err).Errorln("order query failed")
		rest.WriteErr(w, err)
		return
	}
	if !found {
		rest.WriteErr(w, core.NotFoundError("Order not found"))
		return
	}

	rows, err := b.db.Insert(ctx, recordsTable, []dbrest.Row{{
		"url":        tempURL,
		"order_id":   order["id"],
		"patient_id": order["patient_id"],
	}})
	if err != nil {
		rlog.WithError(err).Errorln("insert record failed")
		rest.WriteErr(w, err)
		return
	}
	record := rows[0]
	b.notify("record", core.OperationCreate, record)

	updatedOrder, found, err := b.db.Update(ctx, ordersTable,
		dbrest.Filter{"id": strconv.Itoa(orderID)}, dbrest.Row{"status": true})
	if err != nil {
		rlog.WithError(err).Errorln("update order status failed")
		rest.WriteErr(w, err)
		return
	}
	if found {
		b.notify("order", core.OperationUpdate, updatedOrder)
	}

	rest.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"record":        record,
		"temp_url":      tempURL,
		"updated_order": nullable(updatedOrder, found),
	}, nil)
}
