// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package flow

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/flowlabs-tech/labflow/core"
	"github.com/flowlabs-tech/labflow/core/dbrest"
	"github.com/flowlabs-tech/labflow/core/logger"
	"github.com/flowlabs-tech/labflow/core/rest"
	"github.com/flowlabs-tech/labflow/core/validate"
)

var createOrderSpec = []validate.Field{
	{Name: "patient_id", Kind: validate.NonEmptyText, Required: true},
	{Name: "test", Kind: validate.NonEmptyText, Required: true},
}

// createOrder inserts a new order row and returns it with the generated id.
func (b *Backend) createOrder(w http.ResponseWriter, r *http.Request) {
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
	values, err := validate.Validate(fields, createOrderSpec)
	if err != nil {
		rest.WriteErr(w, err)
		return
	}

	rows, err := b.db.Insert(ctx, ordersTable, []dbrest.Row{{
		"patient_id": values.String("patient_id"),
		"test":       values.String("test"),
	}})
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("insert order failed")
		rest.WriteErr(w, err)
		return
	}
	order := rows[0]
	b.notify("order", core.OperationCreate, order)
	rest.WriteJSON(w, http.StatusCreated, map[string]interface{}{"data": order}, nil)
}

// getOrder returns a single order looked up by ?id= or a trailing path
// segment. Order ids are integers; anything else never reaches the store.
func (b *Backend) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.URL.Query().Get("id")
	if id == "" {
		id = mux.Vars(r)["id"]
	}
	if id == "" {
		rest.WriteErr(w, core.ValidationError("missing order id (use ?id= or /get-order/:id)", nil))
		return
	}
	if _, err := strconv.Atoi(id); err != nil {
		rest.WriteErr(w, core.ValidationError("order id must be an integer", nil))
		return
	}

	order, found, err := b.db.SelectOne(ctx, ordersTable, dbrest.Filter{"id": id}, nil)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("order query failed")
		rest.WriteErr(w, err)
		return
	}
	if !found {
		rest.WriteErr(w, core.NotFoundError("Order not found"))
		return
	}
	rest.WriteJSON(w, http.StatusOK, map[string]interface{}{"order": order}, nil)
}

// getOrders returns the full orders projection, ordered by id.
func (b *Backend) getOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orders, err := b.db.Select(ctx, ordersTable, nil, nil, 0, "id.asc")
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("orders query failed")
		// this endpoint proxies the store read raw, so a store fault is a
		// gateway fault here
		if e, ok := err.(*core.Error); ok && e.Kind == core.KindWrite {
			err = core.DependencyError(e.Message, e.Details)
		}
		rest.WriteErr(w, err)
		return
	}
	if orders == nil {
		orders = []dbrest.Row{}
	}
	rest.WriteJSON(w, http.StatusOK, map[string]interface{}{"data": orders}, nil)
}
