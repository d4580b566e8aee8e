// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package flow

import (
	"bytes"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/flowlabs-tech/labflow/core"
	"github.com/flowlabs-tech/labflow/core/logger"
	"github.com/flowlabs-tech/labflow/core/rest"
	"github.com/flowlabs-tech/labflow/core/validate"
)

var callAgentSpec = []validate.Field{
	{Name: "patientId", Kind: validate.NonEmptyText, Required: true},
}

// callAgent proxies a processing request for one patient to the external
// agent service and forwards its JSON body. The agent is a dependent remote:
// its failures surface as 502, never as a store fault.
func (b *Backend) callAgent(w http.ResponseWriter, r *http.Request) {
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
	values, err := validate.Validate(fields, callAgentSpec)
	if err != nil {
		rest.WriteErr(w, err)
		return
	}
	if b.agentURL == "" {
		rest.WriteErr(w, core.ConfigurationError("agent service is not configured"))
		return
	}

	agentURL := b.agentURL + "/patient/" + url.PathEscape(values.String("patientId"))
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, agentURL, bytes.NewReader([]byte("{}")))
	if err != nil {
		rest.WriteErr(w, core.InternalError(err))
		return
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := b.httpClient.Do(request)
	if err != nil {
		logger.FromContext(ctx).WithError(err).Errorln("agent request failed")
		rest.WriteErr(w, core.DependencyError("external API request failed", err.Error()))
		return
	}
	defer response.Body.Close()
	if response.StatusCode < 200 || response.StatusCode > 299 {
		logger.FromContext(ctx).Errorln("agent request failed with status", response.StatusCode)
		rest.WriteErr(w, core.DependencyError("external API request failed",
			map[string]interface{}{"status": response.StatusCode, "statusText": response.Status}))
		return
	}

	var data interface{}
	if err := json.NewDecoder(response.Body).Decode(&data); err != nil {
		rest.WriteErr(w, core.DependencyError("external API returned malformed JSON", err.Error()))
		return
	}
	rest.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "API call successful",
		"data":    data,
	}, nil)
}
