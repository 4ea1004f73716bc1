package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallConfig = `{"gauge_mm": 200, "heads": ["ap_head"], "variable_modules": ["solid_body"], "budget_ceiling": 2, "search": {"workers": 1}}`

func TestHandlerRunsSearch(t *testing.T) {
	resp, err := handler(context.Background(), events.LambdaFunctionURLRequest{
		Body: `{"config": ` + smallConfig + `}`,
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp.Body), &res))
	assert.Equal(t, 3.0, res["configurations"])
}

func TestHandlerBase64YAML(t *testing.T) {
	body, err := json.Marshal(map[string]string{
		"config_yaml": "gauge_mm: 200\nheads: [ap_head]\nbudget_ceiling: 1\n",
	})
	require.NoError(t, err)
	resp, err := handler(context.Background(), events.LambdaFunctionURLRequest{
		Body:            base64.StdEncoding.EncodeToString(body),
		IsBase64Encoded: true,
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode, resp.Body)
}

func TestHandlerRejections(t *testing.T) {
	tests := []struct {
		name  string
		event events.LambdaFunctionURLRequest
		code  int
	}{
		{"bad base64", events.LambdaFunctionURLRequest{Body: "%%%", IsBase64Encoded: true}, http.StatusBadRequest},
		{"bad json", events.LambdaFunctionURLRequest{Body: "{"}, http.StatusBadRequest},
		{"missing config", events.LambdaFunctionURLRequest{Body: "{}"}, http.StatusBadRequest},
		{"invalid config", events.LambdaFunctionURLRequest{Body: `{"config": {"gauge_mm": 1, "heads": ["ap_head"]}}`}, http.StatusBadRequest},
		{"unknown module", events.LambdaFunctionURLRequest{Body: `{"config": {"gauge_mm": 200, "heads": ["warp_head"]}}`}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := handler(context.Background(), tt.event)
			require.NoError(t, err)
			assert.Equal(t, tt.code, resp.StatusCode)
			assert.Contains(t, resp.Body, `"error"`)
		})
	}
}

func TestHandlerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp, err := handler(ctx, events.LambdaFunctionURLRequest{Body: `{"config": ` + smallConfig + `}`})
	require.NoError(t, err)
	assert.Equal(t, http.StatusGatewayTimeout, resp.StatusCode)
}
