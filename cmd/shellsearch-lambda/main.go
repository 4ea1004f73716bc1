// Command shellsearch-lambda runs one search per Lambda function URL request.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/GoSim-25-26J-441/shell-search/internal/catalogue"
	"github.com/GoSim-25-26J-441/shell-search/internal/search"
	"github.com/GoSim-25-26J-441/shell-search/pkg/config"
	"github.com/GoSim-25-26J-441/shell-search/pkg/logger"
	"github.com/GoSim-25-26J-441/shell-search/pkg/utils"
)

var jsonHeader = map[string]string{
	"Content-Type": "application/json",
}

// searchRequest carries the search config either as an object or as YAML text.
type searchRequest struct {
	Config     json.RawMessage `json:"config"`
	ConfigYAML string          `json:"config_yaml"`
}

func handler(ctx context.Context, event events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return errResp(http.StatusBadRequest, "invalid base64 body")
		}
		body = string(decoded)
	}

	var req searchRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return errResp(http.StatusBadRequest, "invalid JSON: "+err.Error())
	}
	doc := req.ConfigYAML
	if doc == "" {
		doc = string(req.Config)
	}
	if doc == "" || doc == "null" {
		return errResp(http.StatusBadRequest, "missing config")
	}

	cfg, err := config.ParseSearchYAMLString(doc)
	if err != nil {
		return errResp(http.StatusBadRequest, err.Error())
	}

	cat := catalogue.Default()
	model, err := search.NewReferenceModel(cat, cfg)
	if err != nil {
		return errResp(http.StatusBadRequest, err.Error())
	}
	runID := utils.GenerateRunID()
	driver, err := search.NewDriver(model, cat, cfg, search.WithRunID(runID), search.WithLogger(logger.Default))
	if err != nil {
		return errResp(http.StatusBadRequest, err.Error())
	}

	res, err := driver.RunParallel(ctx, cfg.Search.Workers)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return errResp(http.StatusGatewayTimeout, "search did not finish before the invocation deadline")
		}
		if search.IsContractViolation(err) {
			return errResp(http.StatusUnprocessableEntity, err.Error())
		}
		return errResp(http.StatusInternalServerError, err.Error())
	}

	var out bytes.Buffer
	if err := search.WriteJSON(&out, res); err != nil {
		return errResp(http.StatusInternalServerError, err.Error())
	}
	return events.LambdaFunctionURLResponse{StatusCode: http.StatusOK, Headers: jsonHeader, Body: out.String()}, nil
}

func errResp(code int, msg string) (events.LambdaFunctionURLResponse, error) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	return events.LambdaFunctionURLResponse{StatusCode: code, Headers: jsonHeader, Body: string(body)}, nil
}

func main() {
	logger.SetDefault(logger.New(os.Getenv("LOG_LEVEL"), os.Stderr))
	lambda.Start(handler)
}
