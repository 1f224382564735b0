package prices

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"github.com/vignesh-goutham/coinledger/pkg/apperrors"
	"github.com/vignesh-goutham/coinledger/pkg/types"
)

// Messages of the refresh and export responses.
const (
	MsgRefreshed    = "Top cryptocurrency prices fetched and saved successfully"
	MsgStoreFailed  = "Prices fetched but saving to the database failed"
	MsgClearFailed  = "Clearing the database failed before prices were fetched"
	MsgFetchFailed  = "Error fetching cryptocurrency prices"
	MsgExported     = "Export completed successfully."
	MsgExportFailed = "Error while exporting data."
)

var corsHeaders = map[string]string{
	"Access-Control-Allow-Headers": "*",
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Methods": "OPTIONS,POST,GET",
	"Content-Type":                 "application/json",
}

type refreshBody struct {
	Message      string            `json:"message"`
	CryptoPrices []types.CoinQuote `json:"crypto_prices,omitempty"`
	DBOperation  string            `json:"db_operation,omitempty"`
	DBError      string            `json:"db_error,omitempty"`
	Error        string            `json:"error,omitempty"`
	Timestamp    string            `json:"timestamp"`
}

// Handle runs one refresh and reports it as an API Gateway response. Every
// outcome is a response; the returned error is always nil.
func (r *Refresher) Handle(ctx context.Context) (events.APIGatewayProxyResponse, error) {
	res, err := r.Run(ctx)
	body := refreshBody{Timestamp: r.now().UTC().Format(runTimestampLayout)}
	status := http.StatusOK

	switch {
	case err == nil:
		body.Message = MsgRefreshed
		body.CryptoPrices = res.Quotes
		body.DBOperation = res.Message
	case apperrors.KindOf(err) == apperrors.KindUpstream:
		body.Message = MsgFetchFailed
		body.Error = err.Error()
		status = http.StatusInternalServerError
	case res == nil || res.Quotes == nil:
		body.Message = MsgClearFailed
		body.DBError = err.Error()
		status = http.StatusInternalServerError
	default:
		body.Message = MsgStoreFailed
		body.CryptoPrices = res.Quotes
		body.DBError = err.Error()
		status = http.StatusInternalServerError
	}

	if err != nil {
		r.logger.Error("price refresh failed", zap.Error(err))
	} else {
		r.logger.Info("price refresh completed", zap.Int("stored", res.Stored), zap.Int("cleared", res.Cleared))
	}
	return response(status, corsHeaders, body), nil
}

// Handle runs one export and reports it as an API Gateway response.
func (e *Exporter) Handle(ctx context.Context) (events.APIGatewayProxyResponse, error) {
	res, err := e.Run(ctx)
	headers := map[string]string{"Content-Type": "application/json"}
	if err != nil {
		e.logger.Error("export failed", zap.Error(err))
		return response(http.StatusInternalServerError, headers, map[string]string{
			"error": MsgExportFailed,
		}), nil
	}
	return response(http.StatusOK, headers, map[string]string{
		"message":      MsgExported,
		"download_url": res.DownloadURL,
	}), nil
}

func response(status int, headers map[string]string, body any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"failed to encode response"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       string(b),
	}
}
