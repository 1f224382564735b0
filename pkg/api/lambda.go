package api

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
)

// ProxyHandler adapts a chi router to API Gateway REST proxy events.
type ProxyHandler func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

// NewProxyHandler wraps r for lambda.Start.
func NewProxyHandler(r *chi.Mux) ProxyHandler {
	adapter := chiadapter.New(r)
	return adapter.ProxyWithContext
}

// JobFunc is a Lambda handler that takes no input, like the price refresh
// and export jobs.
type JobFunc func(ctx context.Context) (events.APIGatewayProxyResponse, error)

// JobHandler serves fn over HTTP for the local server, copying the status,
// headers and body of the response it produces.
func JobHandler(fn JobFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := fn(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write([]byte(resp.Body))
	}
}
