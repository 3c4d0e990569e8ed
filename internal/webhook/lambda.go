package webhook

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/url"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Runs the handler behind API Gateway. Blocks for the lifetime of the Lambda runtime.
func Lambda(logLevel zerolog.Level) {
	zerolog.SetGlobalLevel(logLevel)

	settings, err := LoadSettings(true)
	if err != nil {
		log.Error().Err(err).Msg("failed to load settings")
		return
	}

	service, err := NewService(context.Background(), settings)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialise service")
		return
	}
	defer service.Close()

	lambda.Start(service.Handler.HandleAPIGateway)
}

// Adapts an API Gateway proxy event to a webhook call.
func (handler *Handler) HandleAPIGateway(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			log.Warn().Err(err).Msg("failed to decode request body")
			return apiGatewayResponse(Response{StatusCode: http.StatusBadRequest, Body: "Invalid body encoding"}), nil
		}
		body = string(decoded)
	}

	query := url.Values{}
	for key, values := range event.MultiValueQueryStringParameters {
		query[key] = values
	}
	for key, value := range event.QueryStringParameters {
		if _, ok := query[key]; !ok {
			query.Set(key, value)
		}
	}

	res := handler.Handle(ctx, Request{
		Method:     event.HTTPMethod,
		Path:       event.Path,
		Query:      query,
		Body:       body,
		RemoteAddr: event.RequestContext.Identity.SourceIP,
	})

	return apiGatewayResponse(res), nil
}

func apiGatewayResponse(res Response) events.APIGatewayProxyResponse {
	headers := map[string]string{"Content-Type": "text/plain; charset=utf-8"}
	if res.StatusCode == http.StatusMethodNotAllowed {
		headers["Allow"] = http.MethodPost
	}
	return events.APIGatewayProxyResponse{
		StatusCode: res.StatusCode,
		Headers:    headers,
		Body:       res.Body,
	}
}
