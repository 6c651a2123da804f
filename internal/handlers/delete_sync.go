package handlers

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"

	"storefront/internal/metrics"
	"storefront/internal/reconcile"
)

// Response is the JSON body returned by both delete-sync entry points.
type Response struct {
	Success   bool               `json:"success"`
	Processed int                `json:"processed"`
	Deleted   int                `json:"deleted"`
	Failed    int                `json:"failed"`
	Details   []reconcile.Result `json:"details"`
	Error     string             `json:"error,omitempty"`
}

type Runner interface {
	Run(ctx context.Context) (reconcile.Summary, error)
}

// DeleteSync serves the catalog delete reconciliation Lambdas.
type DeleteSync struct {
	runner  Runner
	metrics *metrics.Metrics
	logger  *zap.Logger
	pushURL string
	pushJob string
}

func NewDeleteSync(runner Runner, m *metrics.Metrics, logger *zap.Logger, pushURL, pushJob string) *DeleteSync {
	return &DeleteSync{runner: runner, metrics: m, logger: logger, pushURL: pushURL, pushJob: pushJob}
}

func (h *DeleteSync) run(ctx context.Context) (Response, error) {
	start := time.Now()
	sum, err := h.runner.Run(ctx)
	if h.metrics != nil {
		h.metrics.ObserveRun(err == nil, sum.Processed, time.Since(start))
		if perr := h.metrics.Push(ctx, h.pushURL, h.pushJob); perr != nil {
			h.logger.Warn("metrics push failed", zap.Error(perr))
		}
	}
	if err != nil {
		h.logger.Error("delete sync run failed", zap.Error(err))
		return Response{Success: false, Error: err.Error()}, err
	}

	if sum.Details == nil {
		sum.Details = []reconcile.Result{}
	}
	return Response{
		Success:   true,
		Processed: sum.Processed,
		Deleted:   sum.Deleted,
		Failed:    sum.Failed,
		Details:   sum.Details,
	}, nil
}

// Handle is triggered by an EventBridge schedule. A fatal run is returned
// as a Lambda error.
func (h *DeleteSync) Handle(ctx context.Context, _ events.CloudWatchEvent) (Response, error) {
	return h.run(ctx)
}

// HandleHTTP is the manual trigger behind API Gateway.
func (h *DeleteSync) HandleHTTP(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if m := req.RequestContext.HTTP.Method; m != "" && m != "POST" {
		return errResp(405, "method not allowed")
	}
	resp, err := h.run(ctx)
	if err != nil {
		return errResp(500, err.Error())
	}
	return jsonResp(200, resp)
}

// Unavailable stands in for DeleteSync when startup failed, so every
// invocation reports the startup error instead of the function crashing.
type Unavailable struct {
	Err error
}

func (u Unavailable) Handle(context.Context, events.CloudWatchEvent) (Response, error) {
	return Response{Success: false, Error: u.Err.Error()}, u.Err
}

func (u Unavailable) HandleHTTP(context.Context, events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	return errResp(500, u.Err.Error())
}
