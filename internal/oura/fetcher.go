package oura

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/3Health-View/backend/internal/oura"

// Getter performs one authenticated provider read.
type Getter interface {
	Get(ctx context.Context, accessToken, path string, params url.Values) (Payload, error)
}

// Request is one named read of a fan-out.
type Request struct {
	Name   string
	Path   string
	Params url.Values
}

type fetchResult struct {
	name    string
	payload Payload
	err     error
}

// Fetcher runs a set of provider reads concurrently on a bounded pool.
type Fetcher struct {
	client Getter
	limit  int
	logger *slog.Logger
}

func NewFetcher(client Getter, limit int, logger *slog.Logger) *Fetcher {
	if limit < 1 {
		limit = 1
	}
	return &Fetcher{client: client, limit: limit, logger: logger}
}

// FetchAll issues every request and waits for all of them. A failing request
// does not cancel its siblings. Results are inspected in request order after
// the barrier; the first failure is returned as a *FetchError and no partial
// results are kept.
func (f *Fetcher) FetchAll(ctx context.Context, accessToken string, reqs []Request) (map[string]Payload, error) {
	results := make([]fetchResult, len(reqs))

	var g errgroup.Group
	g.SetLimit(f.limit)
	for i, req := range reqs {
		g.Go(func() error {
			payload, err := f.fetch(ctx, accessToken, req)
			results[i] = fetchResult{name: req.Name, payload: payload, err: err}
			return nil
		})
	}
	_ = g.Wait()

	payloads := make(map[string]Payload, len(results))
	for _, res := range results {
		if res.err != nil {
			return nil, &FetchError{Source: res.name, Err: res.err}
		}
		payloads[res.name] = res.payload
	}
	return payloads, nil
}

func (f *Fetcher) fetch(ctx context.Context, accessToken string, req Request) (Payload, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "oura.fetch")
	span.SetAttributes(
		attribute.String("oura.series", req.Name),
		attribute.String("oura.path", req.Path),
	)
	defer span.End()

	start := time.Now()
	payload, err := f.client.Get(ctx, accessToken, req.Path, req.Params)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		f.logger.WarnContext(ctx, "oura fetch failed",
			slog.String("series", req.Name),
			slog.Duration("duration", elapsed),
			slog.String("error", err.Error()),
		)
	}
	fetchDuration.WithLabelValues(req.Name, status).Observe(elapsed.Seconds())

	return payload, err
}
