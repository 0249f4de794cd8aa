package recommend

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Artifact paths of the production run.
const (
	ModelArtifact        = "model/model.xgb.json"
	LabelEncoderArtifact = "label_encoder.json"
)

const productionFilter = "tags.production = 'true'"

// MLflowConfig identifies the production run on a tracking server.
type MLflowConfig struct {
	TrackingURI string
	Experiment  string
	RunName     string
	Timeout     time.Duration
}

// MLflowClient resolves the production model run over the tracking server's
// REST API and downloads its artifacts.
type MLflowClient struct {
	client *resty.Client
	cfg    MLflowConfig
	logger *slog.Logger
}

func NewMLflowClient(cfg MLflowConfig, logger *slog.Logger) *MLflowClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.TrackingURI, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetHeader("Accept", "application/json")

	return &MLflowClient{client: client, cfg: cfg, logger: logger}
}

type experimentResponse struct {
	Experiment struct {
		ExperimentID string `json:"experiment_id"`
	} `json:"experiment"`
}

type searchRunsRequest struct {
	ExperimentIDs []string `json:"experiment_ids"`
	Filter        string   `json:"filter"`
}

type searchRunsResponse struct {
	Runs []struct {
		Info struct {
			RunID   string `json:"run_id"`
			RunName string `json:"run_name"`
		} `json:"info"`
		Data struct {
			Tags []struct {
				Key   string `json:"key"`
				Value string `json:"value"`
			} `json:"tags"`
		} `json:"data"`
	} `json:"runs"`
}

// ProductionRunID returns the id of the run tagged production=true with the
// configured run name. When several match, the last one listed wins.
func (c *MLflowClient) ProductionRunID(ctx context.Context) (string, error) {
	var exp experimentResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("experiment_name", c.cfg.Experiment).
		SetResult(&exp).
		Get("/api/2.0/mlflow/experiments/get-by-name")
	if err != nil {
		return "", fmt.Errorf("get experiment %q: %w", c.cfg.Experiment, err)
	}
	if resp.IsError() || exp.Experiment.ExperimentID == "" {
		return "", fmt.Errorf("get experiment %q: status %d: %s", c.cfg.Experiment, resp.StatusCode(), resp.String())
	}

	var runs searchRunsResponse
	resp, err = c.client.R().
		SetContext(ctx).
		SetBody(searchRunsRequest{ExperimentIDs: []string{exp.Experiment.ExperimentID}, Filter: productionFilter}).
		SetResult(&runs).
		Post("/api/2.0/mlflow/runs/search")
	if err != nil {
		return "", fmt.Errorf("search runs: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("search runs: status %d: %s", resp.StatusCode(), resp.String())
	}

	runID := ""
	for _, run := range runs.Runs {
		name := run.Info.RunName
		for _, tag := range run.Data.Tags {
			if tag.Key == "mlflow.runName" {
				name = tag.Value
			}
		}
		if name == c.cfg.RunName {
			runID = run.Info.RunID
		}
	}
	if runID == "" {
		return "", fmt.Errorf("no run named %q tagged production in experiment %q", c.cfg.RunName, c.cfg.Experiment)
	}
	return runID, nil
}

// Artifact downloads one artifact of a run.
func (c *MLflowClient) Artifact(ctx context.Context, runID, path string) ([]byte, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"run_uuid": runID, "path": path}).
		Get("/get-artifact")
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("download %s: status %d", path, resp.StatusCode())
	}
	return resp.Body(), nil
}

// LoadProduction resolves the production run and builds its Recommender.
func (c *MLflowClient) LoadProduction(ctx context.Context) (*Recommender, error) {
	runID, err := c.ProductionRunID(ctx)
	if err != nil {
		return nil, err
	}

	rawModel, err := c.Artifact(ctx, runID, ModelArtifact)
	if err != nil {
		return nil, err
	}
	model, err := ParseModel(bytes.NewReader(rawModel))
	if err != nil {
		return nil, err
	}

	rawEncoder, err := c.Artifact(ctx, runID, LabelEncoderArtifact)
	if err != nil {
		return nil, err
	}
	encoder, err := ParseLabelEncoder(bytes.NewReader(rawEncoder))
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "loaded production model",
		slog.String("run_id", runID),
		slog.String("experiment", c.cfg.Experiment),
		slog.Int("classes", len(encoder.Classes())),
	)
	return New(model, encoder)
}
