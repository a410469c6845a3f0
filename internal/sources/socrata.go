package sources

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/propplyai/propply-ai-sub002/internal/config"
	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

// SocrataClient talks to a Socrata SODA host (NYC open data). Rate-limit and
// server errors are retried with exponential backoff before a dataset is
// declared unavailable.
type SocrataClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewSocrataClient creates the shared client for all NYC adapters.
func NewSocrataClient(cfg config.SocrataConfig, syncCfg config.SyncConfig, logger *zap.Logger) *SocrataClient {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(syncCfg.RetryCount).
		SetRetryWaitTime(syncCfg.RetryWait).
		SetRetryMaxWaitTime(syncCfg.RetryMaxWait).
		SetHeader("Accept", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	if cfg.AppToken != "" {
		client.SetHeader("X-App-Token", cfg.AppToken)
	}

	return &SocrataClient{httpClient: client, logger: logger}
}

// Fetch pulls one page of a resource. dataset is the internal name used for
// error attribution; resource is the Socrata resource id.
func (c *SocrataClient) Fetch(ctx context.Context, dataset, resource, where string, limit, offset int) ([]sourceRow, error) {
	var rows []sourceRow
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"$where":  where,
			"$limit":  strconv.Itoa(limit),
			"$offset": strconv.Itoa(offset),
			// stable ordering keeps offset pagination consistent between pages
			"$order": ":id",
		}).
		SetResult(&rows).
		Get("/resource/" + resource + ".json")

	if err != nil {
		c.logger.Error("Socrata request failed",
			zap.String("dataset", dataset),
			zap.String("resource", resource),
			zap.Error(err),
		)
		return nil, &domain.SourceError{Dataset: dataset, Err: err}
	}
	if resp.IsError() {
		c.logger.Error("Socrata returned error status",
			zap.String("dataset", dataset),
			zap.String("resource", resource),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, &domain.SourceError{
			Dataset:    dataset,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("unexpected status %s", resp.Status()),
		}
	}

	return rows, nil
}
