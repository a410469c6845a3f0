package sources

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/propplyai/propply-ai-sub002/internal/config"
	"github.com/propplyai/propply-ai-sub002/internal/domain"
)

// cartoResponse is the Carto SQL API envelope.
type cartoResponse struct {
	Rows []sourceRow `json:"rows"`
}

// CartoClient talks to a Carto SQL host (Philadelphia open data).
type CartoClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewCartoClient creates the shared client for all Philadelphia adapters.
func NewCartoClient(cfg config.CartoConfig, syncCfg config.SyncConfig, logger *zap.Logger) *CartoClient {
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

	return &CartoClient{httpClient: client, logger: logger}
}

// Query runs one SQL statement and returns its rows. dataset is the internal
// name used for error attribution.
func (c *CartoClient) Query(ctx context.Context, dataset, sqlText string) ([]sourceRow, error) {
	var response cartoResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("q", sqlText).
		SetResult(&response).
		Get("/api/v2/sql")

	if err != nil {
		c.logger.Error("Carto request failed",
			zap.String("dataset", dataset),
			zap.Error(err),
		)
		return nil, &domain.SourceError{Dataset: dataset, Err: err}
	}
	if resp.IsError() {
		c.logger.Error("Carto returned error status",
			zap.String("dataset", dataset),
			zap.Int("status_code", resp.StatusCode()),
		)
		return nil, &domain.SourceError{
			Dataset:    dataset,
			StatusCode: resp.StatusCode(),
			Err:        fmt.Errorf("unexpected status %s", resp.Status()),
		}
	}

	return response.Rows, nil
}
