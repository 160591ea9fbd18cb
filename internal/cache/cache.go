package cache

import (
	"context"
	"time"

	"attn/backend/internal/domain"
)

type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.ForecastReport, bool, error)
	Set(ctx context.Context, key string, value *domain.ForecastReport, ttl time.Duration) error
}

type NoopReportCache struct{}

func (NoopReportCache) Get(_ context.Context, _ string) (*domain.ForecastReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) Set(_ context.Context, _ string, _ *domain.ForecastReport, _ time.Duration) error {
	return nil
}
