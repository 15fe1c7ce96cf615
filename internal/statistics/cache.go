package statistics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	// ChartKeyPrefix namespaces rendered charts. Keys are formatted as "stats_chart:{kind}".
	ChartKeyPrefix = "stats_chart:"

	// ChartTTL keeps a chart until slightly after the next hourly render.
	ChartTTL = 90 * time.Minute

	// ChartActivity is the submission activity chart.
	ChartActivity = "activity"
	// ChartPoints is the users and points chart.
	ChartPoints = "points"
)

// ErrUnknownChart is returned for a chart kind that is not rendered.
var ErrUnknownChart = errors.New("unknown chart")

// ChartKinds lists every chart the stats worker renders.
var ChartKinds = []string{ChartActivity, ChartPoints}

// ChartCache stores rendered chart PNGs in Redis.
type ChartCache struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewChartCache creates a chart cache on the given client.
func NewChartCache(client rueidis.Client, logger *zap.Logger) *ChartCache {
	return &ChartCache{
		client: client,
		logger: logger.Named("chart_cache"),
	}
}

// Get returns a cached chart, or nil when none is stored.
func (c *ChartCache) Get(ctx context.Context, kind string) ([]byte, error) {
	data, err := c.client.Do(ctx, c.client.B().Get().Key(ChartKeyPrefix+kind).Build()).AsBytes()
	if rueidis.IsRedisNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached chart: %w", err)
	}

	return data, nil
}

// Set stores a chart for ChartTTL.
func (c *ChartCache) Set(ctx context.Context, kind string, png []byte) error {
	err := c.client.Do(ctx,
		c.client.B().Set().Key(ChartKeyPrefix+kind).Value(rueidis.BinaryString(png)).Ex(ChartTTL).Build(),
	).Error()
	if err != nil {
		return fmt.Errorf("failed to cache chart: %w", err)
	}

	c.logger.Debug("Cached chart", zap.String("kind", kind), zap.Int("bytes", len(png)))

	return nil
}

// Build renders the chart of the given kind.
func (b *ChartBuilder) Build(kind string) ([]byte, error) {
	var (
		buf *bytes.Buffer
		err error
	)

	switch kind {
	case ChartActivity:
		buf, err = b.BuildActivity()
	case ChartPoints:
		buf, err = b.BuildPoints()
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownChart, kind)
	}
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// RefreshCharts renders every chart kind and caches the result.
func RefreshCharts(ctx context.Context, cache *ChartCache, builder *ChartBuilder) error {
	for _, kind := range ChartKinds {
		png, err := builder.Build(kind)
		if err != nil {
			return err
		}

		if err := cache.Set(ctx, kind, png); err != nil {
			return err
		}
	}

	return nil
}
