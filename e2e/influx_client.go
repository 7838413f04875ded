//go:build e2e

package e2e

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxClient reads back what the metrics sink wrote during a run.
type InfluxClient struct {
	bucket string
	client influxdb2.Client
	query  api.QueryAPI
}

func NewInfluxClient(url, org, bucket, token string) *InfluxClient {
	c := influxdb2.NewClient(url, token)
	return &InfluxClient{bucket: bucket, client: c, query: c.QueryAPI(org)}
}

// Count returns the number of points of measurement carrying field. The
// simulation clock is not the wall clock so the range starts at the epoch.
func (c *InfluxClient) Count(ctx context.Context, measurement, field string) (int, error) {
	flux := fmt.Sprintf(`from(bucket:%q) |> range(start: 1970-01-01T00:00:00Z) |> filter(fn: (r) => r._measurement == %q and r._field == %q)`,
		c.bucket, measurement, field)
	res, err := c.query.Query(ctx, flux)
	if err != nil {
		return 0, err
	}
	defer res.Close()
	n := 0
	for res.Next() {
		n++
	}
	return n, res.Err()
}

// Value returns the first value of field in measurement.
func (c *InfluxClient) Value(ctx context.Context, measurement, field string) (any, error) {
	flux := fmt.Sprintf(`from(bucket:%q) |> range(start: 1970-01-01T00:00:00Z) |> filter(fn: (r) => r._measurement == %q and r._field == %q)`,
		c.bucket, measurement, field)
	res, err := c.query.Query(ctx, flux)
	if err != nil {
		return nil, err
	}
	defer res.Close()
	if !res.Next() {
		return nil, fmt.Errorf("no %s.%s point", measurement, field)
	}
	return res.Record().Value(), nil
}

func (c *InfluxClient) Close() { c.client.Close() }
