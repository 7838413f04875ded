package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/parcelmas/core/factory"
	coremetrics "github.com/kilianp07/parcelmas/core/metrics"
	"github.com/kilianp07/parcelmas/core/metrics/kpi"
	infrakpi "github.com/kilianp07/parcelmas/infra/kpi"
)

// init registers the built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterMetricsSink("prometheus", func(map[string]any) (coremetrics.MetricsSink, error) {
		return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
	})

	_ = coremetrics.RegisterMetricsSink("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			URL    string `json:"url"`
			Token  string `json:"token"`
			Org    string `json:"org"`
			Bucket string `json:"bucket"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c.URL, c.Token, c.Org, c.Bucket), nil
	})

	_ = coremetrics.RegisterMetricsSink("kpi", func(conf map[string]any) (coremetrics.MetricsSink, error) {
		var c struct {
			Path string `json:"path"`
		}
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		var store kpi.Store = kpi.NewMemoryStore()
		if c.Path != "" {
			db, err := infrakpi.NewSQLiteStore(c.Path)
			if err != nil {
				return nil, err
			}
			store = db
		}
		return NewKPISink(store, prometheus.DefaultRegisterer)
	})
}
