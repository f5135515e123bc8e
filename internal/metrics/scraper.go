package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/alisaviation/mqtt-bridge/internal/models"
)

var ErrUnexpectedStatus = errors.New("unexpected status from metrics endpoint")

// Scraper reads the metrics endpoint back, the way a collector would.
type Scraper struct {
	serverAddress string
	client        *resty.Client
}

func NewScraper(serverAddress string, timeout time.Duration) *Scraper {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "text/plain")
	return &Scraper{
		serverAddress: serverAddress,
		client:        client,
	}
}

// Scrape returns the counters and gauges currently exposed, sorted by name.
func (s *Scraper) Scrape(ctx context.Context) ([]models.Metric, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(s.url())
	if err != nil {
		return nil, fmt.Errorf("scrape failed: %w", err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status())
	}

	var parser expfmt.TextParser
	families, err := parser.TextToMetricFamilies(body)
	if err != nil {
		return nil, fmt.Errorf("parse exposition: %w", err)
	}
	return flatten(families), nil
}

func (s *Scraper) url() string {
	addr := s.serverAddress
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/") + "/metrics"
}

func flatten(families map[string]*dto.MetricFamily) []models.Metric {
	var out []models.Metric
	for name, family := range families {
		for _, m := range family.GetMetric() {
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				out = append(out, models.Metric{Name: name, Value: m.GetCounter().GetValue(), Type: models.Counter})
			case dto.MetricType_GAUGE:
				out = append(out, models.Metric{Name: name, Value: m.GetGauge().GetValue(), Type: models.Gauge})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Find returns the first metric called name.
func Find(metrics []models.Metric, name string) (models.Metric, bool) {
	for _, m := range metrics {
		if m.Name == name {
			return m, true
		}
	}
	return models.Metric{}, false
}
