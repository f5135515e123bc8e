// Command probe scrapes the bridge's metrics endpoint and prints the counters
// and gauges it exposes. It exits non-zero when the endpoint cannot be read,
// which makes it usable as a container health check.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alisaviation/mqtt-bridge/internal/helpers"
	"github.com/alisaviation/mqtt-bridge/internal/metrics"
	"github.com/alisaviation/mqtt-bridge/internal/models"
)

func main() {
	var (
		addr    string
		timeout time.Duration
		all     bool
	)
	flag.StringVar(&addr, "addr", "localhost:9000", "metrics endpoint address")
	flag.DurationVar(&timeout, "timeout", 3*time.Second, "scrape timeout")
	flag.BoolVar(&all, "all", false, "print runtime and process metrics too")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	got, err := metrics.NewScraper(addr, timeout).Scrape(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error scraping metrics:", err)
		os.Exit(1)
	}
	printMetrics(os.Stdout, got, all)
}

func printMetrics(w io.Writer, got []models.Metric, all bool) {
	for _, m := range got {
		if !all && m.Name != metrics.ForwardedName && m.Name != metrics.LastValueName {
			continue
		}
		fmt.Fprintf(w, "%s %s %s\n", m.Name, m.Type, helpers.FormatFloat(m.Value))
	}
}
