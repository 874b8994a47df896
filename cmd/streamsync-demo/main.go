// Command streamsync-demo wires a handful of scripted fakesource.Source
// instances through streamsync.New, prints every emitted packet, and serves
// Prometheus metrics. Grounded on cmd/driver/main.go's zap setup,
// promhttp.Handler() mount, and http.Server wiring.
package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/warpcomdev/streamsync/internal/fakesource"
	"github.com/warpcomdev/streamsync/internal/streamsync"
)

var startMetric = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "streamsync_demo_start",
	Help: "Start timestamp of the demo process (unix).",
})

func demoScript(startAt float64, count int, step float64) []fakesource.Frame {
	frames := make([]fakesource.Frame, count)
	for i := range frames {
		frames[i] = fakesource.Frame{Timestamp: startAt + float64(i)*step}
	}
	return frames
}

func main() {
	fmt.Println("Entering program")

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()

	startMetric.Set(float64(time.Now().Unix()))

	scripts := [][]fakesource.Frame{
		demoScript(1.0, 120, 1.0/15.0),
		demoScript(1.0, 120, 1.0/15.0),
		demoScript(1.0, 120, 1.0/12.0),
	}

	factory := func(sourceID int, url string) streamsync.VideoCapture {
		return fakesource.New(scripts[sourceID], fakesource.WithPacing(20*time.Millisecond))
	}

	cfg := streamsync.Config{
		Sources:                []string{"cam0", "cam1", "cam2"},
		MaxInitialStreamOffset: streamsync.DefaultMaxInitialStreamOffset,
		MaxReadErrors:          streamsync.DefaultMaxReadErrors,
		OutputCapacity:         4,
	}

	engine, err := streamsync.New(logger, factory, cfg)
	if err != nil {
		log.Fatalf("streamsync.New: %v", err)
	}
	defer engine.Close()

	go func() {
		for {
			packet := engine.GetFramePacket()
			for i, rec := range packet {
				fmt.Printf("source=%d status=%s timestamp=%.3f\n", i, rec.Status, rec.Timestamp)
			}
			packet.Free()
		}
	}()

	http.Handle("/metrics", promhttp.Handler())

	fmt.Println("Listening on port :8080")
	srv := &http.Server{
		Addr:           ":8080",
		Handler:        http.DefaultServeMux,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   7 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	log.Fatal(srv.ListenAndServe())
}
