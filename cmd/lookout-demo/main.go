// README: Offline demo; replays a compass sweep through one session against the live catalog.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"time"

	"lookout/internal/ai"
	"lookout/internal/catalog"
	"lookout/internal/config"
	"lookout/internal/geo"
	"lookout/internal/modules/location"
	"lookout/internal/modules/session"
	"lookout/internal/modules/targeting"
)

func main() {
	lat := flag.Float64("lat", 51.5007, "Latitude of the viewpoint")
	lng := flag.Float64("lng", -0.1246, "Longitude of the viewpoint")
	step := flag.Float64("step", 30, "Heading increment in degrees")
	delay := flag.Duration("delay", 1500*time.Millisecond, "Pause between headings")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := catalog.NewClient(catalog.NewWikipediaProvider(cfg.Catalog.Endpoint, cfg.Catalog.UserAgent, cfg.Catalog.Timeout), cfg.Catalog.Limit)

	var summarizer targeting.Summarizer
	if key := cfg.AI.GeminiKey; key != "" {
		provider, err := ai.NewGeminiProvider(ctx, key)
		if err != nil {
			log.Fatalf("Failed to initialize AI provider: %v", err)
		}
		defer provider.Close()
		summarizer = provider
	}

	src := location.NewReplaySource(sweep(geo.Coordinate{Lat: *lat, Lng: *lng}, *step, *delay))
	s := session.New("demo", "demo", session.Config{
		RadiusM:    cfg.Targeting.RadiusM,
		ThresholdM: cfg.Targeting.ThresholdM,
		Tolerance:  cfg.Targeting.Tolerance,
		Enrich:     summarizer != nil,
	}, src.PushSource, session.Deps{
		Catalog:   client,
		Loader:    targeting.NewLoader(client, summarizer),
		Publisher: &printer{},
	})

	runErr := make(chan error, 1)
	go func() { runErr <- s.Run(ctx) }()

	if err := waitForSubscribers(ctx, src.PushSource); err != nil {
		log.Fatal(err)
	}
	if err := src.Play(ctx); err != nil {
		log.Printf("replay stopped: %v", err)
	}
	// Let the last detail fetch land before shutting down.
	time.Sleep(*delay)

	s.Close()
	if err := <-runErr; err != nil && ctx.Err() == nil {
		log.Printf("session: %v", err)
	}
}

// sweep places the device at pos and turns it through a full circle.
func sweep(pos geo.Coordinate, step float64, delay time.Duration) []location.Step {
	steps := []location.Step{{Position: &pos}}
	for h := 0.0; h < 360; h += step {
		heading := h
		steps = append(steps, location.Step{Heading: &heading, Delay: delay})
	}
	return steps
}

func waitForSubscribers(ctx context.Context, src *location.PushSource) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if p, h := src.Subscribers(); p > 0 && h > 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// printer prints a line whenever the targeted place changes.
type printer struct {
	mu   sync.Mutex
	last string
}

func (p *printer) Publish(_ context.Context, snap session.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	line := fmt.Sprintf("%d candidates, nothing targeted", len(snap.Candidates))
	if d := snap.Result.Targeted; d != nil {
		line = fmt.Sprintf("-> %s (%.0fm, bearing %.0f)", d.Title, d.DistanceM, d.Bearing)
		if snap.Result.IsLoading {
			line += " [loading]"
		}
	}
	if line == p.last {
		return nil
	}
	p.last = line
	fmt.Printf("heading %5.1f  %s\n", snap.Heading, line)
	if d := snap.Result.Targeted; d != nil && !snap.Result.IsLoading {
		fmt.Printf("              %s\n", d.Extract)
		if d.Summary != "" {
			fmt.Printf("              AI: %s\n", d.Summary)
		}
	}
	return nil
}
