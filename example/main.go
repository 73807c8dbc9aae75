package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/pulsewatch"
)

func main() {
	// start mock server (see mock_server.go)
	go StartMockHealthServer(":9999")
	time.Sleep(100 * time.Millisecond)

	// grid: 2 services × 2 envs = 4 endpoints from one declaration
	grid, err := pulsewatch.NewGrid("API",
		pulsewatch.WithURLTemplate("http://localhost:9999/health?svc={{.svc}}&env={{.env}}"),
		pulsewatch.WithDimensions(map[string][]string{
			"svc": {"users", "orders"},
			"env": {"prod", "staging"},
		}),
		pulsewatch.WithGridJQ(`.status != "down"`),
		pulsewatch.WithGridInterval(5*time.Second),
	)
	if err != nil {
		slog.Error("failed to create grid", "error", err)
		os.Exit(1)
	}

	// a check without URL: the Go function is the whole check
	clock := must(pulsewatch.NewEndpoint("Clock", "",
		pulsewatch.WithCustomCheck("clock-sane", pulsewatch.CheckFunc(
			func(ctx context.Context, in *pulsewatch.CheckInput) (bool, error) {
				return time.Now().Year() >= 2024, nil
			})),
	))

	mock := must(pulsewatch.NewSite("Mock", pulsewatch.WithGrids(grid), pulsewatch.WithEndpoints(clock)))

	github := must(pulsewatch.NewSite("GitHub", pulsewatch.WithEndpoints(
		must(pulsewatch.NewEndpoint("API", "https://api.github.com",
			pulsewatch.WithMustFind("current_user_url"),
		)),
	)))

	pw, err := pulsewatch.New(
		pulsewatch.WithSites(mock, github),
		pulsewatch.WithTitle("Pulsewatch Demo"),
		pulsewatch.WithPollingInterval(10*time.Second),
		pulsewatch.WithPort(8080),
		pulsewatch.WithStateDir(os.TempDir()),
		pulsewatch.WithStatusCallback(func(r pulsewatch.StatusResult) {
			if r.Status == pulsewatch.StatusDown {
				slog.Warn("endpoint down", "site", r.SiteID, "endpoint", r.EndpointID, "error", r.Error)
			}
		}),
		pulsewatch.WithSender(pulsewatch.SenderFunc(func(ctx context.Context, a pulsewatch.Alert) error {
			fmt.Printf("\n%s\n\n", a.Text)
			return nil
		})),
	)
	if err != nil {
		slog.Error("failed to create pulsewatch", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  Pulsewatch Demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println()
	fmt.Println("  Sites:")
	fmt.Println("  • Mock: 4 endpoints (2 services × 2 envs via Grid) + 1 check-only endpoint")
	fmt.Println("  • GitHub: 1 external endpoint")
	fmt.Println()
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := pw.Start(ctx); err != nil {
		slog.Error("pulsewatch error", "error", err)
		os.Exit(1)
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	return v
}
