package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ragdesk-dev/ragdesk/internal/cli/health"
)

// NewStatusCmd creates the status command
func NewStatusCmd(app *App) *cobra.Command {
	var wait bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check backend and vector store availability",
		Long: `Check whether the backend and its vector store are up.

With --wait, keep polling every 5 seconds until both are healthy. Useful after
a cold start, when the backend answers before its dependencies are ready.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), app, wait, timeout)
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until all services are healthy")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Give up waiting after this long")

	return cmd
}

func runStatus(ctx context.Context, app *App, wait bool, timeout time.Duration) error {
	updates := make(chan health.Snapshot, 1)

	monitor := health.New(app.Client,
		app.Logger.With().Str("component", "health").Logger(),
		health.WithDependency(app.Config.HealthDependency),
		health.WithOnChange(func(s health.Snapshot) {
			// Keep only the latest snapshot
			select {
			case <-updates:
			default:
			}
			updates <- s
		}),
	)

	if wait {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return waitForHealthy(ctx, app, monitor, updates, timeout)
	}

	monitor.Start(ctx)
	defer func() {
		monitor.Stop()
		<-monitor.Done()
	}()

	select {
	case snap := <-updates:
		printSnapshot(app, snap, false)
		return nil
	case <-monitor.Done():
		if snap, ok := latest(updates); ok {
			printSnapshot(app, snap, false)
			return nil
		}
		return ctx.Err()
	}
}

func waitForHealthy(ctx context.Context, app *App, monitor *health.Monitor, updates <-chan health.Snapshot, timeout time.Duration) error {
	monitor.Start(ctx)
	defer func() {
		monitor.Stop()
		<-monitor.Done()
	}()

	var last *health.Snapshot
	for {
		select {
		case snap := <-updates:
			if last == nil || *last != snap {
				printSnapshot(app, snap, true)
			}
			last = &snap
			if snap.AllHealthy {
				return nil
			}
		case <-monitor.Done():
			// The settling check is published before the loop exits
			if snap, ok := latest(updates); ok && snap.AllHealthy {
				printSnapshot(app, snap, true)
				return nil
			}
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("services not healthy after %s", timeout)
			}
			return ctx.Err()
		}
	}
}

func latest(updates <-chan health.Snapshot) (health.Snapshot, bool) {
	select {
	case snap := <-updates:
		return snap, true
	default:
		return health.Snapshot{}, false
	}
}

func printSnapshot(app *App, snap health.Snapshot, waiting bool) {
	fmt.Fprintf(app.Out, "Backend:      %s\n", upDown(snap.BackendUp))
	fmt.Fprintf(app.Out, "%-13s %s\n", app.Config.HealthDependency+":", upDown(snap.DependencyUp))
	switch {
	case snap.AllHealthy:
		fmt.Fprintln(app.Out, "✓ All services healthy")
	case waiting:
		fmt.Fprintln(app.Out, "Waiting for services to become available...")
	default:
		fmt.Fprintln(app.Out, "Some services are unavailable. Run 'ragdesk status --wait' to wait for them.")
	}
}

func upDown(up bool) string {
	if up {
		return "up"
	}
	return "down"
}
