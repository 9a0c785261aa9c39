package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ChuLiYu/fleetstore/internal/config"
	"github.com/ChuLiYu/fleetstore/internal/server"
)

const healthTimeout = 2 * time.Second

var (
	okColor   = color.New(color.FgHiGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed)
	keyColor  = color.New(color.FgCyan)
)

func buildStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration and server status",
		Long:  "Display the effective configuration and probe the server's health service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
			defer cancel()
			serving, probeErr := probeHealth(ctx, cfg.Server.Address)
			showStatus(cmd.OutOrStdout(), cfg, serving, probeErr)
			return nil
		},
	}
	return cmd
}

// probeHealth asks the server's health service about the backend API.
func probeHealth(ctx context.Context, addr string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	c, err := server.Dial(addr)
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	defer c.Close()

	resp, err := healthpb.NewHealthClient(c.Conn()).Check(ctx, &healthpb.HealthCheckRequest{Service: server.ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.Status, nil
}

func showStatus(w io.Writer, cfg *config.Config, serving healthpb.HealthCheckResponse_ServingStatus, probeErr error) {
	row := func(prefix, key string, format string, args ...any) {
		fmt.Fprintf(w, "  %s %s %s\n", prefix, keyColor.Sprintf("%-16s", key+":"), fmt.Sprintf(format, args...))
	}

	fmt.Fprintln(w, "\n╔═══════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                fleetstore System Status                   ║")
	fmt.Fprintln(w, "╚═══════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Configuration:")
	row("├─", "Config File", "%s", configFile)
	row("├─", "Server Address", "%s", cfg.Server.Address)
	row("└─", "Read Timeout", "%s", cfg.Context.Timeout)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Storage:")
	row("├─", "Backend", "%s (database %s)", cfg.Database.Backend, cfg.Database.Name)
	switch cfg.Database.Backend {
	case config.BackendMongo:
		row("│ └─", "URI", "%s", cfg.MongoDB.URI)
	case config.BackendMemory:
		snap := cfg.Memory.SnapshotPath
		if snap == "" {
			snap = warnColor.Sprint("none (state is lost on exit)")
		}
		row("│ └─", "Snapshot", "%s", snap)
	}
	row("└─", "Counters", "%s", cfg.Sequence.Backend)
	if cfg.Sequence.Backend == config.CounterRedis {
		row("  └─", "Redis", "%s db %d", cfg.Sequence.Redis.Addr, cfg.Sequence.Redis.DB)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Server:")
	switch {
	case probeErr != nil:
		row("└─", "Health", "%s", failColor.Sprintf("unreachable (%v)", probeErr))
	case serving == healthpb.HealthCheckResponse_SERVING:
		row("└─", "Health", "%s", okColor.Sprint("SERVING"))
	default:
		row("└─", "Health", "%s", warnColor.Sprint(serving.String()))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Metrics:")
	if cfg.Metrics.Enabled {
		row("└─", "Status", "%s on http://localhost:%d/metrics", okColor.Sprint("enabled"), cfg.Metrics.Port)
	} else {
		row("└─", "Status", "%s", warnColor.Sprint("disabled"))
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "═══════════════════════════════════════════════════════════")
}
