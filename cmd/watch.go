package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/metrics"
	"github.com/kozaktomas/facewatch/internal/stream"
	"github.com/kozaktomas/facewatch/internal/web"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Recognize faces in the configured camera streams",
	Long: `Poll every configured camera, track the faces in each stream and
resolve them against the face index until interrupted.

Cameras come from stream.sources in the config file, or from --source flags
in the form id=url.

The watcher holds the face index lock. While it runs, manage identities
through its HTTP API on metrics.addr:
  GET    /api/v1/identities
  POST   /api/v1/identities          (multipart: name, files)
  PUT    /api/v1/identities/{label}  (JSON: {"name": "..."})
  DELETE /api/v1/identities/{label}

Example:
  facewatch watch --source door=http://cam-door.local/snapshot.jpg`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringSlice("source", nil, "Camera as id=url (repeatable, replaces configured sources)")
	watchCmd.Flags().String("metrics-addr", "", "Override metrics.addr")
}

// parseSources turns id=url flags into sources.
func parseSources(flags []string) ([]config.SourceConfig, error) {
	out := make([]config.SourceConfig, 0, len(flags))
	for _, f := range flags {
		id, url, ok := strings.Cut(f, "=")
		if !ok || id == "" || url == "" {
			return nil, fmt.Errorf("invalid --source %q, want id=url", f)
		}
		out = append(out, config.SourceConfig{ID: id, URL: url})
	}
	return out, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	if flags := mustGetStringSlice(cmd, "source"); len(flags) > 0 {
		sources, err := parseSources(flags)
		if err != nil {
			return err
		}
		cfg.Stream.Sources = sources
	}
	if addr := mustGetString(cmd, "metrics-addr"); addr != "" {
		cfg.Metrics.Addr = addr
	}
	if len(cfg.Stream.Sources) == 0 {
		return errors.New("no camera sources configured, set stream.sources or pass --source")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := metrics.New(registry)
	if err != nil {
		return err
	}

	a, err := newApp(m, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var server *web.Server
	if cfg.Metrics.Addr != "" {
		server = web.NewServer(cfg.Metrics.Addr, a.engine, registry)
		go func() {
			if err := server.Start(); err != nil {
				log.Error().Err(err).Msg("Ops server failed")
			}
		}()
	}

	sources := make([]stream.Source, 0, len(cfg.Stream.Sources))
	for _, src := range cfg.Stream.Sources {
		sources = append(sources, stream.Source{
			Camera:  src.ID,
			Grabber: stream.NewHTTPGrabber(src.URL, cfg.Detector.Timeout),
		})
	}

	opts := []stream.RunnerOption{stream.WithRunnerMetrics(m)}
	if a.sightings != nil {
		opts = append(opts, stream.WithFlusher(a.sightings))
	}
	runner := stream.NewRunner(cfg.Stream, a.engine, opts...)

	st := a.index.Stats()
	log.Info().
		Int("cameras", len(sources)).
		Int("rows", st.Rows).
		Int("known", st.KnownIdentities).
		Int("unknown", st.UnknownIdentities).
		Msg("Watching")

	runErr := runner.Run(ctx, sources)

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error during shutdown")
		}
	}
	return runErr
}
