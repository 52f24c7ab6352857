package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"example.com/backstage/services/saga/eventstore"
	"example.com/backstage/services/saga/replay"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long: `Start the background worker to process saga commands from Azure Service Bus
and periodically rebuild recent read views by replaying stored events`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	log.Info().Msg("Starting worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(cfg, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		return err
	}
	defer app.close(context.Background())

	g, ctx := errgroup.WithContext(ctx)

	if app.azure != nil {
		g.Go(func() error {
			log.Info().Str("queue", cfg.Azure.CommandQueueName).Msg("Starting Azure Service Bus consumer")
			return app.azure.StartConsumers(ctx, cfg.Azure.CommandQueueName, app.services.Processor)
		})
	} else {
		log.Warn().Msg("Azure Service Bus disabled, no commands will be consumed")
	}

	if cfg.Replay.ScheduleEnabled {
		g.Go(func() error {
			return runScheduledReplay(ctx, app.services.Replay)
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}

func runScheduledReplay(ctx context.Context, service *replay.Service) error {
	log.Info().
		Dur("interval", cfg.Replay.ScheduleInterval).
		Dur("window", cfg.Replay.Window).
		Msg("Starting scheduled replay")

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(cfg.Replay.ScheduleInterval),
		gocron.NewTask(func() {
			replayed, err := service.Replay(ctx, windowRequest(time.Now(), cfg.Replay.Window))
			if err != nil {
				log.Error().Err(err).Msg("Scheduled replay failed")
				return
			}
			log.Info().Int("replayed", replayed).Msg("Scheduled replay finished")
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	scheduler.Start()
	<-ctx.Done()
	return scheduler.Shutdown()
}

// windowRequest selects the events recorded in the window ending at now; a
// zero window replays everything
func windowRequest(now time.Time, window time.Duration) replay.Request {
	var filters eventstore.Filters
	if window > 0 {
		from := now.Add(-window)
		filters.From = &from
	}
	return replay.Request{Filters: filters}
}
