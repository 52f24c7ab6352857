package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"example.com/backstage/services/saga/eventstore"
	"example.com/backstage/services/saga/replay"
)

type replayOptions struct {
	from          string
	to            string
	eventType     string
	aggregateID   string
	aggregateType string
	batchSize     int
}

var replayFlags replayOptions

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay stored events",
	Long: `Re-publish stored events, oldest first, to rebuild read views. Events are
never appended again. Times use RFC3339.`,
	RunE: runReplay,
}

func init() {
	flags := replayCmd.Flags()
	flags.StringVar(&replayFlags.from, "from", "", "replay events recorded at or after this time")
	flags.StringVar(&replayFlags.to, "to", "", "replay events recorded at or before this time")
	flags.StringVar(&replayFlags.eventType, "event-type", "", "only replay this event type")
	flags.StringVar(&replayFlags.aggregateID, "aggregate-id", "", "only replay events of this aggregate")
	flags.StringVar(&replayFlags.aggregateType, "aggregate-type", "", "only replay events of this aggregate type")
	flags.IntVar(&replayFlags.batchSize, "batch-size", 0, "events per batch (defaults to replay.batch_size)")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	req, err := replayRequest()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// no metrics endpoint here, keep the counters private
	registry := prometheus.NewRegistry()
	app, err := newApplication(cfg, registry, registry)
	if err != nil {
		return err
	}
	defer app.close(context.Background())

	started := time.Now()
	replayed, err := app.services.Replay.Replay(ctx, req)
	if err != nil {
		log.Error().Err(err).Int("replayed", replayed).Msg("Replay failed")
		return err
	}

	log.Info().Int("replayed", replayed).Dur("took", time.Since(started)).Msg("Replay finished")
	return nil
}

func replayRequest() (replay.Request, error) {
	filters := eventstore.Filters{
		EventType:     replayFlags.eventType,
		AggregateID:   replayFlags.aggregateID,
		AggregateType: replayFlags.aggregateType,
	}

	var err error
	if filters.From, err = parseTime("from", replayFlags.from); err != nil {
		return replay.Request{}, err
	}
	if filters.To, err = parseTime("to", replayFlags.to); err != nil {
		return replay.Request{}, err
	}
	if filters.From != nil && filters.To != nil && filters.To.Before(*filters.From) {
		return replay.Request{}, errors.New("--to must not be before --from")
	}

	return replay.Request{Filters: filters, BatchSize: replayFlags.batchSize}, nil
}

func parseTime(flag, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid --%s", flag)
	}
	return &t, nil
}
