package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"matchbook/api/grpcserver"
	"matchbook/api/wsfeed"
	"matchbook/engine"
	"matchbook/infra/kafka"
	"matchbook/infra/sequence"
	"matchbook/infra/store"
	entrywal "matchbook/infra/wal/entry"
	"matchbook/jobs/broadcaster"
	"matchbook/jobs/crank"
	"matchbook/service"
	"matchbook/snapshot"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine: gRPC surface, crank, broadcaster and snapshots",
	Args:  cobra.NoArgs,
	RunE:  serveRunE,
}

func init() {
	f := serveCmd.Flags()
	f.String("data-dir", "./matchbook-data/store", "Pebble record store directory")
	f.String("journal-dir", "./matchbook-data/journal", "Operation journal directory")
	f.Int64("journal-segment-size", entrywal.DefaultSegmentSize, "Journal segment size in bytes")
	f.String("snapshot-dir", "./matchbook-data/snapshots", "Snapshot directory")
	f.Duration("snapshot-interval", 5*time.Minute, "Snapshot period, 0 disables snapshots")
	f.String("grpc-listen-addr", ":9000", "gRPC listen address")
	f.String("publisher", publisherNone, "Event feed publisher: none, sarama, kafka-go or websocket")
	f.StringSlice("kafka-brokers", nil, "Kafka brokers")
	f.String("kafka-topic", "matchbook-events", "Kafka topic")
	f.String("ws-listen-addr", ":9001", "Websocket feed listen address")
	f.Duration("broadcast-interval", 250*time.Millisecond, "Outbox publish period")
	f.Duration("crank-interval", time.Second, "Event queue crank period, 0 disables the crank")
	f.Uint("crank-drain", 5, "Events drained per market per crank turn")
	f.Int("book-capacity", 10, "Order book capacity for markets initialized without one")

	RootCmd.AddCommand(serveCmd)
}

func serveRunE(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := restoreIfEmpty(cfg); err != nil {
		return err
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer st.Close()

	journal, err := entrywal.Open(entrywal.Config{Dir: cfg.JournalDir, SegmentSize: cfg.JournalSegmentSize, Sync: true})
	if err != nil {
		return err
	}
	defer journal.Close()

	seqGen := sequence.New(0)
	svc := service.NewMarketService(engine.Config{ProgramID: cfg.ProgramID, BookCapacity: cfg.BookCapacity}, st, journal, seqGen)
	if _, err := service.ReplayFromWAL(cfg.JournalDir, svc); err != nil {
		return errors.Wrap(err, "journal replay")
	}

	var jobs sync.WaitGroup
	run := func(fn func()) {
		jobs.Add(1)
		go func() {
			defer jobs.Done()
			fn()
		}()
	}

	publisher, err := newPublisher(ctx, cfg, run)
	if err != nil {
		return err
	}
	if publisher != nil {
		b := broadcaster.New(svc.Outbox(), publisher, broadcaster.Config{Interval: cfg.BroadcastInterval})
		defer b.Close()
		run(func() { b.Run(ctx) })
	}
	if cfg.CrankInterval > 0 {
		c := crank.New(svc, cfg.CrankInterval, cfg.CrankDrain)
		run(func() { c.Run(ctx) })
	}
	if cfg.SnapshotInterval > 0 {
		run(func() { svc.RunSnapshotJob(ctx, cfg.SnapshotDir, cfg.SnapshotInterval) })
	}

	lis, err := net.Listen("tcp", cfg.GRPCListenAddr)
	if err != nil {
		return errors.Wrapf(err, "listen %s", cfg.GRPCListenAddr)
	}
	srv := grpcserver.NewGRPCServer(svc)
	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	zlog.Info("matchbook serving",
		zap.String("grpc_listen_addr", cfg.GRPCListenAddr),
		zap.Stringer("program_id", cfg.ProgramID),
		zap.Uint64("seq", seqGen.Current()),
		zap.String("publisher", cfg.Publisher),
	)
	if err := srv.Serve(lis); err != nil {
		return errors.Wrap(err, "grpc server")
	}

	stop()
	jobs.Wait()
	zlog.Info("matchbook stopped")
	return nil
}

func newPublisher(ctx context.Context, cfg *Config, run func(func())) (broadcaster.Publisher, error) {
	switch cfg.Publisher {
	case publisherSarama:
		return broadcaster.NewSaramaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	case publisherKafkaGo:
		return kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	case publisherWebsocket:
		feed := wsfeed.New()
		run(func() {
			if err := feed.ListenAndServe(ctx, cfg.WSListenAddr); err != nil {
				zlog.Error("websocket feed stopped", zap.Error(err))
			}
		})
		return feed, nil
	default:
		return nil, nil
	}
}

// restoreIfEmpty seeds a missing data directory from the newest snapshot.
func restoreIfEmpty(cfg *Config) error {
	if entries, err := os.ReadDir(cfg.DataDir); err == nil && len(entries) > 0 {
		return nil
	}
	m, err := snapshot.Restore(cfg.SnapshotDir, cfg.DataDir)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "restore snapshot")
	}
	zlog.Info("data directory seeded from snapshot", zap.Uint64("seq", m.Seq))
	return nil
}
