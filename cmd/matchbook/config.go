package main

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
)

const defaultProgramID = "MatchbookDex1111111111111111111111111111111"

type Config struct {
	DataDir            string
	JournalDir         string
	JournalSegmentSize int64
	SnapshotDir        string
	SnapshotInterval   time.Duration
	ProgramID          solana.PublicKey
	GRPCListenAddr     string
	Publisher          string
	KafkaBrokers       []string
	KafkaTopic         string
	WSListenAddr       string
	BroadcastInterval  time.Duration
	CrankInterval      time.Duration
	CrankDrain         uint8
	BookCapacity       int
}

const (
	publisherNone      = "none"
	publisherSarama    = "sarama"
	publisherKafkaGo   = "kafka-go"
	publisherWebsocket = "websocket"
)

func loadConfig() (*Config, error) {
	programID, err := programIDFromConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:            viper.GetString("data-dir"),
		JournalDir:         viper.GetString("journal-dir"),
		JournalSegmentSize: viper.GetInt64("journal-segment-size"),
		SnapshotDir:        viper.GetString("snapshot-dir"),
		SnapshotInterval:   viper.GetDuration("snapshot-interval"),
		ProgramID:          programID,
		GRPCListenAddr:     viper.GetString("grpc-listen-addr"),
		Publisher:          viper.GetString("publisher"),
		KafkaBrokers:       viper.GetStringSlice("kafka-brokers"),
		KafkaTopic:         viper.GetString("kafka-topic"),
		WSListenAddr:       viper.GetString("ws-listen-addr"),
		BroadcastInterval:  viper.GetDuration("broadcast-interval"),
		CrankInterval:      viper.GetDuration("crank-interval"),
		BookCapacity:       viper.GetInt("book-capacity"),
	}

	drain := viper.GetUint("crank-drain")
	if drain > 0xFF {
		return nil, errors.Newf("crank drain %d out of range, at most 255", drain)
	}
	cfg.CrankDrain = uint8(drain)

	switch cfg.Publisher {
	case publisherNone, publisherSarama, publisherKafkaGo, publisherWebsocket:
	default:
		return nil, errors.Newf("unknown publisher %q", cfg.Publisher)
	}
	if (cfg.Publisher == publisherSarama || cfg.Publisher == publisherKafkaGo) && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.Newf("publisher %q needs --kafka-brokers", cfg.Publisher)
	}
	if cfg.BookCapacity < 1 || cfg.BookCapacity > 0xFFFF {
		return nil, errors.Newf("book capacity %d out of range", cfg.BookCapacity)
	}
	return cfg, nil
}

func programIDFromConfig() (solana.PublicKey, error) {
	raw := viper.GetString("program-id")
	id, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, errors.Wrapf(err, "invalid program id %q", raw)
	}
	return id, nil
}
