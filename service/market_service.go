package service

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"
	"github.com/streamingfast/logging"
	"go.uber.org/zap"

	"matchbook/domain/instruction"
	"matchbook/domain/market"
	"matchbook/engine"
	"matchbook/infra/custody"
	"matchbook/infra/sequence"
	"matchbook/infra/store"
	entrywal "matchbook/infra/wal/entry"
	exitwal "matchbook/infra/wal/exit"
)

var zlog, tracer = logging.PackageLogger("service", "matchbook/service")

// Receipt summarizes one applied operation.
type Receipt struct {
	Seq         uint64
	Opcode      instruction.Opcode
	Market      solana.PublicKey
	OrderID     uint64
	Rested      bool
	Fills       int
	Events      int
	Drained     int
	SettledCoin uint64
	SettledPc   uint64
}

type MarketService struct {
	mu sync.Mutex

	cfg     engine.Config
	store   *store.Store
	journal *entrywal.WAL
	outbox  *exitwal.ExitWAL
	seqGen  *sequence.Sequencer
}

// NewMarketService wires the host. journal may be nil, in which case
// operations are applied without being journaled.
func NewMarketService(cfg engine.Config, st *store.Store, journal *entrywal.WAL, seqGen *sequence.Sequencer) *MarketService {
	return &MarketService{
		cfg:     cfg,
		store:   st,
		journal: journal,
		outbox:  exitwal.New(st.DB()),
		seqGen:  seqGen,
	}
}

func (s *MarketService) ProgramID() solana.PublicKey {
	return s.cfg.ProgramID
}

// Outbox is where committed events wait for the broadcaster.
func (s *MarketService) Outbox() *exitwal.ExitWAL {
	return s.outbox
}

// Execute applies one transaction. Either every effect of it commits
// together with its journal record and outboxed events, or nothing does.
func (s *MarketService) Execute(ctx context.Context, tx *instruction.Transaction) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyTransaction(tx, 0)
}

// Fund credits amount of mint to owner's custody wallet.
func (s *MarketService) Fund(ctx context.Context, mint, owner solana.PublicKey, amount uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.applyFund(fundPayload{Mint: mint, Owner: owner, Amount: amount}, 0)
}

// applyTransaction runs tx in a fresh batch. A zero replaySeq means a live
// operation that gets the next sequence and is journaled; otherwise the
// record is being replayed under that sequence.
func (s *MarketService) applyTransaction(tx *instruction.Transaction, replaySeq uint64) (*Receipt, error) {
	txn := s.store.Begin()
	defer txn.Discard()

	res, err := engine.NewProcessor(s.cfg, txn, custody.New(txn)).Execute(tx)
	if err != nil {
		return nil, err
	}

	seq, err := s.record(replaySeq, entrywal.RecordTransaction, tx.Marshal())
	if err != nil {
		return nil, err
	}

	for i, ev := range res.Events {
		key := exitwal.Key{Seq: seq, Index: uint16(i)}
		payload, err := exitwal.NewEvent(key, res.Market.String(), ev).Marshal()
		if err != nil {
			return nil, s.abort(replaySeq, seq, errors.Wrap(err, "encode outbox event"))
		}
		if err := exitwal.Stage(txn.Batch(), key, payload); err != nil {
			return nil, s.abort(replaySeq, seq, errors.Wrap(err, "stage outbox event"))
		}
	}

	if err := s.commit(txn, seq); err != nil {
		return nil, s.abort(replaySeq, seq, err)
	}

	r := &Receipt{
		Seq:         seq,
		Opcode:      res.Opcode,
		Market:      res.Market,
		OrderID:     res.OrderID,
		Rested:      res.Rested,
		Fills:       res.Fills,
		Events:      len(res.Events),
		Drained:     len(res.Consumed),
		SettledCoin: res.SettledCoin,
		SettledPc:   res.SettledPc,
	}
	if tracer.Enabled() {
		zlog.Debug("operation applied", zap.Uint64("seq", seq), zap.Stringer("opcode", r.Opcode), zap.Bool("replay", replaySeq != 0))
	}
	return r, nil
}

func (s *MarketService) applyFund(f fundPayload, replaySeq uint64) (uint64, error) {
	txn := s.store.Begin()
	defer txn.Discard()

	if err := custody.New(txn).Mint(f.Mint, f.Owner, f.Amount); err != nil {
		return 0, err
	}

	data, err := f.marshal()
	if err != nil {
		return 0, err
	}
	seq, err := s.record(replaySeq, entrywal.RecordFund, data)
	if err != nil {
		return 0, err
	}
	if err := s.commit(txn, seq); err != nil {
		return 0, s.abort(replaySeq, seq, err)
	}

	zlog.Info("wallet funded",
		zap.Stringer("mint", f.Mint),
		zap.Stringer("owner", f.Owner),
		zap.Uint64("amount", f.Amount),
		zap.Uint64("seq", seq),
	)
	return seq, nil
}

// record journals a live operation under a fresh sequence, or passes the
// replayed sequence through.
func (s *MarketService) record(replaySeq uint64, typ entrywal.RecordType, data []byte) (uint64, error) {
	if replaySeq != 0 {
		return replaySeq, nil
	}
	seq := s.seqGen.Next()
	if s.journal == nil {
		return seq, nil
	}
	if err := s.journal.Append(entrywal.NewRecord(typ, seq, data)); err != nil {
		return 0, errors.Wrap(err, "journal operation")
	}
	return seq, nil
}

// abort journals that a live operation journaled under seq did not commit,
// so replay skips it, and returns cause. If the abort itself cannot be
// journaled the operation would come back on replay; that is logged and
// returned with cause.
func (s *MarketService) abort(replaySeq, seq uint64, cause error) error {
	if replaySeq != 0 || s.journal == nil {
		return cause
	}
	if err := s.journal.Append(entrywal.NewAbortRecord(s.seqGen.Next(), seq)); err != nil {
		zlog.Error("cannot journal abort, replay will apply the operation",
			zap.Uint64("seq", seq),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return errors.CombineErrors(cause, errors.Wrap(err, "journal abort"))
	}
	zlog.Warn("operation aborted after journaling", zap.Uint64("seq", seq), zap.Error(cause))
	return cause
}

func (s *MarketService) commit(txn *store.Txn, seq uint64) error {
	if err := txn.SetLastApplied(seq); err != nil {
		return err
	}
	return txn.Commit()
}

// ---- queries ----

// Account returns the raw bytes of the record at addr.
func (s *MarketService) Account(addr solana.PublicKey) ([]byte, error) {
	return s.store.Record(addr)
}

func (s *MarketService) Balance(mint, holder solana.PublicKey) (uint64, error) {
	return s.store.Balance(mint, holder)
}

func (s *MarketService) LastApplied() (uint64, error) {
	return s.store.LastApplied()
}

// PendingQueues returns every market event queue holding unconsumed events.
func (s *MarketService) PendingQueues() ([]*market.MarketEventsAccount, error) {
	var out []*market.MarketEventsAccount
	err := s.store.ScanRecords(func(_ solana.PublicKey, data []byte) error {
		if len(data) != market.MarketEventsAccountSize {
			return nil
		}
		q := &market.MarketEventsAccount{}
		if err := market.Decode(data, q); err != nil {
			return err
		}
		if q.Len() > 0 {
			out = append(out, q)
		}
		return nil
	})
	return out, err
}
