package settlement

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ranchhand/internal/ledger"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ResetPolicy decides when the ledger of a ranch gets wiped after a
// settlement starts
type ResetPolicy string

const (
	// ResetGated: the ledger is wiped only once every record of the
	// ranch's batch has been marked paid
	ResetGated ResetPolicy = "gated"
	// ResetTimed: every ledger is wiped a fixed delay after the cycle
	// starts, whether or not anyone got marked paid
	ResetTimed ResetPolicy = "timed"
)

// Presenter renders settlement state into the chat. The engine keeps
// ownership of the batch; the presenter only gets to look at it
type Presenter interface {
	RenderPayoutBatch(batch *Batch) (MessageRef, error)
	UpdatePayoutBatch(batch *Batch) error
	OfferChoice(ctx context.Context, ranch string, records []*Record) (string, error)
	DisplayLabel(ranch string, identity string) string
}

type Config struct {
	Ranches       []string
	Rate          float64
	PayoutDays    []time.Weekday
	Policy        ResetPolicy
	WipeDelay     time.Duration
	ChoiceTimeout time.Duration
}

// Engine runs the payout cycle: snapshot the ledgers into batches,
// track paid state per player, close batches when fully settled and
// wipe ledgers per the configured policy
type Engine struct {
	cfg       Config
	ledgers   *ledger.Store
	snapshots *SnapshotStore
	presenter Presenter

	mu    sync.Mutex
	busy  bool
	locks map[string]*sync.Mutex
}

func CreateEngine(cfg Config, ledgers *ledger.Store, snapshots *SnapshotStore, presenter Presenter) *Engine {

	engine := Engine{cfg: cfg, ledgers: ledgers, snapshots: snapshots, presenter: presenter}
	engine.locks = map[string]*sync.Mutex{}
	for _, ranch := range cfg.Ranches {
		engine.locks[ranch] = &sync.Mutex{}
	}
	return &engine
}

// Start snapshots every ranch with a non-empty ledger into a payout
// batch, renders it and persists it. Only one start may be in flight
// process-wide; a concurrent one is rejected with ErrBusy
func (engine *Engine) Start() error {

	engine.mu.Lock()
	if engine.busy {
		engine.mu.Unlock()
		return ErrBusy
	}
	engine.busy = true
	engine.mu.Unlock()
	defer func() {
		engine.mu.Lock()
		engine.busy = false
		engine.mu.Unlock()
	}()

	period := ledger.CurrentTrackingPeriod(time.Now(), engine.cfg.PayoutDays)
	for _, ranch := range engine.cfg.Ranches {
		engine.startRanch(ranch, period)
	}
	return nil
}

func (engine *Engine) startRanch(ranch string, period ledger.TrackingPeriod) {

	engine.lock(ranch)
	defer engine.unlock(ranch)

	ldg := engine.ledgers.Load(ranch)
	if len(ldg) == 0 {
		log.Info().Str("ranch", ranch).Msg("No stats available for payout, skipping ranch")
		return
	}

	// Deterministic record order; map iteration would shuffle it
	identities := make([]string, 0, len(ldg))
	for identity := range ldg {
		identities = append(identities, identity)
	}
	sort.Strings(identities)

	// Every player in the ledger gets a record, zero totals included
	batch := &Batch{ID: uuid.New(), Ranch: ranch, Period: period.String()}
	for _, identity := range identities {
		batch.Records = append(batch.Records, &Record{
			Identity: identity,
			Label:    engine.presenter.DisplayLabel(ranch, identity),
			Total:    ldg[identity].Profit(engine.cfg.Rate),
		})
	}

	ref, err := engine.presenter.RenderPayoutBatch(batch)
	if err != nil {
		log.Error().Err(err).Str("ranch", ranch).Msg("Could not render payout batch")
		return
	}
	batch.Message = ref

	if err := engine.snapshots.Save(batch); err != nil {
		// The rendered message stands; paid tracking will not survive
		// a restart until the next successful save
		log.Error().Err(err).Str("ranch", ranch).Msg("Could not persist payout batch")
		return
	}
	log.Info().Str("ranch", ranch).Int("records", len(batch.Records)).Msg("Payout batch started")
}

// MarkPaid marks the unpaid record of a player as paid, persists the
// batch and re-renders it. Once the last record is paid the batch file
// is deleted and, under the gated policy, the ledger is wiped.
// Calling it again for the same player yields ErrNotFound
func (engine *Engine) MarkPaid(ranch string, identity string) error {

	engine.lock(ranch)
	defer engine.unlock(ranch)

	batch, err := engine.snapshots.Load(ranch)
	if err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}
	if batch == nil {
		return ErrNotFound
	}

	record := batch.UnpaidByIdentity(identity)
	if record == nil {
		return ErrNotFound
	}
	record.Paid = true

	if batch.Settled() {
		if err := engine.snapshots.Delete(ranch); err != nil {
			return fmt.Errorf("mark paid: %w", err)
		}
		if err := engine.presenter.UpdatePayoutBatch(batch); err != nil {
			log.Error().Err(err).Str("ranch", ranch).Msg("Could not update payout message")
		}
		log.Info().Str("ranch", ranch).Msg("Every payout settled, batch closed")
		if engine.cfg.Policy == ResetGated {
			if err := engine.ledgers.Reset(ranch); err != nil {
				log.Error().Err(err).Str("ranch", ranch).Msg("Could not reset ledger after settlement")
			}
		}
		return nil
	}

	if err := engine.snapshots.Save(batch); err != nil {
		return fmt.Errorf("mark paid: %w", err)
	}
	if err := engine.presenter.UpdatePayoutBatch(batch); err != nil {
		log.Error().Err(err).Str("ranch", ranch).Msg("Could not update payout message")
	}
	return nil
}

// AdminMarkPaid offers the unpaid records of a ranch as a choice and
// marks whichever player gets picked. ErrAllSettled when there is
// nothing left to offer. A lapsed choice is not an error worth
// surfacing; the context error is returned for the caller to log
func (engine *Engine) AdminMarkPaid(ctx context.Context, ranch string) (string, error) {

	engine.lock(ranch)
	batch, err := engine.snapshots.Load(ranch)
	engine.unlock(ranch)
	if err != nil {
		return "", fmt.Errorf("admin mark paid: %w", err)
	}
	if batch == nil {
		return "", ErrAllSettled
	}
	unpaid := batch.Unpaid()
	if len(unpaid) == 0 {
		return "", ErrAllSettled
	}

	choiceCtx, cancel := context.WithTimeout(ctx, engine.cfg.ChoiceTimeout)
	defer cancel()
	identity, err := engine.presenter.OfferChoice(choiceCtx, ranch, unpaid)
	if err != nil {
		return "", err
	}
	return identity, engine.MarkPaid(ranch, identity)
}

// FullCycle is the scheduled path: start the settlement and, under the
// timed policy, wipe every ledger after the configured delay no matter
// how far reconciliation got
func (engine *Engine) FullCycle() error {

	if err := engine.Start(); err != nil {
		return err
	}
	if engine.cfg.Policy == ResetTimed {
		log.Info().Dur("delay", engine.cfg.WipeDelay).Msg("Ledger wipe scheduled")
		time.AfterFunc(engine.cfg.WipeDelay, engine.ResetAll)
	}
	return nil
}

// ResetAll wipes the ledger of every ranch
func (engine *Engine) ResetAll() {
	for _, ranch := range engine.cfg.Ranches {
		engine.lock(ranch)
		if err := engine.ledgers.Reset(ranch); err != nil {
			log.Error().Err(err).Str("ranch", ranch).Msg("Could not wipe ledger")
		} else {
			log.Info().Str("ranch", ranch).Msg("Ledger wiped")
		}
		engine.unlock(ranch)
	}
}

func (engine *Engine) lock(ranch string) {
	if mutex, ok := engine.locks[ranch]; ok {
		mutex.Lock()
	}
}

func (engine *Engine) unlock(ranch string) {
	if mutex, ok := engine.locks[ranch]; ok {
		mutex.Unlock()
	}
}
