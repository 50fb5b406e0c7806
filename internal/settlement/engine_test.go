package settlement

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"ranchhand/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePresenter struct {
	mu         sync.Mutex
	rendered   []*Batch
	updated    []*Batch
	choice     string
	renderGate chan struct{}
}

func (p *fakePresenter) RenderPayoutBatch(batch *Batch) (MessageRef, error) {
	if p.renderGate != nil {
		<-p.renderGate
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rendered = append(p.rendered, batch)
	return MessageRef{ChannelID: "chan", MessageID: "msg"}, nil
}

func (p *fakePresenter) UpdatePayoutBatch(batch *Batch) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updated = append(p.updated, batch)
	return nil
}

func (p *fakePresenter) OfferChoice(ctx context.Context, ranch string, records []*Record) (string, error) {
	if p.choice == "" {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return p.choice, nil
}

func (p *fakePresenter) DisplayLabel(ranch string, identity string) string {
	return "label:" + identity
}

func (p *fakePresenter) renderCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rendered)
}

func newTestEngine(t *testing.T, policy ResetPolicy, ranches ...string) (*Engine, *ledger.Store, *SnapshotStore, *fakePresenter) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{}
	for _, ranch := range ranches {
		files[ranch] = filepath.Join(dir, ranch+".json")
	}
	ledgers := ledger.CreateStore(files)
	snapshots := CreateSnapshotStore(filepath.Join(dir, "payouts"))
	presenter := &fakePresenter{}
	cfg := Config{
		Ranches:       ranches,
		Rate:          1.25,
		Policy:        policy,
		WipeDelay:     20 * time.Millisecond,
		ChoiceTimeout: 50 * time.Millisecond,
	}
	return CreateEngine(cfg, ledgers, snapshots, presenter), ledgers, snapshots, presenter
}

func seed(t *testing.T, ledgers *ledger.Store, ranch string, ldg ledger.Ledger) {
	t.Helper()
	require.NoError(t, ledgers.Save(ranch, ldg))
}

func TestStart_SnapshotsAllEntries(t *testing.T) {
	engine, ledgers, snapshots, presenter := newTestEngine(t, ResetGated, "milky")
	seed(t, ledgers, "milky", ledger.Ledger{
		"<@1>": {Milk: 4},
		"<@2>": {},
	})

	require.NoError(t, engine.Start())
	require.Equal(t, 1, presenter.renderCount())

	batch, err := snapshots.Load("milky")
	require.NoError(t, err)
	require.NotNil(t, batch)
	require.Len(t, batch.Records, 2)

	// sorted by identity, zero-total players included
	assert.Equal(t, "<@1>", batch.Records[0].Identity)
	assert.InDelta(t, 5.0, batch.Records[0].Total, 1e-9)
	assert.Equal(t, "<@2>", batch.Records[1].Identity)
	assert.InDelta(t, 0.0, batch.Records[1].Total, 1e-9)
	assert.Equal(t, "label:<@1>", batch.Records[0].Label)
	assert.False(t, batch.Records[0].Paid)
	assert.Equal(t, "chan", batch.Message.ChannelID)
	assert.NotEmpty(t, batch.Period)
}

func TestStart_SkipsEmptyLedger(t *testing.T) {
	engine, _, snapshots, presenter := newTestEngine(t, ResetGated, "milky")

	require.NoError(t, engine.Start())
	assert.Zero(t, presenter.renderCount())

	batch, err := snapshots.Load("milky")
	require.NoError(t, err)
	assert.Nil(t, batch)
}

func TestStart_SecondStartRejectedWhileBusy(t *testing.T) {
	engine, ledgers, _, presenter := newTestEngine(t, ResetGated, "milky")
	seed(t, ledgers, "milky", ledger.Ledger{"<@1>": {Milk: 1}})
	presenter.renderGate = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- engine.Start() }()

	// Wait for the first start to be inside the render call
	require.Eventually(t, func() bool {
		engine.mu.Lock()
		defer engine.mu.Unlock()
		return engine.busy
	}, time.Second, time.Millisecond)

	assert.ErrorIs(t, engine.Start(), ErrBusy)

	close(presenter.renderGate)
	require.NoError(t, <-done)
}

func TestMarkPaid_UnknownIdentity(t *testing.T) {
	engine, ledgers, snapshots, _ := newTestEngine(t, ResetGated, "milky")
	seed(t, ledgers, "milky", ledger.Ledger{"<@1>": {Milk: 4}})
	require.NoError(t, engine.Start())

	before, err := snapshots.Load("milky")
	require.NoError(t, err)

	assert.ErrorIs(t, engine.MarkPaid("milky", "<@9>"), ErrNotFound)

	after, err := snapshots.Load("milky")
	require.NoError(t, err)
	require.Len(t, after.Records, len(before.Records))
	for i := range after.Records {
		assert.Equal(t, before.Records[i].Paid, after.Records[i].Paid)
	}
}

func TestMarkPaid_Idempotent(t *testing.T) {
	engine, ledgers, _, _ := newTestEngine(t, ResetGated, "milky")
	seed(t, ledgers, "milky", ledger.Ledger{"<@1>": {Milk: 4}, "<@2>": {Eggs: 2}})
	require.NoError(t, engine.Start())

	require.NoError(t, engine.MarkPaid("milky", "<@1>"))
	assert.ErrorIs(t, engine.MarkPaid("milky", "<@1>"), ErrNotFound)
}

func TestMarkPaid_LastRecordClosesBatch(t *testing.T) {
	engine, ledgers, snapshots, presenter := newTestEngine(t, ResetGated, "milky")
	seed(t, ledgers, "milky", ledger.Ledger{"<@1>": {Milk: 4}, "<@2>": {Eggs: 2}})
	require.NoError(t, engine.Start())

	require.NoError(t, engine.MarkPaid("milky", "<@1>"))
	batch, err := snapshots.Load("milky")
	require.NoError(t, err)
	require.NotNil(t, batch, "batch must stay persisted while a record is unpaid")

	require.NoError(t, engine.MarkPaid("milky", "<@2>"))
	batch, err = snapshots.Load("milky")
	require.NoError(t, err)
	assert.Nil(t, batch, "batch file must be gone once every record is paid")

	// gated policy wipes the ledger on close
	assert.Empty(t, ledgers.Load("milky"))
	assert.NotEmpty(t, presenter.updated)

	// a closed cycle offers nothing more
	assert.ErrorIs(t, engine.MarkPaid("milky", "<@1>"), ErrNotFound)
}

func TestMarkPaid_GatedPolicyKeepsOtherRanches(t *testing.T) {
	engine, ledgers, _, _ := newTestEngine(t, ResetGated, "milky", "lockett")
	seed(t, ledgers, "milky", ledger.Ledger{"<@1>": {Milk: 4}})
	seed(t, ledgers, "lockett", ledger.Ledger{"<@2>": {Eggs: 2}})
	require.NoError(t, engine.Start())

	require.NoError(t, engine.MarkPaid("milky", "<@1>"))

	assert.Empty(t, ledgers.Load("milky"))
	assert.Len(t, ledgers.Load("lockett"), 1)
}

func TestFullCycle_TimedPolicyWipesRegardless(t *testing.T) {
	engine, ledgers, snapshots, _ := newTestEngine(t, ResetTimed, "milky")
	seed(t, ledgers, "milky", ledger.Ledger{"<@1>": {Milk: 4}})

	require.NoError(t, engine.FullCycle())

	// nobody marked paid, the ledger gets wiped anyway
	assert.Eventually(t, func() bool {
		return len(ledgers.Load("milky")) == 0
	}, time.Second, 5*time.Millisecond)

	// the unpaid batch survives the wipe
	batch, err := snapshots.Load("milky")
	require.NoError(t, err)
	require.NotNil(t, batch)
	assert.False(t, batch.Records[0].Paid)
}

func TestAdminMarkPaid_AllSettled(t *testing.T) {
	engine, _, _, _ := newTestEngine(t, ResetGated, "milky")

	_, err := engine.AdminMarkPaid(context.Background(), "milky")
	assert.ErrorIs(t, err, ErrAllSettled)
}

func TestAdminMarkPaid_ChoiceResolves(t *testing.T) {
	engine, ledgers, _, presenter := newTestEngine(t, ResetGated, "milky")
	seed(t, ledgers, "milky", ledger.Ledger{"<@1>": {Milk: 4}, "<@2>": {Eggs: 2}})
	require.NoError(t, engine.Start())
	presenter.choice = "<@2>"

	identity, err := engine.AdminMarkPaid(context.Background(), "milky")
	require.NoError(t, err)
	assert.Equal(t, "<@2>", identity)

	assert.ErrorIs(t, engine.MarkPaid("milky", "<@2>"), ErrNotFound)
}

func TestAdminMarkPaid_ChoiceTimesOut(t *testing.T) {
	engine, ledgers, snapshots, _ := newTestEngine(t, ResetGated, "milky")
	seed(t, ledgers, "milky", ledger.Ledger{"<@1>": {Milk: 4}})
	require.NoError(t, engine.Start())

	_, err := engine.AdminMarkPaid(context.Background(), "milky")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the lapse changed nothing
	batch, err := snapshots.Load("milky")
	require.NoError(t, err)
	assert.False(t, batch.Records[0].Paid)
}
