package recorder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/paperbot/internal/domain"
	"github.com/vadiminshakov/paperbot/internal/storage/trades"
	"go.uber.org/zap"
)

type mockAppender struct {
	mock.Mock
}

func (m *mockAppender) Append(record domain.TradeRecord) error {
	return m.Called(record).Error(0)
}

type mockSnapshotter struct {
	mock.Mock
}

func (m *mockSnapshotter) Snapshot(ctx context.Context) (domain.PnLSnapshot, error) {
	args := m.Called(ctx)
	return args.Get(0).(domain.PnLSnapshot), args.Error(1)
}

func testTrade() domain.TradeRecord {
	return domain.NewTradeRecord(time.Now(), "XBTZAR", domain.ActionBuy,
		decimal.NewFromInt(97), decimal.RequireFromString("10.309278"), decimal.NewFromInt(1000))
}

func TestRecord_AppendsThenSnapshots(t *testing.T) {
	store := &mockAppender{}
	pnl := &mockSnapshotter{}
	trade := testTrade()

	var order []string
	store.On("Append", trade).Run(func(mock.Arguments) { order = append(order, "append") }).Return(nil).Once()
	pnl.On("Snapshot", mock.Anything).Run(func(mock.Arguments) { order = append(order, "snapshot") }).
		Return(domain.PnLSnapshot{}, nil).Once()

	r, err := New(store, pnl, zap.NewNop(), nil)
	require.NoError(t, err)

	require.NoError(t, r.Record(context.Background(), trade))
	assert.Equal(t, []string{"append", "snapshot"}, order)
	store.AssertExpectations(t)
	pnl.AssertExpectations(t)
}

func TestRecord_AppendFailureSkipsSnapshot(t *testing.T) {
	store := &mockAppender{}
	pnl := &mockSnapshotter{}
	trade := testTrade()

	store.On("Append", trade).Return(errors.New("io error")).Once()

	r, err := New(store, pnl, zap.NewNop(), nil)
	require.NoError(t, err)

	err = r.Record(context.Background(), trade)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAppend)
	pnl.AssertNotCalled(t, "Snapshot", mock.Anything)
}

func TestRecord_SnapshotFailureSurfaced(t *testing.T) {
	store := &mockAppender{}
	pnl := &mockSnapshotter{}
	trade := testTrade()

	store.On("Append", trade).Return(nil).Once()
	pnl.On("Snapshot", mock.Anything).Return(domain.PnLSnapshot{}, errors.New("pnl log down")).Once()

	r, err := New(store, pnl, zap.NewNop(), nil)
	require.NoError(t, err)

	err = r.Record(context.Background(), trade)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAppend)
}

func TestRecord_WithWALStoreAndJournal(t *testing.T) {
	dir := t.TempDir()
	store, err := trades.NewWALStore(filepath.Join(dir, "trades"))
	require.NoError(t, err)
	defer store.Close()

	journalPath := filepath.Join(dir, "logs", "trades.log")
	journal, err := NewJournal(journalPath)
	require.NoError(t, err)

	pnl := &mockSnapshotter{}
	pnl.On("Snapshot", mock.Anything).Return(domain.PnLSnapshot{}, nil)

	r, err := New(store, pnl, zap.NewNop(), journal)
	require.NoError(t, err)

	trade := testTrade()
	require.NoError(t, r.Record(context.Background(), trade))
	_ = journal.Sync()

	records, err := store.All()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, trade.ID, records[0].ID)

	line, err := os.ReadFile(journalPath)
	require.NoError(t, err)
	assert.Contains(t, string(line), "[XBTZAR] BUY 10.309278 at 97.00")
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, &mockSnapshotter{}, nil, nil)
	assert.Error(t, err)
}
