package pricer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/paperbot/internal/domain"
)

type mockPricer struct {
	mock.Mock
}

func (m *mockPricer) GetPrice(ctx context.Context, pair domain.Pair) (decimal.Decimal, error) {
	args := m.Called(ctx, pair)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type slowPricer struct{}

func (slowPricer) GetPrice(ctx context.Context, _ domain.Pair) (decimal.Decimal, error) {
	<-ctx.Done()
	return decimal.Zero, ctx.Err()
}

func TestRouter_GetPrice(t *testing.T) {
	luno := &mockPricer{}
	binance := &mockPricer{}
	zarPair := domain.Pair{From: "BTC", To: "ZAR", Ticker: "XBTZAR"}
	usdtPair := domain.Pair{From: "ETH", To: "USDT"}

	luno.On("GetPrice", mock.Anything, zarPair).Return(decimal.NewFromInt(1200000), nil).Once()
	binance.On("GetPrice", mock.Anything, usdtPair).Return(decimal.NewFromInt(3000), nil).Once()

	router := NewRouter(binance).Route("zar", luno)

	price, err := router.GetPrice(context.Background(), zarPair)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(1200000)))

	price, err = router.GetPrice(context.Background(), usdtPair)
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(3000)))

	luno.AssertExpectations(t)
	binance.AssertExpectations(t)
}

func TestRouter_NoSource(t *testing.T) {
	_, err := NewRouter(nil).GetPrice(context.Background(), domain.Pair{From: "BTC", To: "EUR"})
	assert.Error(t, err)
}

func TestGuard_GetPrice(t *testing.T) {
	pair := domain.Pair{From: "BTC", To: "USDT"}

	tests := []struct {
		name        string
		price       decimal.Decimal
		err         error
		unavailable bool
	}{
		{name: "positive price", price: decimal.NewFromInt(50000)},
		{name: "source error", price: decimal.Zero, err: errors.New("connection reset"), unavailable: true},
		{name: "zero price", price: decimal.Zero, unavailable: true},
		{name: "negative price", price: decimal.NewFromInt(-1), unavailable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &mockPricer{}
			source.On("GetPrice", mock.Anything, pair).Return(tt.price, tt.err).Once()

			price, err := NewGuard(source, time.Second).GetPrice(context.Background(), pair)
			if tt.unavailable {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrPriceUnavailable)
				assert.True(t, price.IsZero())
				return
			}
			require.NoError(t, err)
			assert.True(t, price.Equal(tt.price))
		})
	}
}

func TestGuard_Timeout(t *testing.T) {
	start := time.Now()
	_, err := NewGuard(slowPricer{}, 20*time.Millisecond).GetPrice(context.Background(), domain.Pair{From: "BTC", To: "USDT"})
	assert.ErrorIs(t, err, ErrPriceUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLunoTicker(t *testing.T) {
	assert.Equal(t, "XBTZAR", lunoTicker(domain.Pair{From: "BTC", To: "ZAR"}))
	assert.Equal(t, "ETHZAR", lunoTicker(domain.Pair{From: "eth", To: "zar"}))
	assert.Equal(t, "XBTZAR", lunoTicker(domain.Pair{From: "BTC", To: "ZAR", Ticker: "XBTZAR"}))
}
