package routebuilder

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustware-io/trustware-sdk-sub002/pkg/bridgerr"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/models"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/quote"
)

const (
	testFromAddr = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	testToAddr   = "0x8ba1f109551bD432803012645Ac136ddd64DBA72"
	testUSDC     = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

type fakeQuoteClient struct {
	lastReq quote.Request
	quote   *quote.RouteQuote
	err     error
}

func (f *fakeQuoteClient) Quote(_ context.Context, req quote.Request) (*quote.RouteQuote, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return f.quote, nil
}

func validParams() models.RouteParams {
	return models.RouteParams{
		FromChainID: 1,
		ToChainID:   137,
		FromToken:   testUSDC,
		ToToken:     testUSDC,
		FromAmount:  "1000000",
		FromAddress: testFromAddr,
		ToAddress:   testToAddr,
		SlippageBps: 100,
	}
}

func TestApplySlippage(t *testing.T) {
	tests := []struct {
		name     string
		toAmount string
		bps      int
		expected string
	}{
		{name: "one percent truncates down", toAmount: "1000", bps: 100, expected: "990"},
		{name: "zero slippage is identity", toAmount: "123456789", bps: 0, expected: "123456789"},
		{name: "truncation never rounds up", toAmount: "999", bps: 1, expected: "998"},
		{name: "small amount can truncate to zero", toAmount: "1", bps: 100, expected: "0"},
		{name: "large amount stays exact", toAmount: "1000000000000000000", bps: 50, expected: "995000000000000000"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			toAmount, ok := new(big.Int).SetString(tc.toAmount, 10)
			require.True(t, ok)
			got := ApplySlippage(toAmount, tc.bps)
			assert.Equal(t, tc.expected, got.String())
		})
	}
}

func TestBuildRoute(t *testing.T) {
	newClient := func() *fakeQuoteClient {
		return &fakeQuoteClient{
			quote: &quote.RouteQuote{
				RequestID: "req-1",
				ToAmount:  big.NewInt(995000),
				To:        testToAddr,
				Data:      []byte{0x01, 0x02},
				Value:     big.NewInt(0),
				GasLimit:  210000,
			},
		}
	}

	t.Run("computes minimum from quoted amount", func(t *testing.T) {
		client := newClient()
		b := NewBuilder(client, 50, 500, nil)

		result, err := b.BuildRoute(context.Background(), validParams())
		require.NoError(t, err)

		assert.Equal(t, "req-1", result.RequestID)
		assert.Equal(t, "995000", result.QuoteToAmountWei.String())
		// 995000 * 9900 / 10000 = 985050
		assert.Equal(t, "985050", result.MinToAmountWei.String())
		require.NotNil(t, result.TxRequest)
		assert.Equal(t, int64(1), result.TxRequest.ChainID)
		assert.Equal(t, uint64(210000), result.TxRequest.GasLimit)
	})

	t.Run("zero slippage falls back to default", func(t *testing.T) {
		client := newClient()
		b := NewBuilder(client, 50, 500, nil)

		params := validParams()
		params.SlippageBps = 0
		_, err := b.BuildRoute(context.Background(), params)
		require.NoError(t, err)
		assert.Equal(t, 50, client.lastReq.SlippageBps)
	})

	t.Run("quote errors pass through unchanged", func(t *testing.T) {
		client := newClient()
		client.err = bridgerr.New(bridgerr.KindQuote, "no route found")
		b := NewBuilder(client, 50, 500, nil)

		_, err := b.BuildRoute(context.Background(), validParams())
		require.Error(t, err)
		assert.True(t, bridgerr.IsKind(err, bridgerr.KindQuote))
	})
}

func TestBuildRouteValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.RouteParams)
	}{
		{name: "unsupported source chain", mutate: func(p *models.RouteParams) { p.FromChainID = 999 }},
		{name: "unsupported destination chain", mutate: func(p *models.RouteParams) { p.ToChainID = 999 }},
		{name: "missing from token", mutate: func(p *models.RouteParams) { p.FromToken = "" }},
		{name: "missing to token", mutate: func(p *models.RouteParams) { p.ToToken = "" }},
		{name: "bad from address", mutate: func(p *models.RouteParams) { p.FromAddress = "not-an-address" }},
		{name: "bad to address", mutate: func(p *models.RouteParams) { p.ToAddress = "0x123" }},
		{name: "zero amount", mutate: func(p *models.RouteParams) { p.FromAmount = "0" }},
		{name: "negative amount", mutate: func(p *models.RouteParams) { p.FromAmount = "-5" }},
		{name: "decimal amount", mutate: func(p *models.RouteParams) { p.FromAmount = "1.5" }},
		{name: "empty amount", mutate: func(p *models.RouteParams) { p.FromAmount = "" }},
		{name: "slippage above max", mutate: func(p *models.RouteParams) { p.SlippageBps = 501 }},
		{name: "negative slippage", mutate: func(p *models.RouteParams) { p.SlippageBps = -1 }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeQuoteClient{}
			b := NewBuilder(client, 50, 500, nil)

			params := validParams()
			tc.mutate(&params)
			_, err := b.BuildRoute(context.Background(), params)
			require.Error(t, err)
			assert.True(t, bridgerr.IsKind(err, bridgerr.KindValidation), "expected validation error, got %v", err)
			assert.Empty(t, client.lastReq.FromAmount, "quote client must not be called on invalid input")
		})
	}
}
