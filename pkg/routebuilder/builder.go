// Package routebuilder turns transfer parameters into an executable route:
// it validates input against the chain registry, obtains a quote and
// derives the minimum received amount from the slippage tolerance.
package routebuilder

import (
	"context"
	"math/big"

	"github.com/trustware-io/trustware-sdk-sub002/pkg/bridgerr"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/chains"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/logger"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/models"
	"github.com/trustware-io/trustware-sdk-sub002/pkg/quote"
)

const bpsDenominator = 10000

// Builder builds executable routes through a quote client. It has no state
// of its own and never writes to the intent store.
type Builder struct {
	quotes             quote.Client
	defaultSlippageBps int
	maxSlippageBps     int
	logger             logger.Logger
}

// NewBuilder creates a new route builder
func NewBuilder(quotes quote.Client, defaultSlippageBps, maxSlippageBps int, log logger.Logger) *Builder {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Builder{
		quotes:             quotes,
		defaultSlippageBps: defaultSlippageBps,
		maxSlippageBps:     maxSlippageBps,
		logger:             log,
	}
}

// BuildRoute validates the parameters, obtains a quote and packages the
// executable transaction request. All amounts stay base-unit big integers;
// nothing here touches floating point.
func (b *Builder) BuildRoute(ctx context.Context, params models.RouteParams) (*models.BuildRouteResult, error) {
	fromAmount, slippageBps, err := b.validate(params)
	if err != nil {
		return nil, err
	}

	routeQuote, err := b.quotes.Quote(ctx, quote.Request{
		FromChainID: params.FromChainID,
		ToChainID:   params.ToChainID,
		FromToken:   params.FromToken,
		ToToken:     params.ToToken,
		FromAmount:  fromAmount.String(),
		FromAddress: params.FromAddress,
		ToAddress:   params.ToAddress,
		SlippageBps: slippageBps,
	})
	if err != nil {
		return nil, err
	}

	minToAmount := ApplySlippage(routeQuote.ToAmount, slippageBps)

	feeCosts := make([]models.FeeCost, 0, len(routeQuote.FeeCosts))
	for _, fc := range routeQuote.FeeCosts {
		feeCosts = append(feeCosts, models.FeeCost{Name: fc.Name, Token: fc.Token, AmountWei: fc.AmountWei})
	}

	b.logger.InfoWithChain(params.FromChainID, "Built route %s: toAmount=%s minToAmount=%s",
		routeQuote.RequestID, routeQuote.ToAmount.String(), minToAmount.String())

	return &models.BuildRouteResult{
		RequestID:        routeQuote.RequestID,
		QuoteToAmountWei: routeQuote.ToAmount,
		MinToAmountWei:   minToAmount,
		TxRequest: &models.TxRequest{
			ChainID:  params.FromChainID,
			To:       routeQuote.To,
			Data:     routeQuote.Data,
			Value:    routeQuote.Value,
			GasLimit: routeQuote.GasLimit,
		},
		FeeCosts: feeCosts,
		IsGMP:    routeQuote.IsGMP,
		RouteRaw: routeQuote.RouteRaw,
	}, nil
}

// validate checks the parameters against the chain registry and returns the
// parsed amount and the effective slippage tolerance.
func (b *Builder) validate(params models.RouteParams) (*big.Int, int, error) {
	if !chains.IsSupported(params.FromChainID) {
		return nil, 0, bridgerr.New(bridgerr.KindValidation, "unsupported source chain %d", params.FromChainID)
	}
	if !chains.IsSupported(params.ToChainID) {
		return nil, 0, bridgerr.New(bridgerr.KindValidation, "unsupported destination chain %d", params.ToChainID)
	}
	if params.FromToken == "" || params.ToToken == "" {
		return nil, 0, bridgerr.New(bridgerr.KindValidation, "from and to tokens are required")
	}
	if err := chains.ValidateAddress(params.FromChainID, params.FromAddress); err != nil {
		return nil, 0, bridgerr.Wrap(bridgerr.KindValidation, err, "invalid from address")
	}
	if err := chains.ValidateAddress(params.ToChainID, params.ToAddress); err != nil {
		return nil, 0, bridgerr.Wrap(bridgerr.KindValidation, err, "invalid to address")
	}

	fromAmount, ok := new(big.Int).SetString(params.FromAmount, 10)
	if !ok || fromAmount.Sign() <= 0 {
		return nil, 0, bridgerr.New(bridgerr.KindValidation, "amount must be a positive base-unit integer, got %q", params.FromAmount)
	}

	slippageBps := params.SlippageBps
	if slippageBps == 0 {
		slippageBps = b.defaultSlippageBps
	}
	if slippageBps < 0 || slippageBps > b.maxSlippageBps {
		return nil, 0, bridgerr.New(bridgerr.KindValidation,
			"slippage %d bps out of range [0, %d]", params.SlippageBps, b.maxSlippageBps)
	}

	return fromAmount, slippageBps, nil
}

// ApplySlippage computes the minimum received amount for a quoted amount
// and a tolerance in basis points, with integer truncation:
// min = toAmount * (10000 - bps) / 10000.
func ApplySlippage(toAmount *big.Int, slippageBps int) *big.Int {
	minTo := new(big.Int).Mul(toAmount, big.NewInt(int64(bpsDenominator-slippageBps)))
	return minTo.Quo(minTo, big.NewInt(bpsDenominator))
}
