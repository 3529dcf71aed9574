package broker

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"goldsignal/internal/config"
	"goldsignal/internal/models"
)

// Alpaca mirrors emitted signals as bracket orders on a proxy equity.
// Spot gold is not directly tradable there, so orders go to the configured
// proxy symbol with the signal's stop and target rescaled to the proxy's
// price. Placement is best effort; failures never touch tracker or gate
// state.
type Alpaca struct {
	Trading interface {
		PlaceOrder(req alpaca.PlaceOrderRequest) (*alpaca.Order, error)
	}
	Data interface {
		GetLatestTrade(symbol string, req marketdata.GetLatestTradeRequest) (*marketdata.Trade, error)
	}
	Config config.BrokerConfig
	Logger *zap.Logger
}

// New builds clients from the environment (APCA_API_KEY_ID and friends),
// same as the SDK default.
func New(cfg config.BrokerConfig, logger *zap.Logger) *Alpaca {
	return &Alpaca{
		Trading: alpaca.NewClient(alpaca.ClientOpts{}),
		Data:    marketdata.NewClient(marketdata.ClientOpts{}),
		Config:  cfg,
		Logger:  logger,
	}
}

// PlaceBracket submits a market order with the signal's levels as the
// bracket. Levels are multiplied by proxy/gold so the stop distance keeps
// its proportion on the cheaper instrument. A signal without levels is
// skipped: an unprotected position at the broker has no analogue in the
// tracker.
func (a *Alpaca) PlaceBracket(_ context.Context, sig models.Signal) error {
	var side alpaca.Side
	switch sig.Class {
	case models.ClassBuy:
		side = alpaca.Buy
	case models.ClassSell:
		side = alpaca.Sell
	default:
		return nil
	}
	if !sig.HasLevels() {
		a.Logger.Warn("signal without levels, skipping broker order",
			zap.String("class", string(sig.Class)))
		return nil
	}

	last, err := a.Data.GetLatestTrade(a.Config.Symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return fmt.Errorf("proxy quote %s: %w", a.Config.Symbol, err)
	}
	ratio := decimal.NewFromFloat(last.Price).Div(sig.EntryPrice)
	tp := sig.TakeProfit.Mul(ratio).Round(2)
	sl := sig.StopLoss.Mul(ratio).Round(2)

	qty := decimal.NewFromInt(a.Config.Qty)
	req := alpaca.PlaceOrderRequest{
		Symbol:      a.Config.Symbol,
		Qty:         &qty,
		Side:        side,
		Type:        alpaca.Market,
		TimeInForce: alpaca.Day,
		OrderClass:  alpaca.Bracket,
		TakeProfit:  &alpaca.TakeProfit{LimitPrice: &tp},
		StopLoss:    &alpaca.StopLoss{StopPrice: &sl},
	}

	order, err := a.Trading.PlaceOrder(req)
	if err != nil {
		return fmt.Errorf("alpaca order: %w", err)
	}
	a.Logger.Info("broker order placed",
		zap.String("order_id", order.ID),
		zap.String("symbol", a.Config.Symbol),
		zap.String("side", string(side)),
		zap.String("qty", qty.String()),
		zap.String("stop", sl.String()),
		zap.String("target", tp.String()),
	)
	return nil
}
