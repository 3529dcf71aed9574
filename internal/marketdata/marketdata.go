package marketdata

import (
	"context"
	"errors"

	"goldsignal/internal/models"
)

// ErrUnavailable marks a fetch that failed everywhere it was tried. Callers
// treat it as transient: skip the work, retry next tick.
var ErrUnavailable = errors.New("marketdata: unavailable")

// Source is one provider of gold quotes. Prices and bars come back in the
// provider's native float form; decimal conversion happens at the Client.
type Source interface {
	CurrentPrice(ctx context.Context) (float64, error)
	HourlyBars(ctx context.Context, days int) ([]models.Bar, error)
	Name() string
}
