package models

import "time"

// Bar is one OHLCV candle. Bars feed indicator math and the historical
// validator; float64 is fine here, traded prices stay decimal.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}
