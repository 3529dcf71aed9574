package classifier

import (
	"testing"

	"goldsignal/internal/models"
)

func TestDecidePicksWinningClass(t *testing.T) {
	cases := []struct {
		probs []float32
		class models.SignalClass
		conf  float64
	}{
		{[]float32{0.5, 0.25, 0.25}, models.ClassNeutral, 0.5},
		{[]float32{0.25, 0.5, 0.25}, models.ClassBuy, 0.5},
		{[]float32{0.25, 0.25, 0.5}, models.ClassSell, 0.5},
		// Ties resolve to the lower index.
		{[]float32{0.25, 0.375, 0.375}, models.ClassBuy, 0.375},
		{[]float32{0.375, 0.375, 0.25}, models.ClassNeutral, 0.375},
	}
	for _, c := range cases {
		class, conf := decide(c.probs)
		if class != c.class {
			t.Fatalf("decide(%v) class=%v want=%v", c.probs, class, c.class)
		}
		if conf != c.conf {
			t.Fatalf("decide(%v) conf=%v want=%v", c.probs, conf, c.conf)
		}
	}
}

func TestDefaultLibraryPathNonEmpty(t *testing.T) {
	if defaultLibraryPath() == "" {
		t.Fatalf("defaultLibraryPath returned empty string")
	}
}
