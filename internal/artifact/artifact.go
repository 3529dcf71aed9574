package artifact

import (
	"os"
	"time"

	"go.uber.org/zap"
)

// Binder derives the identifier of the model currently in use from the
// model artifact's modification time. Retraining rewrites the artifact, so
// the mtime moves and trades recorded afterwards carry a new version.
//
// Known weakness: this is timestamp identity, not a content hash. Two
// artifacts sharing an mtime are indistinguishable. Accepted because every
// retrain rewrites the file.
type Binder struct {
	Path   string
	Logger *zap.Logger

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// Current returns the version string for the live artifact. An unreadable
// artifact is a degraded mode, not an error: the wall clock stands in for
// the mtime and a warning is logged.
func (b *Binder) Current() string {
	st, err := os.Stat(b.Path)
	if err != nil {
		if b.Logger != nil {
			b.Logger.Warn("model artifact unreadable, using wall-clock version",
				zap.String("path", b.Path),
				zap.Error(err),
			)
		}
		return b.now().UTC().Format(time.RFC3339)
	}
	return st.ModTime().UTC().Format(time.RFC3339)
}

func (b *Binder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}
