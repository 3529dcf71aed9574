package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"goldsignal/internal/models"
)

const (
	historyFile = "performance_history.json"
	tradesFile  = "active_trades.json"
)

// ErrSkipSave, returned from an Update closure, aborts the save without
// failing the update. For read-modify-write sequences that decide they have
// nothing to write.
var ErrSkipSave = errors.New("store: skip save")

// Store owns the two persisted JSON documents: the performance history and
// the trade list. Every document is read fresh from disk and written whole;
// the mutex makes each load-mutate-save sequence a critical section so a
// trade close and a dashboard read cannot interleave into a lost update.
type Store struct {
	Dir    string
	Logger *zap.Logger

	mu sync.Mutex
}

func (s *Store) historyPath() string {
	return filepath.Join(s.Dir, historyFile)
}

func (s *Store) tradesPath() string {
	return filepath.Join(s.Dir, tradesFile)
}

// History loads the performance document. A missing file is a fresh system:
// empty history with the gate open.
func (s *Store) History() (*models.PerformanceHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadHistory()
}

// SaveHistory writes the performance document whole.
func (s *Store) SaveHistory(h *models.PerformanceHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveHistory(h)
}

// UpdateHistory runs fn on the freshly loaded document and persists the
// result, all under the store lock. fn returning an error aborts the save.
func (s *Store) UpdateHistory(fn func(*models.PerformanceHistory) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, err := s.loadHistory()
	if err != nil {
		return err
	}
	if err := fn(h); err != nil {
		if errors.Is(err, ErrSkipSave) {
			return nil
		}
		return err
	}
	return s.saveHistory(h)
}

// Trades loads the trade list. Missing file means no trades yet.
func (s *Store) Trades() ([]models.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadTrades()
}

// SaveTrades writes the trade list whole.
func (s *Store) SaveTrades(trades []models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveTrades(trades)
}

// UpdateTrades runs fn on the freshly loaded trade list and persists the
// result, all under the store lock.
func (s *Store) UpdateTrades(fn func(*[]models.Trade) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades, err := s.loadTrades()
	if err != nil {
		return err
	}
	if err := fn(&trades); err != nil {
		if errors.Is(err, ErrSkipSave) {
			return nil
		}
		return err
	}
	return s.saveTrades(trades)
}

func (s *Store) loadHistory() (*models.PerformanceHistory, error) {
	b, err := os.ReadFile(s.historyPath())
	if os.IsNotExist(err) {
		return models.NewPerformanceHistory(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read history: %w", err)
	}

	h := models.NewPerformanceHistory()
	if err := json.Unmarshal(b, h); err != nil {
		return nil, fmt.Errorf("store: decode history: %w", err)
	}
	h.Normalize()
	return h, nil
}

func (s *Store) saveHistory(h *models.PerformanceHistory) error {
	if err := s.writeFile(s.historyPath(), h); err != nil {
		return fmt.Errorf("store: write history: %w", err)
	}
	return nil
}

func (s *Store) loadTrades() ([]models.Trade, error) {
	b, err := os.ReadFile(s.tradesPath())
	if os.IsNotExist(err) {
		return []models.Trade{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read trades: %w", err)
	}

	var trades []models.Trade
	if err := json.Unmarshal(b, &trades); err != nil {
		return nil, fmt.Errorf("store: decode trades: %w", err)
	}
	if trades == nil {
		trades = []models.Trade{}
	}
	return trades, nil
}

func (s *Store) saveTrades(trades []models.Trade) error {
	if trades == nil {
		trades = []models.Trade{}
	}
	if err := s.writeFile(s.tradesPath(), trades); err != nil {
		return fmt.Errorf("store: write trades: %w", err)
	}
	return nil
}

// writeFile persists v atomically: marshal, write a temp file in the same
// directory, fsync, rename over the target. A crash mid-write leaves the
// previous document intact.
func (s *Store) writeFile(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	if s.Logger != nil {
		s.Logger.Debug("document saved", zap.String("path", path), zap.Int("bytes", len(b)))
	}
	return nil
}
