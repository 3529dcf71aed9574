package retrain

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"goldsignal/internal/config"
	cronrunner "goldsignal/internal/cron"
	"goldsignal/internal/models"
)

// ErrAlreadyRunning rejects a retrain started while another is in flight.
var ErrAlreadyRunning = errors.New("retrain: already running")

// GateController is the slice of the performance monitor the orchestrator
// drives: gate to TESTING before training, resolve it through historical
// validation after.
type GateController interface {
	BeginRetrain(reason string) error
	PostRetrainValidation(ctx context.Context, reason string) (models.SignalStatus, error)
}

// ModelReloader reopens the inference session after the artifact on disk
// changes.
type ModelReloader interface {
	Reload() error
}

// Service retrains the model on the first of each month. The trainer is an
// external command; the previous artifact is moved aside first and moved
// back if the trainer fails, so the system always ends up with a loadable
// artifact and a resolved gate.
type Service struct {
	Monitor    GateController
	Classifier ModelReloader
	Config     config.RetrainConfig
	Model      config.ModelConfig
	Logger     *zap.Logger
	Now        func() time.Time

	mu sync.Mutex
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Register adds the daily cron check to the runner.
func (s *Service) Register(runner *cronrunner.Runner) error {
	_, err := runner.Add("monthly-retrain", s.Config.Schedule, s.checkMonthly)
	return err
}

// Busy reports whether a retrain cycle is in flight.
func (s *Service) Busy() bool {
	if s.mu.TryLock() {
		s.mu.Unlock()
		return false
	}
	return true
}

// checkMonthly fires daily but retrains only on the 1st, guarded by a
// per-month flag file so a restart on the 1st cannot retrain twice. The
// flag records the attempt, not its success.
func (s *Service) checkMonthly(ctx context.Context) {
	now := s.now()
	if now.Day() != 1 {
		return
	}
	flag := s.flagPath(now)
	if _, err := os.Stat(flag); err == nil {
		return
	}

	err := s.Run(ctx, "scheduled monthly retrain")
	if errors.Is(err, ErrAlreadyRunning) {
		return
	}
	if err != nil {
		s.Logger.Error("monthly retrain failed", zap.Error(err))
	}
	if werr := os.WriteFile(flag, []byte("retrained at "+now.Format(time.RFC3339)+"\n"), 0o644); werr != nil {
		s.Logger.Error("write retrain flag", zap.Error(werr))
	}
}

func (s *Service) flagPath(now time.Time) string {
	return filepath.Join(s.Config.FlagDir, "retrain_"+now.Format("2006_01")+".done")
}

// Run executes one full retrain cycle. Whatever the trainer does, the gate
// leaves TESTING through exactly one PostRetrainValidation call.
func (s *Service) Run(ctx context.Context, reason string) error {
	if !s.mu.TryLock() {
		return ErrAlreadyRunning
	}
	defer s.mu.Unlock()

	if err := s.Monitor.BeginRetrain(reason); err != nil {
		return fmt.Errorf("begin retrain: %w", err)
	}

	backupPath, runErr := s.backupArtifact(s.now())
	if runErr == nil {
		runErr = s.runTrainer(ctx)
		if runErr != nil && backupPath != "" {
			if rerr := os.Rename(backupPath, s.Model.Path); rerr != nil {
				s.Logger.Error("restore artifact backup", zap.Error(rerr))
			} else {
				s.Logger.Warn("trainer failed, restored previous artifact",
					zap.String("backup", backupPath),
				)
			}
		}
	}

	if s.Classifier != nil {
		if err := s.Classifier.Reload(); err != nil {
			// Validation against an unloadable artifact fails and suspends.
			s.Logger.Warn("classifier reload failed", zap.Error(err))
		}
	}

	status, verr := s.Monitor.PostRetrainValidation(ctx, reason)
	s.Logger.Info("retrain cycle complete",
		zap.String("reason", reason),
		zap.String("status", string(status)),
		zap.Bool("trainer_ok", runErr == nil),
	)

	if runErr != nil {
		return runErr
	}
	return verr
}

// backupArtifact moves the live artifact into the backup directory. A
// missing artifact is not an error; the trainer may be producing the first
// one.
func (s *Service) backupArtifact(now time.Time) (string, error) {
	if _, err := os.Stat(s.Model.Path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("stat artifact: %w", err)
	}
	if err := os.MkdirAll(s.Config.BackupDir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	base := filepath.Base(s.Model.Path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext) + "_backup_" + now.Format("20060102") + ext
	dst := filepath.Join(s.Config.BackupDir, name)
	if err := os.Rename(s.Model.Path, dst); err != nil {
		return "", fmt.Errorf("back up artifact: %w", err)
	}
	s.Logger.Info("backed up model artifact", zap.String("backup", dst))
	return dst, nil
}

func (s *Service) runTrainer(ctx context.Context) error {
	if len(s.Config.Command) == 0 {
		return errors.New("retrain: no trainer command configured")
	}
	tctx := ctx
	if s.Config.Timeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, s.Config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(tctx, s.Config.Command[0], s.Config.Command[1:]...)
	cmd.Dir = s.Config.WorkDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("trainer command: %w: %s", err, tail(out, 512))
	}
	s.Logger.Info("trainer finished", zap.Int("output_bytes", len(out)))
	return nil
}

func tail(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
