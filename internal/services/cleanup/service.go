package cleanup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/colligo/internal/common"
	"github.com/ternarybob/colligo/internal/storage/badger"
)

// Service runs scheduled maintenance: removing result artifacts past their
// retention age and deleting checkpoints of abandoned jobs.
type Service struct {
	config      *common.Config
	checkpoints *badger.CheckpointStorage
	cron        *cron.Cron
	logger      arbor.ILogger
}

// NewService creates the cleanup scheduler
func NewService(config *common.Config, checkpoints *badger.CheckpointStorage, logger arbor.ILogger) *Service {
	return &Service{
		config:      config,
		checkpoints: checkpoints,
		cron:        cron.New(),
		logger:      logger,
	}
}

// Start registers the cleanup pass with the cron schedule and runs it once
// immediately so a restart does not defer overdue cleanup a full cycle.
func (s *Service) Start() error {
	if _, err := s.cron.AddFunc(s.config.Cleanup.Schedule, s.runPass); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}
	s.cron.Start()

	common.SafeGo(s.logger, "cleanup.initialPass", s.runPass)

	s.logger.Info().
		Str("schedule", s.config.Cleanup.Schedule).
		Int("artifact_max_days", s.config.Output.MaxAgeDays).
		Int("checkpoint_max_days", s.config.Cleanup.CheckpointMaxDays).
		Msg("Cleanup scheduler started")
	return nil
}

// Stop halts the scheduler, waiting for an in-flight pass to finish
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Service) runPass() {
	s.cleanArtifacts()
	s.cleanCheckpoints()
}

func (s *Service) cleanArtifacts() {
	maxAge := time.Duration(s.config.Output.MaxAgeDays) * 24 * time.Hour
	if maxAge <= 0 {
		return
	}
	cutoff := time.Now().Add(-maxAge)

	entries, err := os.ReadDir(s.config.Output.Directory)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Msg("Failed to read output directory for cleanup")
		}
		return
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.config.Output.Directory, entry.Name())
		if err := os.Remove(path); err != nil {
			s.logger.Warn().Err(err).Str("file", entry.Name()).Msg("Failed to remove old artifact")
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Old result artifacts cleaned up")
	}
}

func (s *Service) cleanCheckpoints() {
	maxAge := time.Duration(s.config.Cleanup.CheckpointMaxDays) * 24 * time.Hour
	if maxAge <= 0 {
		return
	}

	deleted, err := s.checkpoints.DeleteOlderThan(context.Background(), time.Now().Add(-maxAge))
	if err != nil {
		s.logger.Warn().Err(err).Msg("Checkpoint cleanup failed")
		return
	}
	if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Msg("Stale checkpoints cleaned up")
	}
}
