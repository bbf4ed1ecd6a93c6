package services

import (
	"errors"
	"os"
	"time"

	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/pkg/logger"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

const (
	maintenanceLockName = "maintenance"
	// every day at 03:15 server time
	maintenanceSchedule = "15 3 * * *"
)

// MaintenanceService purges old audit logs and dead refresh tokens once a day.
// A scheduler lock keyed by date keeps multiple instances from doing the same run.
type MaintenanceService struct {
	db            *gorm.DB
	logSvc        *SystemLogService
	cronScheduler *cron.Cron
	instance      string
	now           func() time.Time
}

func NewMaintenanceService(db *gorm.DB) *MaintenanceService {
	host, _ := os.Hostname()
	return &MaintenanceService{
		db:       db,
		logSvc:   NewSystemLogService(db),
		instance: host,
		now:      time.Now,
	}
}

// MaintenanceReport summarizes one run.
type MaintenanceReport struct {
	Skipped       bool  `json:"skipped"`
	LogsDeleted   int64 `json:"logsDeleted"`
	TokensDeleted int64 `json:"tokensDeleted"`
}

func (s *MaintenanceService) StartScheduler() error {
	s.cronScheduler = cron.New()
	if _, err := s.cronScheduler.AddFunc(maintenanceSchedule, func() {
		if _, err := s.RunOnce(); err != nil {
			logger.Error().Err(err).Msg("[Maintenance] run failed")
		}
	}); err != nil {
		return err
	}
	s.cronScheduler.Start()
	logger.Info().Str("schedule", maintenanceSchedule).Msg("[Maintenance] Scheduler started")
	return nil
}

func (s *MaintenanceService) StopScheduler() {
	if s.cronScheduler != nil {
		<-s.cronScheduler.Stop().Done()
	}
}

// RunOnce performs today's maintenance unless another instance already has.
func (s *MaintenanceService) RunOnce() (*MaintenanceReport, error) {
	now := s.now()
	acquired, err := s.acquireLock(now.Format("2006-01-02"), now)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return &MaintenanceReport{Skipped: true}, nil
	}

	report := &MaintenanceReport{}
	report.LogsDeleted, err = s.logSvc.CleanupOldLogs(s.logSvc.GetRetentionDays())
	if err != nil {
		return nil, err
	}
	report.TokensDeleted, err = s.purgeRefreshTokens(now)
	if err != nil {
		return nil, err
	}

	if report.LogsDeleted > 0 || report.TokensDeleted > 0 {
		logger.Info().Int64("logs", report.LogsDeleted).Int64("tokens", report.TokensDeleted).Msg("[Maintenance] cleanup done")
	}
	return report, nil
}

func (s *MaintenanceService) acquireLock(key string, now time.Time) (bool, error) {
	if err := s.db.Where("expires_at < ?", now).Delete(&models.SchedulerLock{}).Error; err != nil {
		return false, err
	}

	lock := models.SchedulerLock{
		LockName:  maintenanceLockName,
		LockKey:   key,
		LockedBy:  s.instance,
		LockedAt:  now,
		ExpiresAt: now.Add(48 * time.Hour),
	}
	if err := s.db.Create(&lock).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// purgeRefreshTokens deletes tokens that expired or were revoked more than a day ago.
func (s *MaintenanceService) purgeRefreshTokens(now time.Time) (int64, error) {
	cutoff := now.Add(-24 * time.Hour)
	result := s.db.Where("expires_at < ? OR (revoked_at IS NOT NULL AND revoked_at < ?)", now, cutoff).
		Delete(&models.RefreshToken{})
	return result.RowsAffected, result.Error
}
