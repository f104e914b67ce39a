/*
scheduler.go - Birthday role reconciliation loop

PURPOSE:
  Keeps the birthday role in line with the stored birthdays: members whose
  birthday is today get the role and an announcement, members whose
  birthday has passed lose it.

DESIGN:
  - One goroutine, one cycle per CheckInterval, first cycle after one interval
  - Grant phase always runs before the revoke phase
  - has_role is written before the platform call (mark-then-best-effort):
    a failed platform call is logged and counted, never retried, never
    rolled back. A failed flag write skips that member's platform call.
  - Members are processed one at a time, which paces platform calls
  - The scheduler is the only writer of has_role

USAGE:
  scheduler := NewReconciliationScheduler(store, platform, target, logger)
  scheduler.Start(ctx)
  // ... later
  scheduler.Stop()

SEE ALSO:
  - birthday/store.go: FindBirthdaysToday, FindRoleAssignedButNotToday
  - api/handlers.go: RunReconciliation endpoint (manual cycle)
*/
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/birthday-engine/birthday"
)

// DefaultCheckInterval is the pause between reconciliation cycles.
const DefaultCheckInterval = 10 * time.Second

// RoleStore is the part of the birthday store the scheduler needs.
type RoleStore interface {
	FindBirthdaysToday(ctx context.Context, excludeRoleAssigned bool) ([]birthday.Record, error)
	FindRoleAssignedButNotToday(ctx context.Context) ([]birthday.Record, error)
	SetHasRole(ctx context.Context, userID int64, hasRole bool) error
}

// Target names where roles and announcements go.
type Target struct {
	GuildID           string
	RoleID            string
	AnnounceChannelID string
}

// CycleReport summarizes one reconciliation cycle.
type CycleReport struct {
	CycleID    string    `json:"cycle_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Granted    int       `json:"granted"`
	Revoked    int       `json:"revoked"`
	Failed     int       `json:"failed"`
}

// ReconciliationScheduler grants and revokes the birthday role.
type ReconciliationScheduler struct {
	Store         RoleStore
	Platform      Platform
	Target        Target
	CheckInterval time.Duration
	Metrics       *Metrics
	Logger        *slog.Logger

	// cycleMu serializes cycles between the loop and RunNow.
	cycleMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReconciliationScheduler creates a scheduler with the default interval.
func NewReconciliationScheduler(store RoleStore, platform Platform, target Target, logger *slog.Logger) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		Store:         store,
		Platform:      platform,
		Target:        target,
		CheckInterval: DefaultCheckInterval,
		Logger:        logger.With("component", "scheduler"),
	}
}

// Start launches the loop. It runs until ctx is done or Stop is called.
func (rs *ReconciliationScheduler) Start(ctx context.Context) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.cancel != nil {
		return
	}
	ctx, rs.cancel = context.WithCancel(ctx)

	rs.wg.Add(1)
	go rs.run(ctx)

	rs.Logger.Info("scheduler started", "interval", rs.CheckInterval)
}

// Stop ends the loop and waits for an in-flight cycle to finish.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.cancel == nil {
		return
	}
	rs.cancel()
	rs.wg.Wait()
	rs.cancel = nil

	rs.Logger.Info("scheduler stopped")
}

func (rs *ReconciliationScheduler) run(ctx context.Context) {
	defer rs.wg.Done()

	ticker := time.NewTicker(rs.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rs.RunNow(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunNow runs one cycle synchronously.
func (rs *ReconciliationScheduler) RunNow(ctx context.Context) CycleReport {
	rs.cycleMu.Lock()
	defer rs.cycleMu.Unlock()

	report := CycleReport{
		CycleID:   uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	logger := rs.Logger.With("cycle_id", report.CycleID)

	rs.grantPhase(ctx, logger, &report)
	rs.revokePhase(ctx, logger, &report)

	report.FinishedAt = time.Now().UTC()
	rs.Metrics.cycleDone(report.StartedAt, report.FinishedAt)

	if report.Granted > 0 || report.Revoked > 0 || report.Failed > 0 {
		logger.Info("cycle completed",
			"granted", report.Granted, "revoked", report.Revoked, "failed", report.Failed)
	} else {
		logger.Debug("cycle completed, nothing to do")
	}
	return report
}

func (rs *ReconciliationScheduler) grantPhase(ctx context.Context, logger *slog.Logger, report *CycleReport) {
	due, err := rs.Store.FindBirthdaysToday(ctx, true)
	if err != nil {
		logger.Error("failed to list birthdays today", "error", err)
		return
	}

	for _, rec := range due {
		userID := strconv.FormatInt(rec.UserID, 10)
		log := logger.With("user_id", userID, "action", "grant")

		if err := rs.Store.SetHasRole(ctx, rec.UserID, true); err != nil {
			log.Error("failed to mark role", "error", err)
			rs.Metrics.roleChange("grant", "store_error")
			report.Failed++
			continue
		}

		if err := rs.grant(ctx, userID); err != nil {
			log.Warn("failed to grant role", "error", err)
			rs.Metrics.roleChange("grant", "platform_error")
			report.Failed++
			continue
		}

		log.Info("gave birthday role")
		rs.Metrics.roleChange("grant", "ok")
		report.Granted++
	}
}

func (rs *ReconciliationScheduler) grant(ctx context.Context, userID string) error {
	member, err := rs.Platform.Member(ctx, rs.Target.GuildID, userID)
	if err != nil {
		return err
	}
	reason := fmt.Sprintf("%s has birthday! 🎂🎉", member.Username)
	if err := rs.Platform.AddRole(ctx, rs.Target.GuildID, userID, rs.Target.RoleID, reason); err != nil {
		return err
	}
	_, err = rs.Platform.Send(ctx, rs.Target.AnnounceChannelID, Announcement(member.User))
	return err
}

func (rs *ReconciliationScheduler) revokePhase(ctx context.Context, logger *slog.Logger, report *CycleReport) {
	over, err := rs.Store.FindRoleAssignedButNotToday(ctx)
	if err != nil {
		logger.Error("failed to list ended birthdays", "error", err)
		return
	}

	for _, rec := range over {
		userID := strconv.FormatInt(rec.UserID, 10)
		log := logger.With("user_id", userID, "action", "revoke")

		if err := rs.Store.SetHasRole(ctx, rec.UserID, false); err != nil {
			log.Error("failed to unmark role", "error", err)
			rs.Metrics.roleChange("revoke", "store_error")
			report.Failed++
			continue
		}

		if err := rs.revoke(ctx, userID); err != nil {
			log.Warn("failed to revoke role", "error", err)
			rs.Metrics.roleChange("revoke", "platform_error")
			report.Failed++
			continue
		}

		log.Info("removed birthday role")
		rs.Metrics.roleChange("revoke", "ok")
		report.Revoked++
	}
}

func (rs *ReconciliationScheduler) revoke(ctx context.Context, userID string) error {
	member, err := rs.Platform.Member(ctx, rs.Target.GuildID, userID)
	if err != nil {
		return err
	}
	reason := fmt.Sprintf("%s does not have birthday now...", member.Username)
	return rs.Platform.RemoveRole(ctx, rs.Target.GuildID, userID, rs.Target.RoleID, reason)
}

// Announcement is the message posted when a member gets the role.
func Announcement(u User) string {
	return fmt.Sprintf("Happy birthday %s, have a nice birthday and enjoy your role today 🎂🎉", u.Mention())
}
