// Package monitor periodically evaluates every machine against its
// maintenance template and raises a notification when a component enters
// the warning or overdue range.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"loom-maintenance-backend/config"
	"loom-maintenance-backend/internal/fleet"
	"loom-maintenance-backend/internal/logs"
	"loom-maintenance-backend/internal/maintenance"
	"loom-maintenance-backend/internal/model"
	"loom-maintenance-backend/internal/store"
)

// Dispatcher hands notifications to the delivery workers.
type Dispatcher interface {
	Dispatch(n model.Notification) bool
}

// Service runs the interval checks on a timer.
type Service struct {
	cfg        config.MonitorConfig
	store      store.Store
	dispatcher Dispatcher
	now        func() time.Time
}

// NewService creates a monitor. dispatcher may be nil.
func NewService(cfg config.MonitorConfig, s store.Store, dispatcher Dispatcher) *Service {
	return &Service{
		cfg:        cfg,
		store:      s,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

// Run checks once immediately and then on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		logs.Logger.Info("interval monitor is disabled, not starting")
		return
	}
	logs.Logger.WithField("interval", s.cfg.Interval.String()).Info("starting interval monitor")

	s.check(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			logs.Logger.Info("interval monitor shutting down")
			return
		case <-timer.C:
			s.check(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

func (s *Service) check(ctx context.Context) {
	raised, err := s.CheckOnce(ctx)
	if err != nil {
		logs.Logger.WithError(err).Warn("interval check failed")
		return
	}
	if len(raised) > 0 {
		logs.Logger.WithField("count", len(raised)).Info("raised maintenance notifications")
	}
}

// CheckOnce evaluates every machine and appends a notification for each
// tracked component in warning or overdue state, unless one with the same
// ref was raised since the component was last serviced. It returns the new
// notifications after they are stored and dispatched.
func (s *Service) CheckOnce(ctx context.Context) ([]model.Notification, error) {
	doc, err := s.store.Read(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending(doc)) == 0 {
		return nil, nil
	}

	var raised []model.Notification
	_, err = s.store.Update(ctx, func(d *model.Document) error {
		raised = raised[:0]
		now := s.now()
		for _, n := range pending(d) {
			raised = append(raised, fleet.Notify(d, n, now))
		}
		if len(raised) == 0 {
			return errNothingToDo
		}
		return nil
	})
	if errors.Is(err, errNothingToDo) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to store notifications: %w", err)
	}

	if s.dispatcher != nil {
		for _, n := range raised {
			s.dispatcher.Dispatch(n)
		}
	}
	return raised, nil
}

// errNothingToDo aborts an update whose document changed in between.
var errNothingToDo = errors.New("nothing to do")

// pending lists the notifications that d calls for but does not contain yet.
func pending(d *model.Document) []model.Notification {
	latest := make(map[string]time.Time)
	for _, n := range d.Notifications {
		if n.Ref == "" {
			continue
		}
		if t, ok := latest[n.Ref]; !ok || n.Timestamp.After(t) {
			latest[n.Ref] = n.Timestamp
		}
	}

	var out []model.Notification
	for i := range d.Machines {
		m := &d.Machines[i]
		report := maintenance.EvaluateIn(d, m)
		for _, c := range report.Components {
			if !c.Tracked || c.Status == maintenance.StatusOK {
				continue
			}
			ref := Ref(m.ID, c.ComponentID, c.Status)
			if t, ok := latest[ref]; ok && (c.LastMaintenanceDate == nil || !t.Before(*c.LastMaintenanceDate)) {
				continue
			}
			out = append(out, model.Notification{
				Message: message(m, c),
				Urgent:  c.Status == maintenance.StatusOverdue,
				Ref:     ref,
			})
			logs.Logger.WithFields(logrus.Fields{
				"machine":   m.ID,
				"component": c.ComponentID,
				"status":    c.Status,
				"remaining": c.RemainingHours,
			}).Debug("component needs attention")
		}
	}
	return out
}

// Ref identifies the condition a monitor notification reports.
func Ref(machineID, componentID string, status maintenance.Status) string {
	return machineID + "/" + componentID + "/" + string(status)
}

func message(m *model.Machine, c maintenance.ComponentReport) string {
	if c.Status == maintenance.StatusOverdue {
		return fmt.Sprintf("Wartung überfällig: %s, %s (%d h überzogen)", m.Name, c.Name, -c.RemainingHours)
	}
	return fmt.Sprintf("Wartung bald fällig: %s, %s (noch %d h)", m.Name, c.Name, c.RemainingHours)
}
