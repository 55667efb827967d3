package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dlanger/studyden/internal/model"
	"github.com/dlanger/studyden/internal/schedule"
	"github.com/dlanger/studyden/internal/store"
)

// Scheduler sends each subscribed parent one study reminder per day at a
// fixed UTC hour, summarizing what is still open on their children's
// checklists.
type Scheduler struct {
	mu       sync.RWMutex
	service  *Service
	push     *store.PushStore
	children *store.ChildStore
	tasks    *store.TaskStore
	logs     *store.StudyLogStore
	logger   *slog.Logger

	hour     int
	interval time.Duration
	lastSent map[string]model.Date

	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a reminder scheduler that fires at the given UTC hour.
func NewScheduler(svc *Service, pushStore *store.PushStore, childStore *store.ChildStore, taskStore *store.TaskStore, logStore *store.StudyLogStore, hour int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		service:  svc,
		push:     pushStore,
		children: childStore,
		tasks:    taskStore,
		logs:     logStore,
		logger:   logger.With("component", "push_scheduler"),
		hour:     hour,
		interval: 60 * time.Second,
		lastSent: make(map[string]model.Date),
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(time.Now().UTC())
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(now time.Time) {
	if now.Hour() != s.hour {
		return
	}
	today := model.NewDate(now.Year(), now.Month(), now.Day())

	userIDs, err := s.push.ListUserIDs()
	if err != nil {
		s.logger.Error("list subscription users", "error", err)
		return
	}

	for _, userID := range userIDs {
		if s.sentToday(userID, today) {
			continue
		}
		if s.remindUser(userID, today) {
			s.markSent(userID, today)
		}
	}
}

func (s *Scheduler) sentToday(userID string, today model.Date) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSent[userID].Equal(today)
}

func (s *Scheduler) markSent(userID string, today model.Date) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSent[userID] = today
}

// remindUser builds and sends the reminder for one parent. It reports whether
// a reminder went out so the caller can avoid repeats within the same day.
func (s *Scheduler) remindUser(userID string, today model.Date) bool {
	body := s.reminderBody(userID, today)
	if body == "" {
		// Nothing open today still counts as handled.
		return true
	}

	subs, err := s.push.ListByUser(userID)
	if err != nil {
		s.logger.Error("list subscriptions", "error", err)
		return false
	}

	payload := Payload{
		Title: "Study Reminder",
		Body:  body,
		URL:   "/",
		Tag:   "study-daily-" + today.String(),
	}

	sent := false
	for _, sub := range subs {
		if err := s.service.Send(&sub, payload); err != nil {
			if errors.Is(err, ErrExpired) {
				if err := s.push.Delete(sub.ID); err != nil {
					s.logger.Error("prune expired subscription", "error", err)
				}
			} else {
				s.logger.Error("send reminder", "error", err)
			}
			continue
		}
		sent = true
	}
	return sent || len(subs) == 0
}

// reminderBody summarizes open tasks per child, "" when nothing is open.
func (s *Scheduler) reminderBody(userID string, today model.Date) string {
	children, err := s.children.List(userID)
	if err != nil {
		s.logger.Error("list children", "error", err)
		return ""
	}

	var parts []string
	for _, child := range children {
		tasks, err := s.tasks.ListByChild(child.ID, userID, false)
		if err != nil {
			s.logger.Error("list tasks", "error", err)
			continue
		}
		logs, err := s.logs.ListForDate(child.ID, userID, today)
		if err != nil {
			s.logger.Error("list logs", "error", err)
			continue
		}

		open := 0
		for _, item := range schedule.BuildDailyView(today, tasks, logs).Tasks {
			if !item.IsDone {
				open++
			}
		}
		if open == 0 {
			continue
		}
		label := "tasks"
		if open == 1 {
			label = "task"
		}
		parts = append(parts, fmt.Sprintf("%s has %d %s left today", child.Name, open, label))
	}

	if len(parts) == 0 {
		return ""
	}
	body := parts[0]
	for _, p := range parts[1:] {
		body += ", " + p
	}
	return body
}
