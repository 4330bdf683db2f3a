package recipe

import (
	"context"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"gridlake/internal/domain"
)

// Scheduler runs recipes with a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	svc     *Service
	recipes domain.RecipeRepository
	logger  *slog.Logger
	mu      sync.Mutex
	entries map[string]cron.EntryID // recipe ID → cron entry
}

// NewScheduler creates a recipe scheduler.
func NewScheduler(svc *Service, recipes domain.RecipeRepository, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		svc:     svc,
		recipes: recipes,
		logger:  logger.With("component", "recipe-scheduler"),
		entries: make(map[string]cron.EntryID),
	}
}

// Start loads all scheduled recipes and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadSchedules(ctx); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("recipe scheduler started")
	return nil
}

// Stop gracefully stops the cron loop.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.logger.Info("recipe scheduler stopped")
}

// Reload clears all cron entries and reloads from the metastore.
func (s *Scheduler) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entryID := range s.entries {
		s.cron.Remove(entryID)
	}
	s.entries = make(map[string]cron.EntryID)

	return s.loadSchedules(ctx)
}

func (s *Scheduler) loadSchedules(ctx context.Context) error {
	recipes, err := s.recipes.ListScheduled(ctx)
	if err != nil {
		return err
	}

	for _, r := range recipes {
		if r.ScheduleCron == nil {
			continue
		}
		schedule := *r.ScheduleCron
		recipeName := r.Name

		entryID, err := s.cron.AddFunc(schedule, func() {
			ctx := context.Background()
			if _, runErr := s.svc.Run(ctx, recipeName); runErr != nil {
				s.logger.Warn("scheduled run failed",
					"recipe", recipeName,
					"error", runErr,
				)
			}
		})
		if err != nil {
			s.logger.Warn("invalid cron schedule",
				"recipe", recipeName,
				"schedule", schedule,
				"error", err,
			)
			continue
		}

		s.entries[r.ID] = entryID
		s.logger.Info("scheduled recipe", "recipe", recipeName, "schedule", schedule)
	}

	return nil
}

// Compile-time check that Scheduler implements ScheduleReloader.
var _ ScheduleReloader = (*Scheduler)(nil)
