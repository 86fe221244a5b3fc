// Package sweeper runs the periodic maintenance jobs: releasing lapsed
// seat holds, rolling occurrence statuses forward with the wall clock,
// and flagging overdue loans.
package sweeper

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// holdSweeper frees expired seat holds across open occurrences.
type holdSweeper interface {
	SweepOpen(ctx context.Context, now time.Time) (int64, error)
}

// clockRoller advances occurrence statuses past their start/end times.
type clockRoller interface {
	RollClock(ctx context.Context, now time.Time) (int64, error)
}

// overdueMarker flags loans past their estimated return date.
type overdueMarker interface {
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

// Sweeper owns the cron schedule. Each tick runs all three jobs; a
// failing job logs and leaves the others untouched.
type Sweeper struct {
	cron    *cron.Cron
	holds   holdSweeper
	clock   clockRoller
	overdue overdueMarker
}

func New(holds holdSweeper, clock clockRoller, overdue overdueMarker) *Sweeper {
	return &Sweeper{
		cron:    cron.New(),
		holds:   holds,
		clock:   clock,
		overdue: overdue,
	}
}

// Start schedules the sweep under the given cron spec ("@every 1m",
// "*/5 * * * *", ...) and launches the scheduler.
func (s *Sweeper) Start(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.Tick); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running tick to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Tick runs one sweep immediately. Exported so main can run a pass at
// startup before the first scheduled tick.
func (s *Sweeper) Tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	now := time.Now().UTC()

	if n, err := s.holds.SweepOpen(ctx, now); err != nil {
		log.Printf("sweeper: release expired holds: %v", err)
	} else if n > 0 {
		log.Printf("sweeper: released %d expired holds", n)
	}
	if n, err := s.clock.RollClock(ctx, now); err != nil {
		log.Printf("sweeper: roll occurrence clock: %v", err)
	} else if n > 0 {
		log.Printf("sweeper: advanced %d occurrences", n)
	}
	if n, err := s.overdue.MarkOverdue(ctx, now); err != nil {
		log.Printf("sweeper: mark overdue loans: %v", err)
	} else if n > 0 {
		log.Printf("sweeper: marked %d loans overdue", n)
	}
}
