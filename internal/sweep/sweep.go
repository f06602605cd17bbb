// Package sweep runs the periodic maintenance jobs: expired connection
// tickets are dropped every minute and staged documents that were never
// attached to a message are purged daily.
package sweep

import (
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/autoserviceai/chatd/internal/store"
	"github.com/autoserviceai/chatd/internal/ticket"
)

const staleDocumentAge = 24 * time.Hour

// Sweeper owns the cron schedule for background maintenance.
type Sweeper struct {
	cron    *cron.Cron
	store   *store.Store
	tickets *ticket.Registry
}

func New(st *store.Store, tickets *ticket.Registry) *Sweeper {
	return &Sweeper{
		cron:    cron.New(),
		store:   st,
		tickets: tickets,
	}
}

// Start registers the jobs and starts the scheduler in its own goroutine.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc("* * * * *", s.sweepTickets); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("30 3 * * *", s.purgeStagedDocuments); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweepTickets() {
	if n := s.tickets.Sweep(); n > 0 {
		slog.Debug("expired tickets dropped", "count", n)
	}
}

func (s *Sweeper) purgeStagedDocuments() {
	n, err := s.store.PurgeStagedDocuments(time.Now().Add(-staleDocumentAge))
	if err != nil {
		slog.Warn("staged document purge failed", "error", err)
		return
	}
	if n > 0 {
		slog.Info("staged documents purged", "count", n)
	}
}
