package persistence

import (
	"context"
	"log"
	"time"

	"github.com/loc-core/loc/internal/agent"
	"github.com/loc-core/loc/internal/reflection"
)

// SeedDomains implements agent.Seeder, letting the registry seed a newly
// registered agent's learning state from prior runs. The registry's
// Seeder interface carries no error return, so a query failure here is
// logged and treated as "no prior history" rather than aborting
// registration.
func (s *Store) SeedDomains(agentID string) map[string]*agent.DomainPerf {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	domains, err := s.LoadDomainStats(ctx, agentID)
	if err != nil {
		log.Printf("performance store: seed lookup for agent %q failed: %v", agentID, err)
		return nil
	}
	return domains
}

// PersistFunc adapts Store.SaveSnapshot to reflection.PersistFunc, for
// wiring into Reflector.Learn calls. Failures are logged, not propagated:
// a persistence hiccup must never block the scheduler's settlement path.
func (s *Store) PersistFunc() reflection.PersistFunc {
	return func(agentID, domain string, dp agent.DomainPerf) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.SaveSnapshot(ctx, agentID, domain, dp); err != nil {
			log.Printf("performance store: save snapshot for agent %q domain %q failed: %v", agentID, domain, err)
		}
	}
}
