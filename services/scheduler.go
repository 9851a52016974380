package services

import (
	"log"
	"time"

	"badge-draw-system/models"

	"github.com/go-co-op/gocron/v2"
)

// StartReconcileScheduler runs a periodic sweep that backfills grid cards for
// trigger badges and unlocks cells missed by the event path (e.g. ownerships
// that arrived through the ledger sync while no card existed yet).
func (s *GridService) StartReconcileScheduler(interval time.Duration) {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			var userIDs []string
			if err := s.DB.Model(&models.LedgerUser{}).Pluck("id", &userIDs).Error; err != nil {
				log.Printf("[GridReconciler] DB error: %v", err)
				return
			}

			cardsCreated, cellsUnlocked := 0, 0
			for _, userID := range userIDs {
				created, err := s.EnsureCardsForUser(userID)
				if err != nil {
					log.Printf("[GridReconciler] ensure cards for %s: %v", userID, err)
					continue
				}
				unlocked, err := s.EnsureCellsForUser(userID)
				if err != nil {
					log.Printf("[GridReconciler] ensure cells for %s: %v", userID, err)
					continue
				}
				cardsCreated += created
				cellsUnlocked += unlocked
			}

			if cardsCreated > 0 || cellsUnlocked > 0 {
				log.Printf("✅ Grid reconciler: %d cards created, %d cells unlocked", cardsCreated, cellsUnlocked)
			}
		}),
	)
}
