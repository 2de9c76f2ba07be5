package workers

import (
	"context"
	"log/slog"
	"time"

	"soulconnect/contract"
	"soulconnect/domain"
	"soulconnect/domain/event"
	"soulconnect/observability"
	"soulconnect/repositories"
)

// PresenceSweeper periodically demotes identities that are still flagged
// online in the durable store but have been inactive past the offline
// threshold. Each demoted identity produces one presence-change broadcast
// per room it participates in. A failing store skips the tick; the
// sweeper never brings the process down.
type PresenceSweeper struct {
	log        *slog.Logger
	identities repositories.IIdentityRepository
	rooms      repositories.IRoomRepository
	router     contract.IRouter
	interval   time.Duration
	metrics    *observability.Metrics
}

func NewPresenceSweeper(log *slog.Logger, identities repositories.IIdentityRepository,
	rooms repositories.IRoomRepository, router contract.IRouter,
	interval time.Duration, metrics *observability.Metrics) *PresenceSweeper {
	return &PresenceSweeper{
		log:        log,
		identities: identities,
		rooms:      rooms,
		router:     router,
		interval:   interval,
		metrics:    metrics,
	}
}

func (w *PresenceSweeper) Run(ctx context.Context) error {
	w.log.Info("Starting presence sweeper", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. It is idempotent: an identity demoted on one pass
// has its online flag cleared, so the next pass skips it until new
// activity flips it back.
func (w *PresenceSweeper) Sweep(ctx context.Context) {
	w.metrics.SweeperTicks.Inc()
	now := time.Now().UTC()

	stale, err := w.identities.StaleOnline(now.Add(-domain.AwayWindow))
	if err != nil {
		w.log.Warn("Sweep skipped, store unavailable", "error", err)
		return
	}

	for _, identity := range stale {
		if err := w.identities.MarkOffline(identity.ID); err != nil {
			w.log.Warn("Failed to mark identity offline", "identity_id", identity.ID, "error", err)
			continue
		}
		w.metrics.PresenceTransitions.WithLabelValues(string(domain.PresenceOffline)).Inc()
		w.notify(ctx, identity, now)
	}
}

func (w *PresenceSweeper) notify(ctx context.Context, identity domain.Identity, at time.Time) {
	rooms, err := w.rooms.ForIdentity(identity.ID)
	if err != nil {
		w.log.Warn("Presence notification skipped", "identity_id", identity.ID, "error", err)
		return
	}
	for _, room := range rooms {
		w.router.Broadcast(ctx, event.PresenceChanged{
			Room:        room.ID,
			IdentityID:  identity.ID,
			DisplayName: identity.DisplayName,
			Presence:    domain.PresenceOffline,
			At:          at,
		})
	}
}
