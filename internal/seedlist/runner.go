package seedlist

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/demonlist/internal/adapters/http/api"
	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/internal/domain/permissions"
	"github.com/okian/demonlist/pkg/logger"
)

const tokenTTL = time.Hour

// seeder is the identity the run acts as. Approving records needs the list
// administrator capability.
var seeder = permissions.Identity{
	UserID:      1,
	Name:        "seed-list",
	Permissions: permissions.NewSet(permissions.ListAdministrator),
}

// Run seeds the service described by cfg and verifies the result.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("a token secret is required to seed the list")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	log := logger.Get().Named("seedlist")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting seed run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("demons", cfg.Demons),
		logger.Int("players", cfg.Players),
		logger.Int("records", cfg.Records),
		logger.Int("workers", cfg.Workers),
		logger.Uint64("seed", cfg.Seed))

	token, err := api.NewTokens(cfg.Secret, cfg.Issuer).Issue(seeder, tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("mint token: %w", err)
	}
	c := newClient(cfg.BaseURL, token, cfg.Timeout)

	// Step 1: Check service health
	if err := c.call(ctx, http.MethodGet, "/healthz", nil, http.StatusOK, nil); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Note whether the list starts empty; only then is the final
	// order fully predictable.
	var existing []model.Demon
	if err := c.call(ctx, http.MethodGet, "/api/v1/demons?limit=1", nil, http.StatusOK, &existing); err != nil {
		return nil, err
	}

	p := generatePlan(cfg)

	// Step 3: Place demons. Order matters, so this is sequential.
	demons, err := placeDemons(ctx, c, p.demons, stats)
	if err != nil {
		return stats, fmt.Errorf("placing demons: %w", err)
	}

	// Step 4: Register players
	playerIDs, err := registerPlayers(ctx, c, cfg, p.players, stats)
	if err != nil {
		return stats, fmt.Errorf("registering players: %w", err)
	}

	// Step 5: Submit and approve records concurrently
	submitRecords(ctx, c, cfg, p.records, demons, playerIDs, stats)

	// Step 6: Verify
	var expected []int64
	if len(existing) == 0 {
		expected = expectedOrder(p.demons, demons)
	}
	if err := verifyDensity(ctx, c, expected); err != nil {
		return stats, err
	}
	if stats.RankedPlayers, err = verifyRanking(ctx, c); err != nil {
		return stats, err
	}
	if err := verifyRevalidation(ctx, c); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	log.Info(ctx, "seed run completed successfully")
	return stats, nil
}

func placeDemons(ctx context.Context, c *client, specs []demonSpec, stats *Stats) ([]model.Demon, error) {
	out := make([]model.Demon, len(specs))
	for i, spec := range specs {
		if err := c.call(ctx, http.MethodPost, "/api/v1/demons", spec, http.StatusCreated, &out[i]); err != nil {
			return nil, err
		}
		stats.DemonsPlaced++
	}
	return out, nil
}

func registerPlayers(ctx context.Context, c *client, cfg *Config, names []string, stats *Stats) ([]int64, error) {
	ids := make([]int64, len(names))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	next := make(chan int, cfg.Workers*2)
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				var p model.Player
				err := c.call(ctx, http.MethodPost, "/api/v1/players", map[string]string{"name": names[i]}, http.StatusCreated, &p)
				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = err
				}
				if err == nil {
					ids[i] = p.ID
					stats.PlayersCreated++
				}
				mu.Unlock()
			}
		}()
	}
	for i := range names {
		next <- i
	}
	close(next)
	wg.Wait()
	return ids, firstErr
}

func submitRecords(ctx context.Context, c *client, cfg *Config, specs []recordSpec, demons []model.Demon, players []int64, stats *Stats) {
	log := logger.Get().Named("seedlist")
	var submitted, approved, failed int64

	jobs := make(chan recordSpec, cfg.Workers*2)
	var wg sync.WaitGroup
	for range cfg.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for spec := range jobs {
				var rec model.Record
				err := c.call(ctx, http.MethodPost, "/api/v1/records", map[string]any{
					"player_id": players[spec.player],
					"demon_id":  demons[spec.demon].ID,
					"progress":  spec.progress,
				}, http.StatusCreated, &rec)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					log.Warn(ctx, "record submission failed", logger.Error(err))
					continue
				}
				atomic.AddInt64(&submitted, 1)

				err = c.call(ctx, http.MethodPatch, fmt.Sprintf("/api/v1/records/%d", rec.ID),
					map[string]string{"status": model.StatusApproved.String()}, http.StatusOK, nil)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					log.Warn(ctx, "record approval failed", logger.Int64("record_id", rec.ID), logger.Error(err))
					continue
				}
				atomic.AddInt64(&approved, 1)
				if cfg.Verbose {
					log.Debug(ctx, "record approved", logger.Int64("record_id", rec.ID))
				}
			}
		}()
	}

feed:
	for _, spec := range specs {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- spec:
		}
	}
	close(jobs)
	wg.Wait()

	stats.RecordsSubmitted = int(submitted)
	stats.RecordsApproved = int(approved)
	stats.RecordsFailed = int(failed)
}

// expectedOrder replays the placements on a slice model of the list.
func expectedOrder(specs []demonSpec, placed []model.Demon) []int64 {
	order := make([]int64, 0, len(placed))
	for i, spec := range specs {
		at := len(order)
		if spec.Position != nil {
			at = min(max(*spec.Position-1, 0), len(order))
		}
		order = append(order, 0)
		copy(order[at+1:], order[at:])
		order[at] = placed[i].ID
	}
	return order
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	log.Info(ctx, "final statistics",
		logger.Int("demonsPlaced", stats.DemonsPlaced),
		logger.Int("playersCreated", stats.PlayersCreated),
		logger.Int("recordsSubmitted", stats.RecordsSubmitted),
		logger.Int("recordsApproved", stats.RecordsApproved),
		logger.Int("recordsFailed", stats.RecordsFailed),
		logger.Int("rankedPlayers", stats.RankedPlayers),
		logger.Duration("duration", stats.Duration))
}
