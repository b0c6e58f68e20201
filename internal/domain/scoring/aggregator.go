// Package scoring derives player scores from approved records and the
// current order. Nothing is cached: every call recomputes from the latest
// published order and the stored record set.
package scoring

import (
	"context"
	"errors"
	"iter"
	"sort"
	"time"

	"github.com/okian/demonlist/internal/adapters/repository"
	"github.com/okian/demonlist/internal/domain/apperr"
	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/internal/domain/ordering"
	"github.com/okian/demonlist/pkg/logger"
	"github.com/okian/demonlist/pkg/metrics"
)

// Order exposes the published order.
type Order interface {
	Snapshot() *ordering.Snapshot
}

// RankedPlayer is one ranking row.
type RankedPlayer struct {
	Rank   int          `json:"rank"`
	Player model.Player `json:"player"`
	Score  float64      `json:"score"`
}

// Aggregator computes scores and rankings.
type Aggregator struct {
	repo  repository.Reader
	order Order
	curve Curve
	log   logger.Logger
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithCurve sets the contribution curve.
func WithCurve(c Curve) Option {
	return func(a *Aggregator) {
		if c != nil {
			a.curve = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.log = l
		}
	}
}

// NewAggregator returns an aggregator using the default exponential curve
// unless WithCurve is given.
func NewAggregator(repo repository.Reader, order Order, opts ...Option) *Aggregator {
	def, _ := NewCurve(CurveConfig{})
	a := &Aggregator{repo: repo, order: order, curve: def, log: logger.Nop()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Aggregator) contribution(snap *ordering.Snapshot, r model.Record) float64 {
	d, ok := snap.ByID(r.DemonID)
	if !ok {
		return 0
	}
	return a.curve.Contribution(Input{
		Position:    d.Position,
		ListSize:    snap.Len(),
		Requirement: d.Requirement,
		Progress:    r.Progress,
	})
}

// sum adds contributions in record id order so the result is bit-for-bit
// reproducible.
func (a *Aggregator) sum(snap *ordering.Snapshot, recs []model.Record) float64 {
	sort.Slice(recs, func(i, j int) bool { return recs[i].ID < recs[j].ID })
	total := 0.0
	for _, r := range recs {
		total += a.contribution(snap, r)
	}
	return total
}

// Score returns the score of player id. Banned players score zero.
func (a *Aggregator) Score(ctx context.Context, playerID int64) (float64, error) {
	start := time.Now()
	defer func() {
		metrics.RecordScoreComputation("player", float64(time.Since(start).Microseconds())/1000)
	}()

	p, err := a.repo.Player(ctx, playerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, apperr.NotFound("scoring.Score", "player %d not found", playerID)
		}
		return 0, apperr.Wrap("scoring.Score", apperr.ErrConflict, err)
	}
	if p.Banned {
		return 0, nil
	}
	snap := a.order.Snapshot()
	recs, err := a.repo.Records(ctx, repository.RecordFilter{PlayerID: playerID, Status: model.StatusApproved})
	if err != nil {
		return 0, apperr.Wrap("scoring.Score", apperr.ErrConflict, err)
	}
	return a.sum(snap, recs), nil
}

// Ranking yields non-banned players with a positive score, best first,
// ties broken by registration order. The ranking is computed when
// iteration starts, so ranging again sees fresh data.
func (a *Aggregator) Ranking(ctx context.Context) iter.Seq2[RankedPlayer, error] {
	return func(yield func(RankedPlayer, error) bool) {
		rows, err := a.rank(ctx)
		if err != nil {
			yield(RankedPlayer{}, err)
			return
		}
		for _, row := range rows {
			if err := ctx.Err(); err != nil {
				yield(RankedPlayer{}, err)
				return
			}
			if !yield(row, nil) {
				return
			}
		}
	}
}

func (a *Aggregator) rank(ctx context.Context) ([]RankedPlayer, error) {
	start := time.Now()
	defer func() {
		metrics.RecordScoreComputation("ranking", float64(time.Since(start).Microseconds())/1000)
	}()

	snap := a.order.Snapshot()
	players, err := a.repo.Players(ctx)
	if err != nil {
		return nil, apperr.Wrap("scoring.Ranking", apperr.ErrConflict, err)
	}
	approved, err := a.repo.Records(ctx, repository.RecordFilter{Status: model.StatusApproved})
	if err != nil {
		return nil, apperr.Wrap("scoring.Ranking", apperr.ErrConflict, err)
	}
	metrics.UpdatePlayersTotal(len(players))

	byPlayer := make(map[int64][]model.Record)
	for _, r := range approved {
		byPlayer[r.PlayerID] = append(byPlayer[r.PlayerID], r)
	}
	rows := make([]RankedPlayer, 0, len(players))
	for _, p := range players {
		if p.Banned {
			continue
		}
		score := a.sum(snap, byPlayer[p.ID])
		if score <= 0 {
			continue
		}
		rows = append(rows, RankedPlayer{Player: p, Score: score})
	}
	sortRanking(rows)
	assignRanksWithTies(rows)
	a.log.Debug(ctx, "ranking computed", logger.Int("players", len(rows)))
	return rows, nil
}

// sortRanking orders by score desc, then player id asc.
func sortRanking(rows []RankedPlayer) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Player.ID < rows[j].Player.ID
	})
}

// assignRanksWithTies gives players with the same score the same rank; the
// next rank skips the positions the tie used.
func assignRanksWithTies(rows []RankedPlayer) {
	for i := 0; i < len(rows); {
		j := i + 1
		for j < len(rows) && rows[j].Score == rows[i].Score {
			j++
		}
		for k := i; k < j; k++ {
			rows[k].Rank = i + 1
		}
		i = j
	}
}

// Page drains up to limit rows after skipping offset. It stops pulling from
// seq as soon as the page is full.
func Page(seq iter.Seq2[RankedPlayer, error], offset, limit int) ([]RankedPlayer, error) {
	out := make([]RankedPlayer, 0, max(limit, 0))
	if limit <= 0 {
		return out, nil
	}
	skipped := 0
	for row, err := range seq {
		if err != nil {
			return nil, err
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, row)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
