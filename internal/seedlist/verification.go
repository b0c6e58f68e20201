package seedlist

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/demonlist/internal/domain/model"
	"github.com/okian/demonlist/internal/domain/scoring"
)

const pageSize = 100

// fetchAll pages through path until a short page comes back.
func fetchAll[T any](ctx context.Context, c *client, path string) ([]T, error) {
	var all []T
	for offset := 0; ; offset += pageSize {
		var page []T
		url := fmt.Sprintf("%s?offset=%d&limit=%d", path, offset, pageSize)
		if err := c.call(ctx, http.MethodGet, url, nil, http.StatusOK, &page); err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}

// verifyDensity checks positions run 1..N without gaps. When expected is
// set the ids must also come back in that order.
func verifyDensity(ctx context.Context, c *client, expected []int64) error {
	demons, err := fetchAll[model.Demon](ctx, c, "/api/v1/demons")
	if err != nil {
		return err
	}
	for i, d := range demons {
		if d.Position != i+1 {
			return fmt.Errorf("%w: demon %d at index %d has position %d", ErrVerification, d.ID, i, d.Position)
		}
	}
	if expected == nil {
		return nil
	}
	if len(demons) != len(expected) {
		return fmt.Errorf("%w: list has %d demons, placed %d", ErrVerification, len(demons), len(expected))
	}
	for i, d := range demons {
		if d.ID != expected[i] {
			return fmt.Errorf("%w: position %d holds demon %d, want %d", ErrVerification, i+1, d.ID, expected[i])
		}
	}
	return nil
}

// verifyRanking checks scores never increase down the ranking and ranks
// follow competition ranking. It returns the number of ranked players.
func verifyRanking(ctx context.Context, c *client) (int, error) {
	rows, err := fetchAll[scoring.RankedPlayer](ctx, c, "/api/v1/players/ranking")
	if err != nil {
		return 0, err
	}
	for i, row := range rows {
		if row.Score <= 0 {
			return 0, fmt.Errorf("%w: player %d ranked with score %.3f", ErrVerification, row.Player.ID, row.Score)
		}
		if i == 0 {
			if row.Rank != 1 {
				return 0, fmt.Errorf("%w: first row has rank %d", ErrVerification, row.Rank)
			}
			continue
		}
		prev := rows[i-1]
		switch {
		case row.Score > prev.Score:
			return 0, fmt.Errorf("%w: rank %d outscores rank %d", ErrVerification, row.Rank, prev.Rank)
		case row.Score == prev.Score && row.Rank != prev.Rank:
			return 0, fmt.Errorf("%w: tied players %d and %d have ranks %d and %d",
				ErrVerification, prev.Player.ID, row.Player.ID, prev.Rank, row.Rank)
		case row.Score < prev.Score && row.Rank != i+1:
			return 0, fmt.Errorf("%w: row %d has rank %d", ErrVerification, i+1, row.Rank)
		}
	}
	return len(rows), nil
}

// verifyRevalidation checks an unchanged list answers 304 to its own ETag.
func verifyRevalidation(ctx context.Context, c *client) error {
	for _, path := range []string{"/api/v1/demons", "/api/v1/players/ranking"} {
		first, err := c.do(ctx, http.MethodGet, path, nil, nil)
		if err != nil {
			return err
		}
		etag := first.header.Get("ETag")
		if first.status != http.StatusOK || etag == "" {
			return fmt.Errorf("%w: GET %s returned %d without a validator", ErrVerification, path, first.status)
		}
		again, err := c.do(ctx, http.MethodGet, path, nil, map[string]string{"If-None-Match": etag})
		if err != nil {
			return err
		}
		if again.status != http.StatusNotModified {
			return fmt.Errorf("%w: GET %s with a current ETag returned %d", ErrVerification, path, again.status)
		}
	}
	return nil
}
