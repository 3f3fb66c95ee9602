// Package runner drives batch classification: it reads query and hit files,
// classifies every query on a bounded worker pool and writes the results.
package runner

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/brocc/internal/assign"
	"github.com/hyperjump/brocc/internal/models"
)

// Input is one query ready for classification.
type Input struct {
	ID       string
	QueryLen int
	Hits     []models.Hit
}

// ClassifyAll classifies inputs with at most workers concurrent queries.
// Results are in input order. Only context cancellation is an error.
func ClassifyAll(ctx context.Context, a *assign.Assigner, inputs []Input, workers int) ([]assign.Result, error) {
	if workers < 1 {
		workers = 1
	}
	results := make([]assign.Result, len(inputs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, in := range inputs {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			results[i] = a.Assign(egCtx, in.ID, in.QueryLen, in.Hits)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
