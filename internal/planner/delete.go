package planner

import (
	"context"
	"fmt"

	"github.com/jneless/bkp-drive/internal/api"
	"github.com/jneless/bkp-drive/internal/models"
	"github.com/jneless/bkp-drive/internal/resolver"
)

// DeletePlan is the ordered key list of one batch delete. No folder key
// precedes a key inside it.
type DeletePlan struct {
	Keys    []string
	Skipped []api.SkippedPath
}

// Empty reports whether the plan deletes nothing.
func (p *DeletePlan) Empty() bool {
	return len(p.Keys) == 0
}

// PlanDelete expands every selected folder and merges the result with the
// selected files. Each key appears once. With the Strict policy a folder
// that could not be fully scanned fails the plan with *api.PartialScanError.
func (p *Planner) PlanDelete(ctx context.Context, selection []string) (*DeletePlan, error) {
	plan := &DeletePlan{}
	seen := make(map[string]struct{})
	add := func(key string) {
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		plan.Keys = append(plan.Keys, key)
	}

	for _, key := range selection {
		if key == "" {
			continue
		}
		if !models.IsFolderKey(key) {
			add(key)
			continue
		}

		res, err := p.resolver.Resolve(ctx, key)
		if err != nil {
			return nil, err
		}
		for _, k := range res.Keys {
			add(k)
		}
		add(key)
		plan.Skipped = append(plan.Skipped, res.Skipped...)
	}

	if len(plan.Skipped) > 0 {
		if p.Policy == Strict {
			return nil, &api.PartialScanError{Skipped: plan.Skipped}
		}
		p.logger.Warn().Int("skipped", len(plan.Skipped)).Msg("folder scan incomplete, deleting what was found")
	}

	resolver.SortDeepestFirst(plan.Keys)
	return plan, nil
}

// SubmitDelete sends the plan as one batch call. An empty plan sends nothing.
func (p *Planner) SubmitDelete(ctx context.Context, plan *DeletePlan) (*models.BatchResult, error) {
	if plan == nil || plan.Empty() {
		return &models.BatchResult{Success: true}, nil
	}
	p.logger.Debug().Int("keys", len(plan.Keys)).Msg("submitting batch delete")

	res, err := p.remote.BatchDelete(ctx, plan.Keys)
	if err != nil {
		return nil, fmt.Errorf("batch delete of %d items failed: %w", len(plan.Keys), err)
	}
	if res.Failed > 0 {
		p.logger.Warn().Int("failed", res.Failed).Strs("items", res.FailedItems).Msg("some items were not deleted")
	}
	return res, nil
}

// Delete plans and submits in one step.
func (p *Planner) Delete(ctx context.Context, selection []string) (*DeletePlan, *models.BatchResult, error) {
	plan, err := p.PlanDelete(ctx, selection)
	if err != nil {
		return nil, nil, err
	}
	res, err := p.SubmitDelete(ctx, plan)
	return plan, res, err
}
