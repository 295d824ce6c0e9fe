// Package generator produces learning plan content from a goal.
package generator

import (
	"context"
	"errors"
	"sort"
	"strings"

	"learnplan/backend/models"
)

// Request carries the goal and the optional shaping hints.
type Request struct {
	Goal         string
	DurationDays int
	Difficulty   string
}

// PlanGenerator returns a mapping from category label to ordered activities.
type PlanGenerator interface {
	Generate(ctx context.Context, req Request) (models.PlanContent, error)
}

var ErrEmptyPlan = errors.New("generator returned an empty plan")

// Func adapts a function to PlanGenerator.
type Func func(ctx context.Context, req Request) (models.PlanContent, error)

func (f Func) Generate(ctx context.Context, req Request) (models.PlanContent, error) {
	return f(ctx, req)
}

// Normalize drops blank labels and blank activities and reports ErrEmptyPlan when
// nothing is left. Labels equal after trimming are merged in sorted order of the raw
// labels, so activity positions do not depend on map order.
func Normalize(content models.PlanContent) (models.PlanContent, error) {
	raw := make([]string, 0, len(content))
	for label := range content {
		raw = append(raw, label)
	}
	sort.Strings(raw)

	out := make(models.PlanContent, len(content))
	for _, rawLabel := range raw {
		activities := content[rawLabel]
		label := strings.TrimSpace(rawLabel)
		if label == "" {
			continue
		}
		kept := make([]string, 0, len(activities))
		for _, a := range activities {
			if a = strings.TrimSpace(a); a != "" {
				kept = append(kept, a)
			}
		}
		if len(kept) > 0 {
			out[label] = append(out[label], kept...)
		}
	}
	if out.TotalActivities() == 0 {
		return nil, ErrEmptyPlan
	}
	return out, nil
}
