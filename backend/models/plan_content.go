package models

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// PlanContent maps a category label (usually a day or topic) to its ordered activities.
type PlanContent map[string][]string

var (
	ErrUnknownActivity   = errors.New("activity is not part of this plan")
	ErrAmbiguousActivity = errors.New("activity text matches more than one plan entry")
)

const activityKeySep = "#"

// ActivityKey names the n-th (1-based) activity of a category.
func ActivityKey(category string, n int) string {
	return category + activityKeySep + strconv.Itoa(n)
}

func (pc PlanContent) TotalActivities() int {
	total := 0
	for _, activities := range pc {
		total += len(activities)
	}
	return total
}

func (pc PlanContent) Categories() []string {
	labels := make([]string, 0, len(pc))
	for label := range pc {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Keys lists every activity key, categories in label order.
func (pc PlanContent) Keys() []string {
	keys := make([]string, 0, pc.TotalActivities())
	for _, label := range pc.Categories() {
		for i := range pc[label] {
			keys = append(keys, ActivityKey(label, i+1))
		}
	}
	return keys
}

// Resolve maps a client supplied identifier to an activity key. Accepted forms are a key
// ("day1#2") or the exact text of an activity that occurs once in the plan.
func (pc PlanContent) Resolve(identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", ErrUnknownActivity
	}

	if i := strings.LastIndex(identifier, activityKeySep); i > 0 {
		label := identifier[:i]
		if n, err := strconv.Atoi(identifier[i+1:]); err == nil {
			if activities, ok := pc[label]; ok && n >= 1 && n <= len(activities) {
				return ActivityKey(label, n), nil
			}
		}
	}

	var match string
	found := 0
	for _, label := range pc.Categories() {
		for i, text := range pc[label] {
			if strings.TrimSpace(text) == identifier {
				match = ActivityKey(label, i+1)
				found++
			}
		}
	}
	switch found {
	case 0:
		return "", ErrUnknownActivity
	case 1:
		return match, nil
	default:
		return "", ErrAmbiguousActivity
	}
}
