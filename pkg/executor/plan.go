package executor

import (
	"slices"

	"github.com/pseudomuto/dumbo/pkg/history"
	"github.com/pseudomuto/dumbo/pkg/migrator"
	"github.com/pseudomuto/dumbo/pkg/version"
)

type (
	// Plan is the difference between the resolved migrations and the history
	// table. Every list is in ascending version order.
	Plan struct {
		// Applied holds the successful entries matching a resolved migration,
		// plus baseline entries.
		Applied []*history.Entry

		// Missing holds successful entries with no resolved migration.
		Missing []*history.Entry

		// Conflicts holds applied migrations whose checksum changed.
		Conflicts []Conflict

		// Pending holds migrations to apply.
		Pending []*migrator.Migration

		// Ignored holds migrations older than the latest applied version. It is
		// only populated when out of order migrations are disabled.
		Ignored []*migrator.Migration

		// Failed holds the latest failed entry of every version that has not been
		// applied successfully since. These versions are also pending.
		Failed []*history.Entry

		// Baseline is the highest baseline version, when there is one.
		Baseline *version.Version
	}

	// Conflict pairs a history entry with the resolved migration it no longer
	// matches.
	Conflict struct {
		Entry     *history.Entry
		Migration *migrator.Migration
	}
)

// NewPlan compares the catalog with the history entries.
//
// Only successful versioned entries count as applied. Failed entries are
// retried, so their migrations are pending again. Resolved versions at or
// below the latest baseline are neither applied nor pending. When outOfOrder
// is false, pending versions lower than the highest applied version are moved
// to Ignored.
func NewPlan(catalog *migrator.Catalog, entries []*history.Entry, outOfOrder bool) *Plan {
	plan := &Plan{}

	applied := make(map[string]*history.Entry)
	failed := make(map[string]*history.Entry)
	var highest *version.Version

	for _, entry := range entries {
		switch {
		case entry.IsSchemaMarker() || entry.Version == nil:
			continue
		case entry.IsBaseline():
			if entry.Success && (plan.Baseline == nil || entry.Version.Compare(*plan.Baseline) > 0) {
				plan.Baseline = entry.Version
			}
			if entry.Success {
				plan.Applied = append(plan.Applied, entry)
			}
		case !entry.Success:
			failed[entry.Version.Key()] = entry
		default:
			if _, ok := applied[entry.Version.Key()]; ok {
				continue
			}
			applied[entry.Version.Key()] = entry
		}

		if entry.Success && (highest == nil || entry.Version.Compare(*highest) > 0) {
			highest = entry.Version
		}
	}

	for key, entry := range applied {
		delete(failed, key)

		m, ok := catalog.Find(*entry.Version)
		switch {
		case !ok:
			plan.Missing = append(plan.Missing, entry)
		case entry.Checksum == nil || *entry.Checksum != m.Checksum:
			plan.Conflicts = append(plan.Conflicts, Conflict{Entry: entry, Migration: m})
			plan.Applied = append(plan.Applied, entry)
		default:
			plan.Applied = append(plan.Applied, entry)
		}
	}

	for _, entry := range failed {
		plan.Failed = append(plan.Failed, entry)
	}

	for _, m := range catalog.Migrations {
		if _, ok := applied[m.Version.Key()]; ok {
			continue
		}

		if plan.Baseline != nil && m.Version.Compare(*plan.Baseline) <= 0 {
			continue
		}

		if !outOfOrder && highest != nil && m.Version.Less(*highest) {
			plan.Ignored = append(plan.Ignored, m)
			continue
		}

		plan.Pending = append(plan.Pending, m)
	}

	byEntryVersion := func(a, b *history.Entry) int { return a.Version.Compare(*b.Version) }
	slices.SortFunc(plan.Applied, byEntryVersion)
	slices.SortFunc(plan.Missing, byEntryVersion)
	slices.SortFunc(plan.Failed, byEntryVersion)
	slices.SortFunc(plan.Conflicts, func(a, b Conflict) int {
		return a.Entry.Version.Compare(*b.Entry.Version)
	})

	return plan
}

// Violations lists every missing, conflicting and ignored migration. Pending
// migrations are never violations.
func (p *Plan) Violations() []Violation {
	var violations []Violation

	for _, entry := range p.Missing {
		violations = append(violations, Violation{
			Kind:    ViolationMissing,
			Version: *entry.Version,
			Script:  entry.Script,
		})
	}

	for _, c := range p.Conflicts {
		violations = append(violations, Violation{
			Kind:             ViolationChecksumMismatch,
			Version:          c.Migration.Version,
			Script:           c.Migration.Script,
			AppliedChecksum:  c.Entry.Checksum,
			ResolvedChecksum: c.Migration.Checksum,
		})
	}

	for _, m := range p.Ignored {
		violations = append(violations, Violation{
			Kind:    ViolationIgnored,
			Version: m.Version,
			Script:  m.Script,
		})
	}

	return violations
}

// Validate returns a *ValidationError when the plan has violations.
func (p *Plan) Validate() error {
	if violations := p.Violations(); len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}

	return nil
}
