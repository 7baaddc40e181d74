// Package diff computes the four-way sync plan between local (collected)
// and remote (inventory) records: to-create, to-update, to-delete, to-skip.
// Every key lands in exactly one bucket. The plan is the single input to the
// reconciler's write path and is what a dry run shows the user.
package diff

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ChangeKind classifies one plan item.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
	ChangeSkip   ChangeKind = "skip"
)

// Record is one comparable entity. Field returns (value, present): a field
// that is not present means "leave the remote value as is"; a present empty
// value means "clear it" for fields flagged clearable in Options.
type Record interface {
	DiffKey() string
	Field(name string) (value string, present bool)
}

// FieldChange is one per-field difference inside an update.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old_value"`
	New   string `json:"new_value"`
}

// Item is one entry of the plan.
type Item struct {
	Name         string        `json:"name"`
	Kind         ChangeKind    `json:"change_kind"`
	Local        Record        `json:"-"`
	Remote       Record        `json:"-"`
	FieldChanges []FieldChange `json:"field_changes,omitempty"`
	Reason       string        `json:"reason,omitempty"`
}

// Diff is the four-way partition.
type Diff struct {
	ToCreate []Item `json:"to_create"`
	ToUpdate []Item `json:"to_update"`
	ToDelete []Item `json:"to_delete"`
	ToSkip   []Item `json:"to_skip"`
}

// Options tunes the comparison.
type Options struct {
	ExcludePatterns []string        // keys matching any pattern are ignored entirely
	CreateMissing   bool            // plan creates for local-only keys
	UpdateExisting  bool            // plan updates for differing keys
	Cleanup         bool            // plan deletes for remote-only keys
	CompareFields   []string        // fields participating in update diffing
	ClearableFields map[string]bool // fields where present-and-empty means "clear"
}

// Compare builds the plan. Local order is preserved within each bucket;
// deletes are sorted by key for determinism.
func Compare(locals, remotes []Record, opts Options) (*Diff, error) {
	excludes, err := compilePatterns(opts.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	remoteByKey := make(map[string]Record, len(remotes))
	for _, r := range remotes {
		remoteByKey[r.DiffKey()] = r
	}

	d := &Diff{}
	localKeys := make(map[string]bool, len(locals))

	for _, local := range locals {
		key := local.DiffKey()
		if localKeys[key] {
			continue // first occurrence wins
		}
		localKeys[key] = true
		if matchesAny(excludes, key) {
			continue
		}

		remote, exists := remoteByKey[key]
		switch {
		case !exists && opts.CreateMissing:
			d.ToCreate = append(d.ToCreate, Item{Name: key, Kind: ChangeCreate, Local: local})
		case !exists:
			d.ToSkip = append(d.ToSkip, Item{Name: key, Kind: ChangeSkip, Local: local, Reason: "not in remote, create disabled"})
		case opts.UpdateExisting:
			changes := compareFields(local, remote, opts)
			if len(changes) > 0 {
				d.ToUpdate = append(d.ToUpdate, Item{Name: key, Kind: ChangeUpdate, Local: local, Remote: remote, FieldChanges: changes})
			} else {
				d.ToSkip = append(d.ToSkip, Item{Name: key, Kind: ChangeSkip, Local: local, Remote: remote, Reason: "in sync"})
			}
		default:
			d.ToSkip = append(d.ToSkip, Item{Name: key, Kind: ChangeSkip, Local: local, Remote: remote, Reason: "update disabled"})
		}
	}

	if opts.Cleanup {
		var stale []string
		for key := range remoteByKey {
			if !localKeys[key] && !matchesAny(excludes, key) {
				stale = append(stale, key)
			}
		}
		sort.Strings(stale)
		for _, key := range stale {
			d.ToDelete = append(d.ToDelete, Item{Name: key, Kind: ChangeDelete, Remote: remoteByKey[key]})
		}
	}

	return d, nil
}

// compareFields diffs the configured fields. Absent local fields are left
// alone; empty local values clear the remote only for clearable fields.
func compareFields(local, remote Record, opts Options) []FieldChange {
	var changes []FieldChange
	for _, field := range opts.CompareFields {
		lv, present := local.Field(field)
		if !present {
			continue
		}
		if lv == "" && !opts.ClearableFields[field] {
			continue
		}
		rv, _ := remote.Field(field)
		if lv != rv {
			changes = append(changes, FieldChange{Field: field, Old: rv, New: lv})
		}
	}
	return changes
}

// IsEmpty reports whether the plan contains no mutations.
func (d *Diff) IsEmpty() bool {
	return len(d.ToCreate) == 0 && len(d.ToUpdate) == 0 && len(d.ToDelete) == 0
}

// Counts returns (create, update, delete, skip) totals.
func (d *Diff) Counts() (int, int, int, int) {
	return len(d.ToCreate), len(d.ToUpdate), len(d.ToDelete), len(d.ToSkip)
}

// Preview renders the plan for human review.
func (d *Diff) Preview() string {
	var sb strings.Builder
	for _, item := range d.ToCreate {
		fmt.Fprintf(&sb, "  [ADD] %s\n", item.Name)
	}
	for _, item := range d.ToUpdate {
		fmt.Fprintf(&sb, "  [MOD] %s\n", item.Name)
		for _, fc := range item.FieldChanges {
			fmt.Fprintf(&sb, "        %s: %q -> %q\n", fc.Field, fc.Old, fc.New)
		}
	}
	for _, item := range d.ToDelete {
		fmt.Fprintf(&sb, "  [DEL] %s\n", item.Name)
	}
	if sb.Len() == 0 {
		return "  no changes\n"
	}
	return sb.String()
}

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	var res []*regexp.Regexp
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", p, err)
		}
		res = append(res, re)
	}
	return res, nil
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// MapRecord is a simple map-backed Record, used by tests and by entities
// whose payloads are already string-keyed.
type MapRecord struct {
	Key    string
	Fields map[string]string
	// Present marks fields that exist even when empty (the "clear" signal).
	// Fields present in Fields are implicitly present.
	Present map[string]bool
}

// DiffKey implements Record.
func (m MapRecord) DiffKey() string { return m.Key }

// Field implements Record.
func (m MapRecord) Field(name string) (string, bool) {
	if v, ok := m.Fields[name]; ok {
		return v, true
	}
	if m.Present[name] {
		return "", true
	}
	return "", false
}
