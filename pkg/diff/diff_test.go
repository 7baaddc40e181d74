package diff

import "testing"

func rec(key string, fields map[string]string) MapRecord {
	return MapRecord{Key: key, Fields: fields}
}

func allOpts(fields ...string) Options {
	return Options{
		CreateMissing:   true,
		UpdateExisting:  true,
		Cleanup:         true,
		CompareFields:   fields,
		ClearableFields: map[string]bool{"mode": true, "description": true},
	}
}

// ============================================================================
// Partition Tests
// ============================================================================

// Every key appears in exactly one bucket.
func TestComparePartition(t *testing.T) {
	locals := []Record{
		rec("a", map[string]string{"mtu": "1500"}),
		rec("b", map[string]string{"mtu": "9000"}),
		rec("c", map[string]string{"mtu": "1500"}),
	}
	remotes := []Record{
		rec("b", map[string]string{"mtu": "1500"}),
		rec("c", map[string]string{"mtu": "1500"}),
		rec("d", map[string]string{"mtu": "1500"}),
	}

	d, err := Compare(locals, remotes, allOpts("mtu"))
	if err != nil {
		t.Fatal(err)
	}

	seen := make(map[string]int)
	for _, items := range [][]Item{d.ToCreate, d.ToUpdate, d.ToDelete, d.ToSkip} {
		for _, item := range items {
			seen[item.Name]++
		}
	}
	for _, key := range []string{"a", "b", "c", "d"} {
		if seen[key] != 1 {
			t.Errorf("key %q appears %d times, want exactly 1", key, seen[key])
		}
	}

	if len(d.ToCreate) != 1 || d.ToCreate[0].Name != "a" {
		t.Errorf("to_create = %v", d.ToCreate)
	}
	if len(d.ToUpdate) != 1 || d.ToUpdate[0].Name != "b" {
		t.Errorf("to_update = %v", d.ToUpdate)
	}
	if len(d.ToDelete) != 1 || d.ToDelete[0].Name != "d" {
		t.Errorf("to_delete = %v", d.ToDelete)
	}
	if len(d.ToSkip) != 1 || d.ToSkip[0].Name != "c" {
		t.Errorf("to_skip = %v", d.ToSkip)
	}
}

func TestCompareFlagsOff(t *testing.T) {
	locals := []Record{rec("a", nil), rec("b", map[string]string{"mtu": "9000"})}
	remotes := []Record{rec("b", map[string]string{"mtu": "1500"}), rec("z", nil)}

	d, err := Compare(locals, remotes, Options{CompareFields: []string{"mtu"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(d.ToCreate) != 0 || len(d.ToUpdate) != 0 || len(d.ToDelete) != 0 {
		t.Errorf("all mutations should be off: %+v", d)
	}
	if len(d.ToSkip) != 2 {
		t.Errorf("skip = %v, want both local keys", d.ToSkip)
	}
}

// ============================================================================
// Field Semantics Tests
// ============================================================================

// Present-and-empty clears a clearable field; an update is planned with the
// empty string as the new value.
func TestCompareClearMode(t *testing.T) {
	local := MapRecord{Key: "Gi0/1", Fields: map[string]string{}, Present: map[string]bool{"mode": true}}
	remote := rec("Gi0/1", map[string]string{"mode": "tagged-all"})

	d, err := Compare([]Record{local}, []Record{remote}, allOpts("mode"))
	if err != nil {
		t.Fatal(err)
	}
	if len(d.ToUpdate) != 1 {
		t.Fatalf("expected one update, got %+v", d)
	}
	fc := d.ToUpdate[0].FieldChanges
	if len(fc) != 1 || fc[0].Field != "mode" || fc[0].Old != "tagged-all" || fc[0].New != "" {
		t.Errorf("field changes = %+v", fc)
	}
}

// Absent fields leave the remote alone even when clearable.
func TestCompareAbsentLeavesAlone(t *testing.T) {
	local := MapRecord{Key: "Gi0/1", Fields: map[string]string{"mtu": "1500"}}
	remote := rec("Gi0/1", map[string]string{"mode": "access", "mtu": "1500"})

	d, err := Compare([]Record{local}, []Record{remote}, allOpts("mode", "mtu"))
	if err != nil {
		t.Fatal(err)
	}
	if len(d.ToUpdate) != 0 {
		t.Errorf("absent mode must not produce an update: %+v", d.ToUpdate)
	}
}

// Empty non-clearable fields are equivalent to absent.
func TestCompareEmptyNonClearable(t *testing.T) {
	local := rec("Gi0/1", map[string]string{"mtu": ""})
	remote := rec("Gi0/1", map[string]string{"mtu": "1500"})

	d, err := Compare([]Record{local}, []Record{remote}, allOpts("mtu"))
	if err != nil {
		t.Fatal(err)
	}
	if len(d.ToUpdate) != 0 {
		t.Errorf("empty mtu must not clear: %+v", d.ToUpdate)
	}
}

// ============================================================================
// Exclusion Tests
// ============================================================================

func TestCompareExcludes(t *testing.T) {
	locals := []Record{rec("Po10", nil), rec("Gi0/1", nil)}
	remotes := []Record{rec("Po99", nil), rec("Vlan1", nil)}

	opts := allOpts()
	opts.ExcludePatterns = []string{`^Po`, `^Vlan`}
	d, err := Compare(locals, remotes, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(d.ToCreate) != 1 || d.ToCreate[0].Name != "Gi0/1" {
		t.Errorf("to_create = %v", d.ToCreate)
	}
	if len(d.ToDelete) != 0 {
		t.Errorf("excluded remotes must not be deleted: %v", d.ToDelete)
	}
}

func TestCompareBadPattern(t *testing.T) {
	opts := allOpts()
	opts.ExcludePatterns = []string{`([`}
	if _, err := Compare(nil, nil, opts); err == nil {
		t.Error("expected bad pattern to error")
	}
}

func TestPreviewEmpty(t *testing.T) {
	d := &Diff{}
	if !d.IsEmpty() {
		t.Error("empty diff should report empty")
	}
	if got := d.Preview(); got != "  no changes\n" {
		t.Errorf("preview = %q", got)
	}
}
