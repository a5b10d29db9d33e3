package audit

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestIsFreshGlobal(t *testing.T) {
	c := Concern{ID: "DATA.1"}

	if !IsFresh(&c, "abc", "abc", nil) {
		t.Error("global concern with unchanged code should be fresh")
	}
	if IsFresh(&c, "abc", "def", nil) {
		t.Error("global concern must go stale on any code change")
	}
}

func TestIsFreshLineScoped(t *testing.T) {
	cur := map[int]string{10: "h10", 11: "h11", 12: "h12"}

	tests := []struct {
		name string
		c    Concern
		want bool
	}{
		{
			name: "all lines match",
			c: Concern{
				ID:         "PRESENTATION.1",
				Location:   []int{10, 11},
				LineHashes: map[int]string{10: "h10", 11: "h11"},
			},
			want: true,
		},
		{
			name: "one referenced line changed",
			c: Concern{
				ID:         "PRESENTATION.1",
				Location:   []int{10, 11},
				LineHashes: map[int]string{10: "h10", 11: "old"},
			},
			want: false,
		},
		{
			name: "referenced line no longer exists",
			c: Concern{
				ID:         "PRESENTATION.1",
				Location:   []int{99},
				LineHashes: map[int]string{99: "h99"},
			},
			want: false,
		},
		{
			name: "snapshot count mismatch",
			c: Concern{
				ID:         "PRESENTATION.1",
				Location:   []int{10, 11},
				LineHashes: map[int]string{10: "h10"},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFresh(&tt.c, "prev", "cur", cur); got != tt.want {
				t.Errorf("IsFresh = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChangedLines(t *testing.T) {
	tests := []struct {
		name string
		prev map[int]string
		cur  map[int]string
		want []int
	}{
		{
			name: "single edit",
			prev: map[int]string{1: "a", 2: "b", 3: "c"},
			cur:  map[int]string{1: "a", 2: "B", 3: "c"},
			want: []int{2},
		},
		{
			name: "truncated file",
			prev: map[int]string{1: "a", 2: "b", 3: "c"},
			cur:  map[int]string{1: "a"},
			want: []int{2, 3},
		},
		{
			name: "extended file",
			prev: map[int]string{1: "a"},
			cur:  map[int]string{1: "a", 2: "b"},
			want: []int{2},
		},
		{
			name: "identical",
			prev: map[int]string{1: "a", 2: "b"},
			cur:  map[int]string{1: "a", 2: "b"},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChangedLines(tt.prev, tt.cur)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ChangedLines mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeDropsFreshOutsideChangedLines(t *testing.T) {
	cur := map[int]string{5: "h5", 11: "h11"}
	fresh := []Concern{
		{ID: "PRESENTATION.1", Location: []int{11}},
		{ID: "PRESENTATION.2", Location: []int{5}}, // untouched line
	}

	merged := Merge(nil, fresh, []int{11}, cur)

	if len(merged) != 1 || merged[0].ID != "PRESENTATION.1" {
		t.Fatalf("merged = %+v, want only PRESENTATION.1", merged)
	}
	if diff := cmp.Diff(map[int]string{11: "h11"}, merged[0].LineHashes); diff != "" {
		t.Errorf("line hashes not snapshotted (-want +got):\n%s", diff)
	}
}

func TestMergeKeepsFreshGlobal(t *testing.T) {
	fresh := []Concern{{ID: "DATA.1"}}

	merged := Merge(nil, fresh, []int{3}, map[int]string{3: "h3"})
	if len(merged) != 1 {
		t.Fatalf("fresh global concern dropped: %+v", merged)
	}
}

func TestMergeIDCollisionKeepsReused(t *testing.T) {
	reused := []Concern{{ID: "DATA.1", Summary: "prior wording"}}
	fresh := []Concern{{ID: "DATA.1", Summary: "new wording"}}

	merged := Merge(reused, fresh, nil, nil)
	if len(merged) != 1 {
		t.Fatalf("got %d concerns, want 1", len(merged))
	}
	if merged[0].Summary != "prior wording" {
		t.Errorf("reused concern must win the collision, got %q", merged[0].Summary)
	}
}

func TestMergeOpenQuestions(t *testing.T) {
	prior := []string{"impute nulls?", "log scale?"}
	fresh := []string{"log scale?", "", "cap outliers?"}

	got := MergeOpenQuestions(prior, fresh)
	want := []string{"impute nulls?", "log scale?", "cap outliers?"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MergeOpenQuestions mismatch (-want +got):\n%s", diff)
	}
}

func TestSortConcerns(t *testing.T) {
	concerns := []Concern{
		{ID: "PRESENTATION.2"},
		{ID: "DATA.1"},
		{ID: "PRESENTATION.1"},
		{ID: "COMPUTATION.1"},
	}
	SortConcerns(concerns)

	want := []string{"COMPUTATION.1", "DATA.1", "PRESENTATION.1", "PRESENTATION.2"}
	for i, c := range concerns {
		if c.ID != want[i] {
			t.Errorf("order[%d] = %s, want %s", i, c.ID, want[i])
		}
	}
}

func TestLineHashesTracksEdit(t *testing.T) {
	before := LineHashes("a\nb\nc")
	after := LineHashes("a\nB\nc")

	if before[1] != after[1] || before[3] != after[3] {
		t.Error("untouched lines must hash identically")
	}
	if before[2] == after[2] {
		t.Error("edited line must hash differently")
	}
	if diff := cmp.Diff([]int{2}, ChangedLines(before, after)); diff != "" {
		t.Errorf("changed lines (-want +got):\n%s", diff)
	}
}
