package merger

import (
	"math/rand"
	"reflect"
	"sort"
	"testing"
)

type scored struct {
	pos   int
	score float64
}

func better(a, b scored) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	return a.pos < b.pos
}

func TestTopMatchesStableSort(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		items := make([]scored, rng.Intn(40))
		for i := range items {
			// Few distinct scores so ties are common.
			items[i] = scored{pos: i, score: float64(rng.Intn(5)) / 4}
		}
		sorted := append([]scored(nil), items...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].score > sorted[j].score })

		for _, n := range []int{1, 3, 10, 100} {
			want := sorted
			if n < len(want) {
				want = want[:n]
			}
			got := Top(items, n, better)
			if len(got) == 0 && len(want) == 0 {
				continue
			}
			if !reflect.DeepEqual(got, want) {
				t.Fatalf("trial %d n=%d\n  got  %v\n  want %v", trial, n, got, want)
			}
		}
	}
}

func TestTopNonPositive(t *testing.T) {
	items := []scored{{0, 1}, {1, 2}}
	if got := Top(items, 0, better); got != nil {
		t.Errorf("Top(n=0) = %v, want nil", got)
	}
	if got := Top(items, -3, better); got != nil {
		t.Errorf("Top(n=-3) = %v, want nil", got)
	}
}

func TestTopDoesNotModifyInput(t *testing.T) {
	items := []scored{{0, 0.1}, {1, 0.9}, {2, 0.5}}
	orig := append([]scored(nil), items...)
	Top(items, 2, better)
	if !reflect.DeepEqual(items, orig) {
		t.Errorf("input modified: %v", items)
	}
}
