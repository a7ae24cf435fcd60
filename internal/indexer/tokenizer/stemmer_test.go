package tokenizer

import (
	"testing"
	"unicode/utf8"
)

func TestStem(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		// Short words are returned exactly as given.
		{"", ""},
		{"a", "a"},
		{"Go", "Go"},
		{"is", "is"},

		// Three letters or more are lower-cased even when no rule fires.
		{"THE", "the"},
		{"Cat", "cat"},
		{"bed", "bed"},
		{"yes", "yes"},
		{"sing", "sing"},
		{"nation", "nation"},

		{"queries", "query"},
		{"boxes", "box"},
		{"goes", "goe"},
		{"cats", "cat"},
		{"runs", "run"},
		{"running", "runn"},
		{"jumped", "jump"},
		{"faster", "fast"},
		{"fastest", "fast"},
		{"quickly", "quick"},
		{"creation", "crea"},
		{"payment", "pay"},

		// The plural rule comes first, so "-ness" words lose only the "s".
		{"kindness", "kindnes"},

		// Lengths are counted in characters, not bytes.
		{"été", "été"},
		{"ÉTÉ", "été"},
		{"cafés", "café"},
		{"niños", "niño"},
	}

	for _, tt := range tests {
		got := Stem(tt.input)
		if got != tt.want {
			t.Errorf("Stem(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestStemNeverShrinksBelowThree(t *testing.T) {
	words := []string{
		"queries", "ties", "lies", "boxes", "uses", "cats", "bus", "runs",
		"running", "sings", "jumped", "owed", "faster", "newer", "fastest",
		"quickly", "only", "creation", "nation", "kindness", "payment",
		"cement", "stations", "statements", "happiness",
	}
	for _, w := range words {
		current := w
		for i := 0; i < 5; i++ {
			current = Stem(current)
			if utf8.RuneCountInString(current) < 3 {
				t.Errorf("Stem applied %d times to %q shrank it to %q", i+1, w, current)
				break
			}
		}
	}
}

func TestSnowballStem(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Go", "Go"},
		{"running", "run"},
		{"Cats", "cat"},
	}
	for _, tt := range tests {
		if got := SnowballStem(tt.input); got != tt.want {
			t.Errorf("SnowballStem(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestStemmerByName(t *testing.T) {
	for _, name := range []string{"", "suffix", "SUFFIX"} {
		fn, err := StemmerByName(name)
		if err != nil {
			t.Fatalf("StemmerByName(%q) error: %v", name, err)
		}
		if got := fn("running"); got != "runn" {
			t.Errorf("StemmerByName(%q)(running) = %q, want runn", name, got)
		}
	}

	fn, err := StemmerByName("snowball")
	if err != nil {
		t.Fatalf("StemmerByName(snowball) error: %v", err)
	}
	if got := fn("running"); got != "run" {
		t.Errorf("snowball(running) = %q, want run", got)
	}

	if _, err := StemmerByName("porter"); err == nil {
		t.Error("expected error for unknown stemmer")
	}
}
