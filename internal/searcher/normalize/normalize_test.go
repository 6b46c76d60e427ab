package normalize

import (
	"reflect"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"du3", []string{"du₃"}},
		{"tam12", []string{"tam₁₂"}},
		{"szu", []string{"šu"}},
		{"s,a", []string{"ṣa"}},
		{"1/2", []string{"½"}},
		{"5/6", []string{"⅚"}},
		{"3(disz)", []string{"3(diš)"}},
		{"3diš", []string{"3(diš)"}},
		{"3(DIŠ)", []string{"3(diš)"}},
		{"2geš2", []string{"2(geš₂)"}},
		{"4(geš2)", []string{"4(geš₂)"}},
		{"25", []string{"2(u)", "5(diš)"}},
		{"75", []string{"1(geš₂)", "1(u)", "5(diš)"}},
		{"60", []string{"1(geš₂)"}},
		{"0", nil},
		{"", nil},
		{"  ", nil},
		{"lì", []string{"lì"}},
		{"[tm]u[rm]", []string{"[tm]u[rm]"}},
		{"[sz]a", []string{"[sz]a"}},
		{"[ts,]a", []string{"[ts,]a"}},
		{"sz[sz]u", []string{"š[sz]u"}},
		{"&tam", []string{"&tam"}},
		{"$lì", []string{"$lì"}},
		{"LUGAL", []string{"LUGAL"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Normalize(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeComposesDecomposedAccents(t *testing.T) {
	decomposed := "lì" // l, i, combining grave
	got := Normalize(decomposed)
	if len(got) != 1 || got[0] != "lì" {
		t.Errorf("Normalize(decomposed lì) = %q, want [lì]", got)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"du3", "tam12", "szu", "1/2", "3(DIŠ)", "25", "75", "4(geš2)",
		"a", "na", "lì", "Cum", "&tam", "$lì", "[tm]u[rm]", "[sz]a", "ṭe₄", "LUGAL",
	}
	for _, in := range inputs {
		once := Normalize(in)
		var twice []string
		for _, tok := range once {
			twice = append(twice, Normalize(tok)...)
		}
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestSegment(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a-na", []string{"a", "na"}},
		{"šu.ut+ti", []string{"šu", "ut", "ti"}},
		{"du3-a", []string{"du₃", "a"}},
		{"25-ta", []string{"2(u)", "5(diš)", "ta"}},
		{"--", []string{}},
		{"", []string{}},
	}
	for _, tt := range tests {
		got := Segment(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Segment(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWords(t *testing.T) {
	got := Words("  a-na  šar-ri\tdu3 ")
	want := []string{"a-na", "šar-ri", "du3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Words() = %q, want %q", got, want)
	}
}
