package textnorm

import "testing"

func TestNameStripsDiacriticsAndCase(t *testing.T) {
	got := Name("Pensión  MÜller")
	if got != "pension muller" {
		t.Fatalf("expected %q, got %q", "pension muller", got)
	}
}

func TestNameRemovesStopWordsOnlyFromLongNames(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"long name drops type word", "Hotel Zur Alten Post", "zur alten post"},
		{"two word name keeps type word", "Ferienhaus Waldblick", "ferienhaus waldblick"},
		{"single word unchanged", "Villa", "villa"},
		{"multiple stop words", "Hotel Resort Seeblick Bergen", "seeblick bergen"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Name(tt.in); got != tt.want {
				t.Fatalf("Name(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestFoldKeepsAllWords(t *testing.T) {
	got := Fold("  Hotel   Drei Könige ")
	if got != "hotel drei konige" {
		t.Fatalf("expected %q, got %q", "hotel drei konige", got)
	}
}

func TestTokensSplitsNormalizedName(t *testing.T) {
	tokens := Tokens("Apartament Żółta Plaża nad Morzem")
	want := []string{"zolta", "plaza", "nad", "morzem"}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %v", len(want), tokens)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("token %d: expected %q, got %q", i, want[i], tokens[i])
		}
	}
}

func TestTokensEmptyInput(t *testing.T) {
	if tokens := Tokens("   "); tokens != nil {
		t.Fatalf("expected nil, got %v", tokens)
	}
}

func TestEmailDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Host@Example.COM", "example.com"},
		{"no-at-sign", ""},
		{"trailing@", ""},
		{"", ""},
		{"a@b@holidu.com", "holidu.com"},
	}

	for _, tt := range tests {
		if got := EmailDomain(tt.in); got != tt.want {
			t.Fatalf("EmailDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
