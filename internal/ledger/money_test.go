package ledger

import (
	"math"
	"testing"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"two decimals kept", 12.34, 12.34},
		{"half rounds up", 0.005, 0.01},
		{"third of ten", 10.0 / 3.0, 3.33},
		{"negative", -2.675, -2.68},
		{"nan collapses", math.NaN(), 0},
		{"positive inf collapses", math.Inf(1), 0},
		{"negative inf collapses", math.Inf(-1), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Round(tt.in); got != tt.want {
				t.Errorf("Round(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoundCurrency(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"float", 19.999, 20.0},
		{"int", 7, 7.0},
		{"numeric string", " 12.345 ", 12.35},
		{"garbage string", "abc", 0},
		{"nil", nil, 0},
		{"bool", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoundCurrency(tt.in); got != tt.want {
				t.Errorf("RoundCurrency(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestSlugifyGroupLabel(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{"simple", "Road Trip", "road-trip"},
		{"punctuation collapses", "NYC -- trip!!", "nyc-trip"},
		{"case insensitive identity", "ROAD trip", "road-trip"},
		{"empty falls back to default label", "", "personal-split"},
		{"whitespace only", "   ", "personal-split"},
		{"only symbols", "!!!", "general"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SlugifyGroupLabel(tt.label); got != tt.want {
				t.Errorf("SlugifyGroupLabel(%q) = %q, want %q", tt.label, got, tt.want)
			}
		})
	}
}

func TestNormalizeGroupLabel(t *testing.T) {
	if got := NormalizeGroupLabel("  Ski weekend "); got != "Ski weekend" {
		t.Errorf("got %q", got)
	}
	if got := NormalizeGroupLabel("   "); got != FallbackGroupLabel {
		t.Errorf("blank label: got %q, want %q", got, FallbackGroupLabel)
	}
}

func TestLabelFromSlug(t *testing.T) {
	if got := labelFromSlug("road-trip"); got != "Road Trip" {
		t.Errorf("got %q", got)
	}
	if got := labelFromSlug("general"); got != "General" {
		t.Errorf("got %q", got)
	}
}

func TestInitiatorAmountForOwner(t *testing.T) {
	a := initiatorAmount(DirectionOwesYou, 25)
	if got := a.ForOwner(true); got != -25 {
		t.Errorf("owes_you for initiator = %v, want -25", got)
	}
	if got := a.ForOwner(false); got != 25 {
		t.Errorf("owes_you for counterparty = %v, want 25", got)
	}
	b := initiatorAmount(DirectionYouOwe, 10)
	if got := b.ForOwner(true); got != 10 {
		t.Errorf("you_owe for initiator = %v, want 10", got)
	}
	if got := b.ForOwner(false); got != -10 {
		t.Errorf("you_owe for counterparty = %v, want -10", got)
	}
}
