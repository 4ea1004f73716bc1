package models

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func TestParseDamageType(t *testing.T) {
	dt, err := ParseDamageType(" Pendepth ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dt != DamagePendepth {
		t.Fatalf("expected pendepth, got %q", dt)
	}

	_, err = ParseDamageType("plasma")
	var unknown *UnknownDamageTypeError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownDamageTypeError, got %v", err)
	}
	if unknown.Name != "plasma" {
		t.Fatalf("expected name plasma, got %q", unknown.Name)
	}
}

func TestAuxiliary(t *testing.T) {
	aux := DamagePendepth.Auxiliary()
	if len(aux) != 3 || aux[0] != DamageFlaK || aux[1] != DamageFrag || aux[2] != DamageHE {
		t.Fatalf("unexpected pendepth auxiliaries: %v", aux)
	}
	if DamageKinetic.Auxiliary() != nil {
		t.Fatal("expected no auxiliaries for kinetic")
	}
}

func TestOrdinalLess(t *testing.T) {
	tests := []struct {
		a, b Ordinal
		want bool
	}{
		{Ordinal{0, 5}, Ordinal{1, 0}, true},
		{Ordinal{1, 0}, Ordinal{0, 5}, false},
		{Ordinal{2, 3}, Ordinal{2, 4}, true},
		{Ordinal{2, 4}, Ordinal{2, 4}, false},
	}
	for _, tt := range tests {
		if got := tt.a.Less(tt.b); got != tt.want {
			t.Errorf("%v.Less(%v): expected %v, got %v", tt.a, tt.b, tt.want, got)
		}
	}
}

func TestConfigurationTotals(t *testing.T) {
	c := Configuration{BodyCounts: []int{1, 0, 3}, FineCasing: 150, CoarseCasing: 2}
	if c.BodyTotal() != 4 {
		t.Fatalf("expected body total 4, got %d", c.BodyTotal())
	}
	if c.ModuleTotal() != 7.5 {
		t.Fatalf("expected module total 7.5, got %v", c.ModuleTotal())
	}

	clone := c.Clone()
	clone.BodyCounts[0] = 9
	if c.BodyCounts[0] != 1 {
		t.Fatal("expected clone not to share body counts")
	}
}

func TestMetricsInvalid(t *testing.T) {
	ok := Metrics{TotalLength: 500, Volume: 10, Cost: 20, Damage: map[DamageType]float64{DamageKinetic: 100}}
	if name, _ := ok.Invalid(); name != "" {
		t.Fatalf("expected valid metrics, got invalid %q", name)
	}

	nan := ok
	nan.DPSPerVolume = math.NaN()
	if name, _ := nan.Invalid(); name != "dps_per_volume" {
		t.Fatalf("expected dps_per_volume, got %q", name)
	}

	neg := ok
	neg.Damage = map[DamageType]float64{DamageHE: -1}
	if name, v := neg.Invalid(); name != "damage.he" || v != -1 {
		t.Fatalf("expected damage.he=-1, got %q=%v", name, v)
	}
}

func TestCategoryLabels(t *testing.T) {
	if got := LengthCategory(1000); got != "1m" {
		t.Fatalf("expected 1m, got %q", got)
	}
	if got := LengthCategory(2500); got != "2.5m" {
		t.Fatalf("expected 2.5m, got %q", got)
	}
	if got := OverflowCategory(8000); got != "8m+" {
		t.Fatalf("expected 8m+, got %q", got)
	}
}

func TestFeedJSON(t *testing.T) {
	cfg := Configuration{Head: 1, BodyCounts: []int{0, 2}, Feed: FeedBelt}
	raw, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Configuration
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal %s: %v", raw, err)
	}
	if back.Feed != FeedBelt {
		t.Fatalf("expected belt feed, got %v", back.Feed)
	}

	var f Feed
	if err := f.UnmarshalText([]byte("conveyor")); err == nil {
		t.Fatalf("expected unknown feed error")
	}
}
