package objective

import (
	"errors"
	"testing"

	"github.com/GoSim-25-26J-441/shell-search/pkg/models"
)

func TestNew(t *testing.T) {
	tests := []struct {
		testType models.TestType
		wantName string
	}{
		{models.TestPerVolume, "per_volume"},
		{models.TestPerCost, "per_cost"},
		{"", "per_volume"},
	}
	for _, tt := range tests {
		t.Run(string(tt.testType), func(t *testing.T) {
			obj, err := New(tt.testType)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if obj.Name() != tt.wantName {
				t.Fatalf("expected %s, got %s", tt.wantName, obj.Name())
			}
		})
	}
}

func TestNewUnknown(t *testing.T) {
	_, err := New("per_mass")
	var unknown *UnknownObjectiveError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownObjectiveError, got %v", err)
	}
	if unknown.TestType != "per_mass" {
		t.Fatalf("expected per_mass, got %s", unknown.TestType)
	}
}

func TestEvaluate(t *testing.T) {
	m := models.Metrics{Volume: 10, Cost: 40, DPSPerVolume: 3, DPSPerCost: 0.75}

	score, err := PerVolume{}.Evaluate(m)
	if err != nil || score != 3 {
		t.Fatalf("expected 3, got %v (err %v)", score, err)
	}
	score, err = PerCost{}.Evaluate(m)
	if err != nil || score != 0.75 {
		t.Fatalf("expected 0.75, got %v (err %v)", score, err)
	}
}

func TestEvaluateRejectsEmptyMetrics(t *testing.T) {
	var invalid *InvalidMetricsError
	if _, err := (PerVolume{}).Evaluate(models.Metrics{}); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidMetricsError, got %v", err)
	}
	if _, err := (PerCost{}).Evaluate(models.Metrics{Volume: 1}); !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidMetricsError, got %v", err)
	}
}
