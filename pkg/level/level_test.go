package level

import "testing"

// TestPriorityOrder verifies the total order used for eviction protection.
//
// TestPriorityOrder 验证用于淘汰保护的全序关系。
func TestPriorityOrder(t *testing.T) {
	order := []Priority{Low, Normal, High, Critical}
	for i := 1; i < len(order); i++ {
		if !(order[i-1] < order[i]) {
			t.Errorf("Expected %s < %s", order[i-1], order[i])
		}
		if order[i].Rank() != i {
			t.Errorf("Expected rank %d for %s, got %d", i, order[i], order[i].Rank())
		}
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{"low", Low, false},
		{"NORMAL", Normal, false},
		{" High ", High, false},
		{"critical", Critical, false},
		{"", Normal, false},
		{"urgent", Normal, true},
	}

	for _, tt := range tests {
		got, err := ParsePriority(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePriority(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePriority(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestPriorityText(t *testing.T) {
	var p Priority
	if err := p.UnmarshalText([]byte("high")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if p != High {
		t.Fatalf("Expected High, got %s", p)
	}

	text, err := Critical.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	if string(text) != "critical" {
		t.Fatalf("Expected 'critical', got %q", text)
	}

	if _, err := Priority(42).MarshalText(); err == nil {
		t.Fatal("Expected error when marshalling an invalid priority")
	}
}

func TestPressureOrder(t *testing.T) {
	if !PressureCritical.AtLeast(PressureHigh) {
		t.Error("Expected critical to be at least high")
	}
	if PressureMedium.AtLeast(PressureHigh) {
		t.Error("Expected medium to be below high")
	}
	if PressureLow.String() != "low" || PressureCritical.String() != "critical" {
		t.Errorf("Unexpected names: %s, %s", PressureLow, PressureCritical)
	}

	p, err := ParsePressure("HIGH")
	if err != nil || p != PressureHigh {
		t.Fatalf("ParsePressure(HIGH) = %s, %v", p, err)
	}
}

func TestPriorityZeroValue(t *testing.T) {
	var p Priority
	if p.Valid() {
		t.Error("Expected the zero value to be invalid")
	}
	if p.OrDefault() != Normal {
		t.Errorf("Expected zero value to default to normal, got %s", p.OrDefault())
	}
	if Low.OrDefault() != Low {
		t.Errorf("Expected Low to stay Low, got %s", Low.OrDefault())
	}
	if Low.Rank() != 0 {
		t.Errorf("Expected Low rank 0, got %d", Low.Rank())
	}
}
