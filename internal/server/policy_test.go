package server

import (
	"errors"
	"testing"
)

func TestPresets(t *testing.T) {
	tests := []struct {
		name    string
		weights [4]int
	}{
		{"reliable", [4]int{10, 0, 0, 0}},
		{"lossy", [4]int{8, 2, 0, 0}},
		{"icmp-error", [4]int{6, 0, 2, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Preset(tt.name)
			if err != nil {
				t.Fatalf("Preset() error = %v", err)
			}
			if err := p.Validate(); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
			for i, a := range Actions {
				if got := p.Weight(a); got != tt.weights[i] {
					t.Errorf("Weight(%v) = %d, want %d", a, got, tt.weights[i])
				}
			}
		})
	}

	if _, err := Preset("chaotic"); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("Preset(chaotic) error = %v, want ErrUnknownPreset", err)
	}
}

func TestPresetDecisions(t *testing.T) {
	p, _ := Preset("icmp-error")

	want := map[int]Action{
		1:  ActionEcho,
		6:  ActionEcho,
		7:  ActionDestUnreachable,
		8:  ActionDestUnreachable,
		9:  ActionPortUnreachable,
		10: ActionPortUnreachable,
	}
	for draw, action := range want {
		if got := p.Decide(draw); got != action {
			t.Errorf("Decide(%d) = %v, want %v", draw, got, action)
		}
	}

	lossy, _ := Preset("lossy")
	if got := lossy.Decide(9); got != ActionDrop {
		t.Errorf("lossy Decide(9) = %v, want drop", got)
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name   string
		ranges []Range
		valid  bool
	}{
		{"empty", nil, false},
		{"single range", []Range{{1, 10, ActionEcho}}, true},
		{"unordered ranges", []Range{{9, 10, ActionDrop}, {1, 8, ActionEcho}}, true},
		{"gap", []Range{{1, 5, ActionEcho}, {7, 10, ActionDrop}}, false},
		{"overlap", []Range{{1, 6, ActionEcho}, {6, 10, ActionDrop}}, false},
		{"short", []Range{{1, 9, ActionEcho}}, false},
		{"starts at zero", []Range{{0, 10, ActionEcho}}, false},
		{"past the end", []Range{{1, 11, ActionEcho}}, false},
		{"inverted", []Range{{1, 10, ActionEcho}, {10, 9, ActionDrop}}, false},
		{"unknown action", []Range{{1, 10, Action(9)}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Policy{Ranges: tt.ranges}.Validate()
			if tt.valid && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidPolicy) {
				t.Errorf("Validate() error = %v, want ErrInvalidPolicy", err)
			}
		})
	}
}

func TestPolicyFromWeights(t *testing.T) {
	p, err := PolicyFromWeights(5, 1, 0, 4)
	if err != nil {
		t.Fatalf("PolicyFromWeights() error = %v", err)
	}
	if got, want := p.String(), "echo 1-5, drop 6, port-unreachable 7-10"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	bad := [][4]int{
		{5, 0, 0, 0},
		{6, 6, 0, 0},
		{11, -1, 0, 0},
	}
	for _, w := range bad {
		if _, err := PolicyFromWeights(w[0], w[1], w[2], w[3]); !errors.Is(err, ErrInvalidWeights) {
			t.Errorf("PolicyFromWeights(%v) error = %v, want ErrInvalidWeights", w, err)
		}
	}
}

func TestParseAction(t *testing.T) {
	for _, a := range Actions {
		got, err := ParseAction(a.String())
		if err != nil || got != a {
			t.Errorf("ParseAction(%q) = %v, %v", a.String(), got, err)
		}
	}
	if _, err := ParseAction("explode"); !errors.Is(err, ErrUnknownAction) {
		t.Errorf("ParseAction(explode) error = %v, want ErrUnknownAction", err)
	}
	if Action(42).String() != "unknown" {
		t.Error("out of range action should be unknown")
	}
}

func TestPresetNames(t *testing.T) {
	names := PresetNames()
	want := []string{"icmp-error", "lossy", "reliable"}
	if len(names) != len(want) {
		t.Fatalf("PresetNames() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("PresetNames()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
