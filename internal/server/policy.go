package server

import (
	"fmt"
	"sort"
	"strings"
)

// Draws are uniform integers in [DrawMin, DrawMax].
const (
	DrawMin = 1
	DrawMax = 10
)

// Action is what a server does with one inbound message.
type Action int

const (
	// ActionEcho sends the payload back uppercased
	ActionEcho Action = iota
	// ActionDrop sends nothing
	ActionDrop
	// ActionDestUnreachable sends a destination unreachable error
	ActionDestUnreachable
	// ActionPortUnreachable sends a port unreachable error
	ActionPortUnreachable
)

// Actions lists every action in declaration order.
var Actions = []Action{ActionEcho, ActionDrop, ActionDestUnreachable, ActionPortUnreachable}

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionEcho:
		return "echo"
	case ActionDrop:
		return "drop"
	case ActionDestUnreachable:
		return "dest-unreachable"
	case ActionPortUnreachable:
		return "port-unreachable"
	default:
		return "unknown"
	}
}

// ParseAction converts a name to an Action.
func ParseAction(s string) (Action, error) {
	for _, a := range Actions {
		if strings.EqualFold(s, a.String()) {
			return a, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAction, s)
}

// Range maps the inclusive draws Low..High to an action.
type Range struct {
	Low    int
	High   int
	Action Action
}

// Policy partitions the draw space into actions.
type Policy struct {
	Ranges []Range
}

// Validate checks that the ranges cover every draw exactly once.
func (p Policy) Validate() error {
	if len(p.Ranges) == 0 {
		return ErrInvalidPolicy
	}

	ranges := append([]Range(nil), p.Ranges...)
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Low < ranges[j].Low })

	next := DrawMin
	for _, r := range ranges {
		if r.Low != next || r.High < r.Low {
			return fmt.Errorf("%w: range %d-%d", ErrInvalidPolicy, r.Low, r.High)
		}
		if r.Action < ActionEcho || r.Action > ActionPortUnreachable {
			return fmt.Errorf("%w: range %d-%d has %v", ErrInvalidPolicy, r.Low, r.High, r.Action)
		}
		next = r.High + 1
	}
	if next != DrawMax+1 {
		return fmt.Errorf("%w: draws %d-%d uncovered", ErrInvalidPolicy, next, DrawMax)
	}
	return nil
}

// Decide returns the action for draw. Draws outside every range echo.
func (p Policy) Decide(draw int) Action {
	for _, r := range p.Ranges {
		if draw >= r.Low && draw <= r.High {
			return r.Action
		}
	}
	return ActionEcho
}

// Weight returns how many draws map to a.
func (p Policy) Weight(a Action) int {
	w := 0
	for _, r := range p.Ranges {
		if r.Action == a {
			w += r.High - r.Low + 1
		}
	}
	return w
}

// String renders the policy as "echo 1-8, drop 9-10".
func (p Policy) String() string {
	parts := make([]string, 0, len(p.Ranges))
	for _, r := range p.Ranges {
		if r.Low == r.High {
			parts = append(parts, fmt.Sprintf("%s %d", r.Action, r.Low))
		} else {
			parts = append(parts, fmt.Sprintf("%s %d-%d", r.Action, r.Low, r.High))
		}
	}
	return strings.Join(parts, ", ")
}

// PolicyFromWeights lays the actions out over consecutive draws in the
// order echo, drop, destination unreachable, port unreachable. Zero
// weights are skipped.
func PolicyFromWeights(echo, drop, dest, port int) (Policy, error) {
	weights := []int{echo, drop, dest, port}

	total := 0
	for _, w := range weights {
		if w < 0 {
			return Policy{}, ErrInvalidWeights
		}
		total += w
	}
	if total != DrawMax-DrawMin+1 {
		return Policy{}, fmt.Errorf("%w: got %d", ErrInvalidWeights, total)
	}

	var p Policy
	low := DrawMin
	for i, w := range weights {
		if w == 0 {
			continue
		}
		p.Ranges = append(p.Ranges, Range{Low: low, High: low + w - 1, Action: Actions[i]})
		low += w
	}
	return p, nil
}

var presets = map[string][4]int{
	"reliable":   {10, 0, 0, 0},
	"lossy":      {8, 2, 0, 0},
	"icmp-error": {6, 0, 2, 2},
}

// Preset returns a named policy: reliable (always echo), lossy (1-8 echo,
// 9-10 drop) or icmp-error (1-6 echo, 7-8 destination unreachable, 9-10
// port unreachable).
func Preset(name string) (Policy, error) {
	w, ok := presets[strings.ToLower(name)]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownPreset, name, strings.Join(PresetNames(), ", "))
	}
	return PolicyFromWeights(w[0], w[1], w[2], w[3])
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
