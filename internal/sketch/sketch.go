// Package sketch holds the value types of the drawing core: points, strokes
// and canvas states. All of them are treated as immutable once recorded.
package sketch

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EraserScale is how much wider an eraser stroke is than a pen stroke of the
// same nominal width.
const EraserScale = 2

// Point is a pixel coordinate in canvas device space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Tool selects how a stroke is painted.
type Tool string

const (
	ToolPen    Tool = "pen"
	ToolEraser Tool = "eraser"
	// ToolClear is reserved; the recorder never produces it.
	ToolClear Tool = "clear"
)

func (t Tool) Valid() bool {
	switch t {
	case ToolPen, ToolEraser, ToolClear:
		return true
	default:
		return false
	}
}

// ParseTool accepts a tool name in any case.
func ParseTool(s string) (Tool, error) {
	t := Tool(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("sketch: unknown tool %q", s)
	}
	return t, nil
}

// Stroke is one continuous freehand gesture.
type Stroke struct {
	Points []Point `json:"points"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
	Tool   Tool    `json:"tool"`
}

// Visible reports whether the stroke leaves a mark when replayed. A tap
// (a single point) is kept in history but never drawn.
func (s Stroke) Visible() bool {
	return len(s.Points) >= 2 && s.Width > 0
}

// Clone returns a copy that shares no memory with s.
func (s Stroke) Clone() Stroke {
	out := s
	out.Points = append([]Point(nil), s.Points...)
	return out
}

// State is the ordered set of strokes committed at one point in editing time.
// The zero value is the empty canvas.
type State struct {
	strokes []Stroke
}

// NewState builds a state from a copy of strokes.
func NewState(strokes ...Stroke) State {
	if len(strokes) == 0 {
		return State{}
	}
	out := make([]Stroke, len(strokes))
	for i, s := range strokes {
		out[i] = s.Clone()
	}
	return State{strokes: out}
}

func (s State) Len() int { return len(s.strokes) }

// At returns the i-th stroke. The returned value must not be mutated.
func (s State) At(i int) Stroke { return s.strokes[i] }

// Strokes returns a copy of the stroke list.
func (s State) Strokes() []Stroke {
	return append([]Stroke(nil), s.strokes...)
}

// With returns a new state with stroke appended. The receiver is left
// untouched and the result never shares a backing array with it.
func (s State) With(stroke Stroke) State {
	out := make([]Stroke, len(s.strokes), len(s.strokes)+1)
	copy(out, s.strokes)
	out = append(out, stroke.Clone())
	return State{strokes: out}
}

// Same reports whether s and o are the very same state value, not merely
// equal ones.
func (s State) Same(o State) bool {
	if len(s.strokes) != len(o.strokes) {
		return false
	}
	if len(s.strokes) == 0 {
		return true
	}
	return &s.strokes[0] == &o.strokes[0]
}

// Equal compares two states stroke by stroke.
func (s State) Equal(o State) bool {
	if len(s.strokes) != len(o.strokes) {
		return false
	}
	for i := range s.strokes {
		a, b := s.strokes[i], o.strokes[i]
		if a.Color != b.Color || a.Width != b.Width || a.Tool != b.Tool || len(a.Points) != len(b.Points) {
			return false
		}
		for j := range a.Points {
			if a.Points[j] != b.Points[j] {
				return false
			}
		}
	}
	return true
}

func (s State) MarshalJSON() ([]byte, error) {
	if s.strokes == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.strokes)
}

func (s *State) UnmarshalJSON(data []byte) error {
	var strokes []Stroke
	if err := json.Unmarshal(data, &strokes); err != nil {
		return err
	}
	*s = NewState(strokes...)
	return nil
}
