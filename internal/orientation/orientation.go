// Package orientation classifies 2-axis gravity samples into screen
// orientations and holds the fixed rotation and input transform tables.
package orientation

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Orientation is one of the four physical screen rotations, or Unknown when
// no region matched.
type Orientation int

const (
	Unknown Orientation = iota
	Normal
	Left
	Right
	Inverted
)

// Concrete lists the orientations that carry a rotation and transform.
var Concrete = []Orientation{Normal, Left, Right, Inverted}

// String returns the rotation name understood by display tools.
func (o Orientation) String() string {
	switch o {
	case Normal:
		return "normal"
	case Left:
		return "left"
	case Right:
		return "right"
	case Inverted:
		return "inverted"
	default:
		return "unknown"
	}
}

// IsConcrete reports whether o is one of the four rotations.
func (o Orientation) IsConcrete() bool {
	return o >= Normal && o <= Inverted
}

// Parse returns the orientation with the given name.
func Parse(name string) (Orientation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "normal":
		return Normal, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	case "inverted":
		return Inverted, nil
	case "unknown":
		return Unknown, nil
	}
	return Unknown, fmt.Errorf("unknown orientation %q", name)
}

// MarshalJSON encodes the orientation by name.
func (o Orientation) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON decodes an orientation name.
func (o *Orientation) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := Parse(name)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Sample is one calibrated acceleration reading (raw * scale per axis).
type Sample struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (s Sample) String() string {
	return fmt.Sprintf("(%.3f, %.3f)", s.X, s.Y)
}
