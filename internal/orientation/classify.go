package orientation

import "fmt"

// Range is a closed interval [Min, Max].
type Range struct {
	Min float64
	Max float64
}

// Contains reports whether v lies within the interval, bounds included.
func (r Range) Contains(v float64) bool {
	return r.Min <= v && v <= r.Max
}

func (r Range) intersect(o Range) (Range, bool) {
	lo := max(r.Min, o.Min)
	hi := min(r.Max, o.Max)
	return Range{Min: lo, Max: hi}, lo <= hi
}

// RegionRule maps an axis-aligned rectangle in (x, y) acceleration space to
// an orientation.
type RegionRule struct {
	Orientation Orientation
	X           Range
	Y           Range
}

// Matches reports whether the sample falls inside the rule's rectangle.
func (r RegionRule) Matches(s Sample) bool {
	return r.X.Contains(s.X) && r.Y.Contains(s.Y)
}

func (r RegionRule) String() string {
	return fmt.Sprintf("%s x[%g,%g] y[%g,%g]", r.Orientation, r.X.Min, r.X.Max, r.Y.Min, r.Y.Max)
}

// Evaluation order is the tie-break for overlapping rectangles: the first
// matching rule wins.
var rules = [...]RegionRule{
	{Orientation: Normal, X: Range{-6, 6}, Y: Range{-9, -0.5}},
	{Orientation: Left, X: Range{5, 10}, Y: Range{-5, -0.2}},
	{Orientation: Right, X: Range{-9, -2}, Y: Range{-7, 6}},
	{Orientation: Inverted, X: Range{-6, 6}, Y: Range{2, 10}},
}

// Rules returns a copy of the fixed rule table in evaluation order.
func Rules() []RegionRule {
	out := make([]RegionRule, len(rules))
	copy(out, rules[:])
	return out
}

// Classify returns the orientation of the first rule containing s, or
// Unknown when s lies in none of them.
func Classify(s Sample) Orientation {
	return ClassifyWith(rules[:], s)
}

// ClassifyWith evaluates an arbitrary rule table in order.
func ClassifyWith(table []RegionRule, s Sample) Orientation {
	for _, r := range table {
		if r.Matches(s) {
			return r.Orientation
		}
	}
	return Unknown
}

// Overlap describes two rules whose rectangles intersect. Samples in the
// intersection always resolve to First.
type Overlap struct {
	First  RegionRule
	Second RegionRule
	X      Range
	Y      Range
}

func (o Overlap) String() string {
	return fmt.Sprintf("%s shadows %s in x[%g,%g] y[%g,%g]",
		o.First.Orientation, o.Second.Orientation, o.X.Min, o.X.Max, o.Y.Min, o.Y.Max)
}

// Overlaps reports every pair of intersecting rectangles in the table, in
// evaluation order.
func Overlaps(table []RegionRule) []Overlap {
	var out []Overlap
	for i := 0; i < len(table); i++ {
		for j := i + 1; j < len(table); j++ {
			xr, okX := table[i].X.intersect(table[j].X)
			yr, okY := table[i].Y.intersect(table[j].Y)
			if okX && okY {
				out = append(out, Overlap{First: table[i], Second: table[j], X: xr, Y: yr})
			}
		}
	}
	return out
}
