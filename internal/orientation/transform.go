package orientation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Matrix is a row-major 3x3 coordinate transformation applied to a pointer
// or touch device. Entries are in {-1, 0, 1}.
type Matrix [9]int

// Values renders the nine entries separated by spaces, as xinput expects.
func (m Matrix) Values() []string {
	out := make([]string, len(m))
	for i, v := range m {
		out[i] = strconv.Itoa(v)
	}
	return out
}

func (m Matrix) String() string {
	return strings.Join(m.Values(), " ")
}

// Dense returns the matrix as a gonum dense matrix.
func (m Matrix) Dense() *mat.Dense {
	data := make([]float64, len(m))
	for i, v := range m {
		data[i] = float64(v)
	}
	return mat.NewDense(3, 3, data)
}

// The third column is the translation that keeps normalised coordinates
// inside [0, 1] after the linear part rotates them.
var transforms = map[Orientation]Matrix{
	Normal:   {1, 0, 0, 0, 1, 0, 0, 0, 1},
	Left:     {0, -1, 1, 1, 0, 0, 0, 0, 1},
	Right:    {0, 1, 0, -1, 0, 1, 0, 0, 1},
	Inverted: {-1, 0, 1, 0, -1, 1, 0, 0, 1},
}

func init() {
	for _, o := range Concrete {
		m, ok := transforms[o]
		if !ok {
			panic(fmt.Sprintf("orientation: no transform for %s", o))
		}
		if err := ValidateMatrix(m); err != nil {
			panic(fmt.Sprintf("orientation: transform for %s: %v", o, err))
		}
	}
}

// Transform returns the fixed matrix for a concrete orientation.
func Transform(o Orientation) (Matrix, bool) {
	m, ok := transforms[o]
	return m, ok
}

// ValidateMatrix checks that m is a non-degenerate affine axis
// permutation/reflection: entries in {-1,0,1}, bottom row 0 0 1, exactly one
// nonzero per row and column of the upper-left 2x2 block, and |det| = 1.
func ValidateMatrix(m Matrix) error {
	for i, v := range m {
		if v < -1 || v > 1 {
			return fmt.Errorf("entry %d out of range: %d", i, v)
		}
	}
	if m[6] != 0 || m[7] != 0 || m[8] != 1 {
		return fmt.Errorf("bottom row must be 0 0 1, got %d %d %d", m[6], m[7], m[8])
	}

	linear := mat.NewDense(2, 2, []float64{
		float64(m[0]), float64(m[1]),
		float64(m[3]), float64(m[4]),
	})
	for i := 0; i < 2; i++ {
		if countNonZero(mat.Row(nil, i, linear)) != 1 {
			return fmt.Errorf("row %d of linear block must have one nonzero entry", i)
		}
		if countNonZero(mat.Col(nil, i, linear)) != 1 {
			return fmt.Errorf("column %d of linear block must have one nonzero entry", i)
		}
	}

	// With a unit bottom row the determinant equals the linear block's.
	det := mat.Det(m.Dense())
	if math.Abs(math.Abs(det)-1) > 1e-9 {
		return fmt.Errorf("determinant must be +/-1, got %g", det)
	}
	return nil
}

func countNonZero(v []float64) int {
	n := 0
	for _, x := range v {
		if x != 0 {
			n++
		}
	}
	return n
}
