package report

import (
	"math"
	"strconv"
)

// FormatThousands renders a pivot cell as a compact thousands string: 1500
// becomes "2K", 135000 becomes "135K". Zero and NaN render empty so the
// report reads as a sparse grid rather than a wall of zeros.
func FormatThousands(v float64) string {
	if math.IsNaN(v) || v == 0 {
		return ""
	}
	return strconv.Itoa(int(math.Round(v/1000))) + "K"
}
