package breakout

import "strconv"

// ProbabilityBin returns the folder label for prob: the first bin whose
// threshold (bin/100) prob reaches, or the last bin when none does. Bins are
// expected in descending order. No bins yields "", a flat layout.
func ProbabilityBin(prob float64, bins []int) string {
	if len(bins) == 0 {
		return ""
	}
	for _, bin := range bins {
		if prob >= float64(bin)/100 {
			return strconv.Itoa(bin)
		}
	}
	return strconv.Itoa(bins[len(bins)-1])
}
