package report

import "strconv"

var sizeUnits = []string{"bytes", "kB", "MB", "GB"}

// FormatSize renders a byte count with base-1000 units and three significant
// figures: 0 → "0 bytes", 1500000 → "1.5 MB". Sizes beyond the last unit stay
// in GB.
func FormatSize(size int64) string {
	if size <= 0 {
		return "0 bytes"
	}

	index := 0
	div := int64(1)
	for index < len(sizeUnits)-1 && size/div >= 1000 {
		div *= 1000
		index++
	}

	v := float64(size) / float64(div)
	// Round to three significant figures, then drop the exponent and any
	// trailing zeros.
	rounded, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'g', 3, 64), 64)
	return strconv.FormatFloat(rounded, 'f', -1, 64) + " " + sizeUnits[index]
}
