package util

import "fmt"

// HumanReadableSize formats a byte count for display: "500 B", "1.5 KB",
// "2.5 GB".
func HumanReadableSize(size int64) string {
	const unit = 1024
	if size < unit && size > -unit {
		return fmt.Sprintf("%d B", size)
	}

	units := []string{"KB", "MB", "GB", "TB"}
	value := float64(size)
	index := -1
	for (value >= unit || value <= -unit) && index < len(units)-1 {
		value /= unit
		index++
	}
	return fmt.Sprintf("%.1f %s", value, units[index])
}
