package usecase

import "fmt"

// FormatTimestamp renders a millisecond offset as zero-padded HH:MM:SS.
// Hours are uncapped so meetings past 24 h still render.
func FormatTimestamp(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	total := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}
