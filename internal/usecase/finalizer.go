package usecase

import (
	"fmt"
	"sort"
	"strings"

	"meetcap/internal/domain"
)

const (
	// fallbackTranscript is emitted when no captions were captured.
	fallbackTranscript = "No transcript captured."
	// recoveredTranscript is the fixed transcript of a post-crash recovery.
	recoveredTranscript = "Session recovered after server restart. No live transcript available."
)

// formatTranscript renders the ordered segment list as one line per
// utterance: "[HH:MM:SS] speaker: text".
func formatTranscript(segments []domain.CaptionSegment) string {
	if len(segments) == 0 {
		return fallbackTranscript
	}

	ordered := make([]domain.CaptionSegment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TimestampMS < ordered[j].TimestampMS
	})

	var b strings.Builder
	for i, seg := range ordered {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%s] %s: %s", FormatTimestamp(seg.TimestampMS), seg.Speaker, seg.Text)
	}
	return b.String()
}
