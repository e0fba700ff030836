package usecase

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"meetcap/internal/domain"
)

// captionConfidence is the fixed confidence attached to scraped segments;
// the conferencing UI exposes no per-utterance score.
const captionConfidence = 0.95

// runCaptionScraper evaluates the platform's caption harvest script once per
// tick and appends fresh candidates to the session transcript. The append is
// an adjacent-dedup projection only: earlier repeated text is legitimate
// when interleaved with other speech.
func runCaptionScraper(
	ctx context.Context,
	s *Session,
	interval time.Duration,
	log *logrus.Entry,
	stop <-chan struct{},
	done chan<- struct{},
) {
	defer close(done)

	script := s.adapter.CaptionScript()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var candidates []domain.CaptionCandidate
		if err := s.driver.Evaluate(ctx, script, &candidates); err != nil {
			log.WithError(err).Debug("caption probe failed")
			continue
		}
		for _, c := range candidates {
			if c.Text == "" {
				continue
			}
			s.appendCaption(c, captionConfidence)
		}
	}
}
