package usecase

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// runFrameRecorder captures one viewport screenshot per tick into the
// session's frames directory. A failed capture skips the tick without
// retrying; the frame index stays dense because the counter only advances
// on success.
func runFrameRecorder(
	ctx context.Context,
	s *Session,
	interval time.Duration,
	log *logrus.Entry,
	stop <-chan struct{},
	done chan<- struct{},
) {
	defer close(done)

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

		path := s.nextFramePath()
		if err := s.driver.Screenshot(ctx, path); err != nil {
			log.WithError(err).Warn("frame capture skipped")
			continue
		}
		s.commitFrame()
	}
}
