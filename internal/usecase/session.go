package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"meetcap/internal/domain"
	"meetcap/internal/ports"
)

// Session is one live capture of one meeting. It is the single owner of its
// browser, audio subprocess, and recorder goroutines; nothing outside the
// engine holds a live reference to any of them.
type Session struct {
	MeetingID string
	SessionID string
	Platform  domain.Platform
	StartedAt time.Time

	FramesDir string
	VideoPath string
	AudioPath string

	driver  ports.BrowserDriver
	adapter ports.PlatformAdapter

	// runCtx scopes every recorder goroutine started for this session;
	// cancel fires once, during teardown.
	runCtx context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       domain.SessionState
	frameCount  int
	transcript  []domain.CaptionSegment
	screenshots []string
	isRecording bool
	audio       ports.AudioSession

	// Recorder pumps, one stop/done pair per running pump.
	frameStop   chan struct{}
	frameDone   chan struct{}
	captionStop chan struct{}
	captionDone chan struct{}
}

func newSession(meetingID, sessionID string, platform domain.Platform, root string, driver ports.BrowserDriver, adapter ports.PlatformAdapter) *Session {
	return &Session{
		MeetingID: meetingID,
		SessionID: sessionID,
		Platform:  platform,
		StartedAt: time.Now(),
		FramesDir: filepath.Join(root, sessionID+"_frames"),
		VideoPath: filepath.Join(root, sessionID+"_video.mp4"),
		AudioPath: filepath.Join(root, sessionID+"_audio.mp3"),
		driver:    driver,
		adapter:   adapter,
		state:     domain.SessionStateJoining,
	}
}

func (s *Session) setState(state domain.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *Session) getState() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// nextFramePath reserves the path for the next frame without committing the
// counter; commitFrame advances it once the write succeeded.
func (s *Session) nextFramePath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return filepath.Join(s.FramesDir, fmt.Sprintf("frame_%06d.png", s.frameCount+1))
}

func (s *Session) commitFrame() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frameCount++
}

func (s *Session) getFrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameCount
}

func (s *Session) recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRecording
}

func (s *Session) addScreenshot(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screenshots = append(s.screenshots, path)
}

// appendCaption appends a segment unless its text matches the immediately
// previous one. Non-adjacent repeats are legitimate speech and kept.
// Timestamps are monotone because they are taken under the same lock.
func (s *Session) appendCaption(candidate domain.CaptionCandidate, confidence float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.transcript); n > 0 && s.transcript[n-1].Text == candidate.Text {
		return false
	}
	speaker := candidate.Speaker
	if speaker == "" {
		speaker = "Speaker"
	}
	s.transcript = append(s.transcript, domain.CaptionSegment{
		Speaker:     speaker,
		Text:        candidate.Text,
		TimestampMS: time.Since(s.StartedAt).Milliseconds(),
		Confidence:  confidence,
	})
	return true
}

func (s *Session) segments() []domain.CaptionSegment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CaptionSegment, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// snapshot copies the mutable fields out under the session lock.
func (s *Session) snapshot() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	recent := s.transcript
	if len(recent) > 20 {
		recent = recent[len(recent)-20:]
	}
	formatted := make([]domain.FormattedSegment, 0, len(recent))
	for _, seg := range recent {
		formatted = append(formatted, domain.FormattedSegment{
			Timestamp: FormatTimestamp(seg.TimestampMS),
			Speaker:   seg.Speaker,
			Text:      seg.Text,
		})
	}
	screenshots := make([]string, len(s.screenshots))
	copy(screenshots, s.screenshots)

	return domain.Status{
		Status:         "active",
		SessionID:      s.SessionID,
		Platform:       s.Platform,
		State:          s.state,
		IsRecording:    s.isRecording,
		StartedAt:      s.StartedAt,
		FrameCount:     s.frameCount,
		SegmentCount:   len(s.transcript),
		RecentSegments: formatted,
		Screenshots:    screenshots,
	}
}

func (s *Session) persisted() domain.PersistedSession {
	return domain.PersistedSession{
		MeetingID:  s.MeetingID,
		SessionID:  s.SessionID,
		Platform:   s.Platform,
		FramesDir:  s.FramesDir,
		StartedAt:  s.StartedAt.UTC(),
		FrameCount: 0,
	}
}
