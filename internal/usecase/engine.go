package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"meetcap/internal/domain"
	"meetcap/internal/ports"
)

var (
	// ErrAlreadyActive reports a Join against a meeting with a live session.
	ErrAlreadyActive = errors.New("meeting already has an active capture session")
	// ErrNotActive reports an operation against an unknown meeting id.
	ErrNotActive = errors.New("no active capture session for meeting")
	// ErrNoFrames reports an orphan whose frames directory holds nothing
	// recoverable.
	ErrNoFrames = errors.New("no frames on disk to recover")
	// ErrUnsupportedPlatform reports a meeting URL no adapter handles.
	ErrUnsupportedPlatform = errors.New("unsupported meeting platform")
)

// PlatformResolver classifies meeting URLs and hands out adapters.
type PlatformResolver interface {
	Detect(url string) domain.Platform
	Adapter(p domain.Platform) (ports.PlatformAdapter, bool)
}

// Config controls capture cadence and artifact placement.
type Config struct {
	RecordingsRoot  string
	BotName         string
	Audio           ports.AudioConfig
	FrameInterval   time.Duration
	CaptionInterval time.Duration
	Headless        bool
}

// Engine is the public capture façade. All calls are synchronous: they
// return once the described side effects and result are ready.
type Engine struct {
	cfg       Config
	platforms PlatformResolver
	browsers  ports.BrowserFactory
	audio     ports.AudioCapture
	encoder   ports.Encoder
	registry  *registry
	store     *store
	log       *logrus.Entry
}

func NewEngine(
	cfg Config,
	platforms PlatformResolver,
	browsers ports.BrowserFactory,
	audio ports.AudioCapture,
	encoder ports.Encoder,
	log *logrus.Entry,
) *Engine {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 500 * time.Millisecond
	}
	if cfg.CaptionInterval <= 0 {
		cfg.CaptionInterval = 2 * time.Second
	}
	if cfg.RecordingsRoot == "" {
		cfg.RecordingsRoot = "recordings"
	}
	return &Engine{
		cfg:       cfg,
		platforms: platforms,
		browsers:  browsers,
		audio:     audio,
		encoder:   encoder,
		registry:  newRegistry(),
		store:     newStore(cfg.RecordingsRoot),
		log:       log,
	}
}

// Join drives a headless browser into the meeting and starts the recording
// pipeline. At most one live session may exist per meeting id.
func (e *Engine) Join(ctx context.Context, meetingID, meetingURL string) (domain.JoinResult, error) {
	platform := e.platforms.Detect(meetingURL)
	adapter, ok := e.platforms.Adapter(platform)
	if !ok {
		return domain.JoinResult{Platform: platform}, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, meetingURL)
	}
	if _, exists := e.registry.get(meetingID); exists {
		return domain.JoinResult{Platform: platform}, ErrAlreadyActive
	}

	sessionID := uuid.NewString()
	log := e.log.WithFields(logrus.Fields{
		"meeting_id": meetingID,
		"session_id": sessionID,
		"platform":   platform,
	})
	log.Info("joining meeting")

	driver, err := e.browsers.Launch(ctx, ports.LaunchOptions{
		Origin:         originOf(meetingURL),
		Headless:       e.cfg.Headless,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
	})
	if err != nil {
		return domain.JoinResult{Platform: platform}, fmt.Errorf("launch browser: %w", err)
	}

	s := newSession(meetingID, sessionID, platform, e.cfg.RecordingsRoot, driver, adapter)
	if err := os.MkdirAll(s.FramesDir, 0o755); err != nil {
		_ = driver.Close()
		return domain.JoinResult{Platform: platform}, fmt.Errorf("create frames dir: %w", err)
	}

	if !e.registry.insertUnique(s) {
		_ = driver.Close()
		return domain.JoinResult{Platform: platform}, ErrAlreadyActive
	}
	if err := e.store.put(s.persisted()); err != nil {
		log.WithError(err).Warn("session persistence failed")
	}

	outcome, err := adapter.Join(ctx, driver, meetingURL, e.cfg.BotName)
	if err != nil || outcome != domain.JoinSucceeded {
		e.discard(s)
		if err != nil {
			log.WithError(err).Error("join failed")
			return domain.JoinResult{Platform: platform, Error: err.Error()}, nil
		}
		log.WithField("outcome", outcome).Warn("join did not reach the meeting")
		return domain.JoinResult{Platform: platform, Error: joinErrorName(outcome)}, nil
	}

	s.setState(domain.SessionStateInMeeting)
	adapter.EnableCaptions(ctx, driver)

	// Recorders outlive the Join call, so they run under a session-scoped
	// context rather than the caller's.
	s.runCtx, s.cancel = context.WithCancel(context.Background())
	e.startRecording(s, log)
	e.startCaptions(s, log)
	s.setState(domain.SessionStateRecording)
	log.Info("recording started")

	return domain.JoinResult{
		Success:          true,
		SessionID:        sessionID,
		Platform:         platform,
		RecordingStarted: true,
	}, nil
}

// Leave stops the pipeline, encodes the artifact bundle, and clears the
// session. When the meeting id has no live session but a persisted orphan
// exists, the orphan is recovered instead.
func (e *Engine) Leave(ctx context.Context, meetingID string) (domain.LeaveResult, error) {
	s, ok := e.registry.get(meetingID)
	if !ok {
		if rec, found := e.store.get(meetingID); found {
			return e.RecoverOrphan(ctx, rec)
		}
		return domain.LeaveResult{}, ErrNotActive
	}

	log := e.log.WithFields(logrus.Fields{"meeting_id": meetingID, "session_id": s.SessionID})
	log.Info("leaving meeting")
	s.setState(domain.SessionStateEnding)

	e.stopCaptions(s)

	if path, err := e.captureScreenshot(ctx, s); err != nil {
		log.WithError(err).Warn("final screenshot failed")
	} else {
		log.WithField("path", path).Debug("final screenshot captured")
	}

	e.stopRecording(s)
	if s.cancel != nil {
		s.cancel()
	}
	if err := s.driver.Close(); err != nil {
		log.WithError(err).Warn("browser close failed")
	}

	segments := s.segments()
	transcript := formatTranscript(segments)
	frameCount := s.getFrameCount()

	videoPath := ""
	encoded := true
	if frameCount >= 1 {
		err := e.encoder.Encode(ctx, ports.EncodeRequest{
			FramesDir: s.FramesDir,
			AudioPath: s.AudioPath,
			VideoPath: s.VideoPath,
			FrameRate: 2,
		})
		if err != nil {
			// Frames stay on disk and the persistence entry stays put
			// so a later recover can still produce a video.
			encoded = false
			log.WithError(err).Error("encoding failed; frames preserved for recovery")
		} else {
			videoPath = s.VideoPath
		}
	}

	duration := time.Since(s.StartedAt).Seconds()
	e.registry.remove(meetingID)
	if encoded {
		if err := e.store.remove(meetingID); err != nil {
			log.WithError(err).Warn("persistence cleanup failed")
		}
	}
	s.setState(domain.SessionStateEnded)
	log.WithField("duration_s", duration).Info("session ended")

	status := s.snapshot()
	return domain.LeaveResult{
		Success:            true,
		DurationSeconds:    duration,
		Transcript:         transcript,
		TranscriptSegments: segments,
		VideoPath:          videoPath,
		AudioPath:          audioPathIfPresent(s.AudioPath),
		Screenshots:        status.Screenshots,
		FrameCount:         frameCount,
	}, nil
}

// Status snapshots a session. Unknown meeting ids report not_active rather
// than an error.
func (e *Engine) Status(meetingID string) domain.Status {
	s, ok := e.registry.get(meetingID)
	if !ok {
		return domain.Status{Status: "not_active"}
	}
	return s.snapshot()
}

// Screenshot captures the current page into an ad-hoc screenshot artifact.
func (e *Engine) Screenshot(ctx context.Context, meetingID string) (string, error) {
	s, ok := e.registry.get(meetingID)
	if !ok {
		return "", ErrNotActive
	}
	return e.captureScreenshot(ctx, s)
}

// ToggleRecording flips frame+audio capture and reports the new state.
// Caption scraping keeps running while paused.
func (e *Engine) ToggleRecording(ctx context.Context, meetingID string) (bool, error) {
	s, ok := e.registry.get(meetingID)
	if !ok {
		return false, ErrNotActive
	}
	log := e.log.WithFields(logrus.Fields{"meeting_id": meetingID, "session_id": s.SessionID})

	if s.recording() {
		e.stopRecording(s)
		s.setState(domain.SessionStatePaused)
		log.Info("recording paused")
		return false, nil
	}

	e.startRecording(s, log)
	s.setState(domain.SessionStateRecording)
	log.Info("recording resumed")
	return true, nil
}

// RecoverOrphan reconstitutes a playable recording from a persisted session
// whose owning process died. There is no live browser to tear down; only
// what the filesystem proves is recovered.
func (e *Engine) RecoverOrphan(ctx context.Context, rec domain.PersistedSession) (domain.LeaveResult, error) {
	log := e.log.WithFields(logrus.Fields{"meeting_id": rec.MeetingID, "session_id": rec.SessionID})
	log.Info("recovering orphaned session")

	frameCount := countFrames(rec.FramesDir)
	if frameCount == 0 {
		// Nothing will ever make this record recoverable; drop it.
		_ = e.store.remove(rec.MeetingID)
		return domain.LeaveResult{}, fmt.Errorf("%w: %s", ErrNoFrames, rec.FramesDir)
	}

	videoPath := filepath.Join(e.cfg.RecordingsRoot, rec.SessionID+"_video.mp4")
	err := e.encoder.Encode(ctx, ports.EncodeRequest{
		FramesDir: rec.FramesDir,
		VideoPath: videoPath,
		FrameRate: 2,
	})
	if err != nil {
		return domain.LeaveResult{}, fmt.Errorf("recover encode: %w", err)
	}

	if err := e.store.remove(rec.MeetingID); err != nil {
		log.WithError(err).Warn("persistence cleanup failed")
	}
	log.WithField("frames", frameCount).Info("orphan recovered")

	return domain.LeaveResult{
		Success:         true,
		Recovered:       true,
		DurationSeconds: float64(frameCount) / 2,
		Transcript:      recoveredTranscript,
		VideoPath:       videoPath,
		FrameCount:      frameCount,
		Screenshots:     []string{},
	}, nil
}

// Orphans lists persisted sessions awaiting recovery.
func (e *Engine) Orphans() []domain.PersistedSession {
	return e.store.list()
}

// Shutdown stops every session's timers and subprocesses synchronously and
// releases the browsers. Persistence records are kept so the sessions can be
// recovered on the next start.
func (e *Engine) Shutdown() {
	for _, s := range e.registry.all() {
		e.stopCaptions(s)
		e.stopRecording(s)
		if s.cancel != nil {
			s.cancel()
		}
		_ = s.driver.Close()
		e.registry.remove(s.MeetingID)
	}
}

// discard tears down a session that never reached the meeting.
func (e *Engine) discard(s *Session) {
	_ = s.driver.Close()
	e.registry.remove(s.MeetingID)
	if err := e.store.remove(s.MeetingID); err != nil {
		e.log.WithError(err).Warn("persistence cleanup failed")
	}
	s.setState(domain.SessionStateErrored)
}

// startRecording launches the frame pump and the audio subprocess. Audio
// device trouble is non-terminal: the session continues caption-only.
func (e *Engine) startRecording(s *Session, log *logrus.Entry) {
	audio, err := e.audio.Start(s.runCtx, s.AudioPath, e.cfg.Audio)
	if err != nil {
		log.WithError(err).Warn("audio capture unavailable; continuing without audio")
		audio = nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})

	s.mu.Lock()
	s.isRecording = true
	s.audio = audio
	s.frameStop = stop
	s.frameDone = done
	s.mu.Unlock()

	go runFrameRecorder(s.runCtx, s, e.cfg.FrameInterval, log, stop, done)
}

func (e *Engine) stopRecording(s *Session) {
	s.mu.Lock()
	stop, done := s.frameStop, s.frameDone
	audio := s.audio
	s.frameStop, s.frameDone = nil, nil
	s.isRecording = false
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	if audio != nil {
		if err := audio.Stop(); err != nil {
			e.log.WithError(err).Warn("audio stop reported an error")
		}
	}
}

func (e *Engine) startCaptions(s *Session, log *logrus.Entry) {
	stop := make(chan struct{})
	done := make(chan struct{})

	s.mu.Lock()
	s.captionStop = stop
	s.captionDone = done
	s.mu.Unlock()

	go runCaptionScraper(s.runCtx, s, e.cfg.CaptionInterval, log, stop, done)
}

func (e *Engine) stopCaptions(s *Session) {
	s.mu.Lock()
	stop, done := s.captionStop, s.captionDone
	s.captionStop, s.captionDone = nil, nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}

func (e *Engine) captureScreenshot(ctx context.Context, s *Session) (string, error) {
	path := filepath.Join(
		e.cfg.RecordingsRoot,
		fmt.Sprintf("%s_screenshot_%d.png", s.SessionID, time.Now().UnixMilli()),
	)
	if err := s.driver.Screenshot(ctx, path); err != nil {
		return "", err
	}
	s.addScreenshot(path)
	return path, nil
}

func joinErrorName(outcome domain.JoinOutcome) string {
	switch outcome {
	case domain.JoinTimedOut:
		return "JoinTimedOut"
	case domain.JoinRejected:
		return "JoinRejected"
	default:
		return "JoinFailed"
	}
}

func originOf(meetingURL string) string {
	u, err := url.Parse(meetingURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func countFrames(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, "frame_") && strings.HasSuffix(name, ".png") {
			count++
		}
	}
	return count
}

func audioPathIfPresent(path string) string {
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
