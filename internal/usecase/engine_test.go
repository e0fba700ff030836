package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"meetcap/internal/domain"
	"meetcap/internal/ports"
)

func testLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func newTestEngine(t *testing.T, adapter *fakeAdapter, audio *fakeAudioCapture, encoder *fakeEncoder) (*Engine, *fakeFactory) {
	t.Helper()
	root := t.TempDir()
	factory := &fakeFactory{}
	engine := NewEngine(
		Config{
			RecordingsRoot:  root,
			BotName:         "Notetaker",
			FrameInterval:   10 * time.Millisecond,
			CaptionInterval: 10 * time.Millisecond,
		},
		&fakeResolver{adapter: adapter},
		factory,
		audio,
		encoder,
		testLog(),
	)
	return engine, factory
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestEngineJoinLeaveHappyPath(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{platform: domain.PlatformGoogleMeet, outcome: domain.JoinSucceeded}
	audio := &fakeAudioCapture{}
	encoder := &fakeEncoder{}
	engine, factory := newTestEngine(t, adapter, audio, encoder)

	result, err := engine.Join(context.Background(), "M1", "https://meet.google.com/abc-defg-hij")
	if err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if !result.Success || result.Platform != domain.PlatformGoogleMeet || !result.RecordingStarted {
		t.Fatalf("unexpected join result: %+v", result)
	}
	if !adapter.captionsEnabled {
		t.Fatalf("expected captions to be enabled after join")
	}

	if !waitUntil(t, 2*time.Second, func() bool { return engine.Status("M1").FrameCount >= 3 }) {
		t.Fatalf("frame recorder produced no frames")
	}

	leave, err := engine.Leave(context.Background(), "M1")
	if err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if !leave.Success {
		t.Fatalf("expected leave success")
	}
	if leave.FrameCount < 3 {
		t.Fatalf("expected captured frames, got %d", leave.FrameCount)
	}
	if !strings.HasSuffix(leave.VideoPath, "_video.mp4") {
		t.Fatalf("unexpected video path: %q", leave.VideoPath)
	}
	if leave.Transcript != fallbackTranscript {
		t.Fatalf("expected fallback transcript, got %q", leave.Transcript)
	}
	if leave.DurationSeconds <= 0 {
		t.Fatalf("expected positive duration")
	}

	// Frame indexing stays dense: every index up to frame_count exists.
	framesDir := encoder.lastRequest().FramesDir
	for i := 1; i <= leave.FrameCount; i++ {
		path := filepath.Join(framesDir, fmt.Sprintf("frame_%06d.png", i))
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("missing frame %d: %v", i, err)
		}
	}

	if status := engine.Status("M1"); status.Status != "not_active" {
		t.Fatalf("expected not_active after leave, got %+v", status)
	}
	if _, found := engine.store.get("M1"); found {
		t.Fatalf("persistence entry survived leave")
	}
	driver := factory.last()
	if !driver.closed() {
		t.Fatalf("browser not released on leave")
	}
	if audio.lastSession().stopCalls == 0 {
		t.Fatalf("audio subprocess not stopped on leave")
	}
}

func TestEngineJoinFailureTearsDown(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{platform: domain.PlatformZoom, outcome: domain.JoinTimedOut}
	engine, factory := newTestEngine(t, adapter, &fakeAudioCapture{}, &fakeEncoder{})

	result, err := engine.Join(context.Background(), "M2", "https://zoom.us/j/123456789")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Success || result.Error != "JoinTimedOut" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if status := engine.Status("M2"); status.Status != "not_active" {
		t.Fatalf("session survived failed join")
	}
	if _, found := engine.store.get("M2"); found {
		t.Fatalf("persistence entry survived failed join")
	}
	if !factory.last().closed() {
		t.Fatalf("browser leaked on failed join")
	}
}

func TestEngineDuplicateJoinRejected(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{platform: domain.PlatformGoogleMeet, outcome: domain.JoinSucceeded}
	engine, _ := newTestEngine(t, adapter, &fakeAudioCapture{}, &fakeEncoder{})

	if _, err := engine.Join(context.Background(), "M3", "https://meet.google.com/abc"); err != nil {
		t.Fatalf("first join failed: %v", err)
	}
	_, err := engine.Join(context.Background(), "M3", "https://meet.google.com/abc")
	if !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}

	// The original session is unaffected.
	if status := engine.Status("M3"); status.Status != "active" {
		t.Fatalf("original session lost: %+v", status)
	}
	if _, err := engine.Leave(context.Background(), "M3"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
}

func TestEngineUnsupportedPlatform(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t, nil, &fakeAudioCapture{}, &fakeEncoder{})
	_, err := engine.Join(context.Background(), "M", "https://example.com/meeting")
	if !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform, got %v", err)
	}
}

func TestEngineToggleRecordingPausesFrames(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{platform: domain.PlatformGoogleMeet, outcome: domain.JoinSucceeded}
	audio := &fakeAudioCapture{}
	engine, _ := newTestEngine(t, adapter, audio, &fakeEncoder{})

	if _, err := engine.Join(context.Background(), "M4", "https://meet.google.com/abc"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if !waitUntil(t, 2*time.Second, func() bool { return engine.Status("M4").FrameCount >= 2 }) {
		t.Fatalf("no frames before pause")
	}

	recording, err := engine.ToggleRecording(context.Background(), "M4")
	if err != nil || recording {
		t.Fatalf("expected pause, got recording=%v err=%v", recording, err)
	}
	paused := engine.Status("M4")
	if paused.IsRecording || paused.State != domain.SessionStatePaused {
		t.Fatalf("unexpected paused status: %+v", paused)
	}

	count := paused.FrameCount
	time.Sleep(60 * time.Millisecond)
	if got := engine.Status("M4").FrameCount; got != count {
		t.Fatalf("frames advanced while paused: %d -> %d", count, got)
	}

	recording, err = engine.ToggleRecording(context.Background(), "M4")
	if err != nil || !recording {
		t.Fatalf("expected resume, got recording=%v err=%v", recording, err)
	}
	if !waitUntil(t, 2*time.Second, func() bool { return engine.Status("M4").FrameCount > count }) {
		t.Fatalf("frames did not advance after resume")
	}

	if _, err := engine.Leave(context.Background(), "M4"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if len(audio.sessions()) != 2 {
		t.Fatalf("expected one audio session per recording span, got %d", len(audio.sessions()))
	}
}

func TestEngineCaptionDedupKeepsNonAdjacentRepeats(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{platform: domain.PlatformGoogleMeet, outcome: domain.JoinSucceeded}
	engine, factory := newTestEngine(t, adapter, &fakeAudioCapture{}, &fakeEncoder{})

	if _, err := engine.Join(context.Background(), "M5", "https://meet.google.com/abc"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	factory.last().queueCaptions(
		[]domain.CaptionCandidate{{Speaker: "A", Text: "hello"}},
		[]domain.CaptionCandidate{{Speaker: "A", Text: "hello"}},
		[]domain.CaptionCandidate{{Speaker: "A", Text: "world"}},
		[]domain.CaptionCandidate{{Speaker: "A", Text: "hello"}},
	)

	if !waitUntil(t, 3*time.Second, func() bool { return engine.Status("M5").SegmentCount == 3 }) {
		t.Fatalf("expected 3 segments, got %d", engine.Status("M5").SegmentCount)
	}

	leave, err := engine.Leave(context.Background(), "M5")
	if err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	texts := make([]string, 0, len(leave.TranscriptSegments))
	for _, seg := range leave.TranscriptSegments {
		texts = append(texts, seg.Text)
	}
	if strings.Join(texts, ",") != "hello,world,hello" {
		t.Fatalf("unexpected segment order: %v", texts)
	}
	for i := 1; i < len(leave.TranscriptSegments); i++ {
		if leave.TranscriptSegments[i].TimestampMS < leave.TranscriptSegments[i-1].TimestampMS {
			t.Fatalf("timestamps not monotone: %+v", leave.TranscriptSegments)
		}
	}
	if !strings.Contains(leave.Transcript, "] A: hello") {
		t.Fatalf("unexpected transcript: %q", leave.Transcript)
	}
}

func TestEngineAudioUnavailableIsNonTerminal(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{platform: domain.PlatformGoogleMeet, outcome: domain.JoinSucceeded}
	audio := &fakeAudioCapture{startErr: errors.New("no such device")}
	engine, _ := newTestEngine(t, adapter, audio, &fakeEncoder{})

	result, err := engine.Join(context.Background(), "M7", "https://meet.google.com/abc")
	if err != nil || !result.Success {
		t.Fatalf("audio failure must not fail join: %+v err=%v", result, err)
	}
	if !waitUntil(t, 2*time.Second, func() bool { return engine.Status("M7").FrameCount >= 1 }) {
		t.Fatalf("frames not captured without audio")
	}
	leave, err := engine.Leave(context.Background(), "M7")
	if err != nil || !leave.Success {
		t.Fatalf("leave failed: %v", err)
	}
	if leave.AudioPath != "" {
		t.Fatalf("expected no audio artifact, got %q", leave.AudioPath)
	}
}

func TestEngineEncoderFailurePreservesRecovery(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{platform: domain.PlatformGoogleMeet, outcome: domain.JoinSucceeded}
	encoder := &fakeEncoder{err: errors.New("ffmpeg exploded")}
	engine, _ := newTestEngine(t, adapter, &fakeAudioCapture{}, encoder)

	if _, err := engine.Join(context.Background(), "M8", "https://meet.google.com/abc"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	waitUntil(t, 2*time.Second, func() bool { return engine.Status("M8").FrameCount >= 1 })

	leave, err := engine.Leave(context.Background(), "M8")
	if err != nil {
		t.Fatalf("leave failed: %v", err)
	}
	if leave.VideoPath != "" {
		t.Fatalf("expected no video on encoder failure")
	}
	// The persisted record stays so the frames can be recovered later.
	if _, found := engine.store.get("M8"); !found {
		t.Fatalf("persistence entry dropped despite failed encode")
	}
}

func TestEngineLeaveUnknownMeeting(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t, nil, &fakeAudioCapture{}, &fakeEncoder{})
	if _, err := engine.Leave(context.Background(), "nope"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
	if _, err := engine.Screenshot(context.Background(), "nope"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
	if _, err := engine.ToggleRecording(context.Background(), "nope"); !errors.Is(err, ErrNotActive) {
		t.Fatalf("expected ErrNotActive, got %v", err)
	}
}

func TestEngineScreenshot(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{platform: domain.PlatformGoogleMeet, outcome: domain.JoinSucceeded}
	engine, _ := newTestEngine(t, adapter, &fakeAudioCapture{}, &fakeEncoder{})

	if _, err := engine.Join(context.Background(), "M9", "https://meet.google.com/abc"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	path, err := engine.Screenshot(context.Background(), "M9")
	if err != nil {
		t.Fatalf("screenshot failed: %v", err)
	}
	if !strings.Contains(path, "_screenshot_") || !strings.HasSuffix(path, ".png") {
		t.Fatalf("unexpected screenshot path: %q", path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("screenshot file missing: %v", err)
	}
	status := engine.Status("M9")
	if len(status.Screenshots) != 1 || status.Screenshots[0] != path {
		t.Fatalf("screenshot not tracked: %+v", status.Screenshots)
	}
	if _, err := engine.Leave(context.Background(), "M9"); err != nil {
		t.Fatalf("leave failed: %v", err)
	}
}

func TestEngineRecoverOrphanFromLeave(t *testing.T) {
	t.Parallel()

	encoder := &fakeEncoder{}
	engine, _ := newTestEngine(t, nil, &fakeAudioCapture{}, encoder)

	framesDir := filepath.Join(t.TempDir(), "S6_frames")
	if err := os.MkdirAll(framesDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for i := 1; i <= 20; i++ {
		path := filepath.Join(framesDir, fmt.Sprintf("frame_%06d.png", i))
		if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
			t.Fatalf("seed frame: %v", err)
		}
	}
	rec := domain.PersistedSession{
		MeetingID: "M6",
		SessionID: "S6",
		Platform:  domain.PlatformTeams,
		FramesDir: framesDir,
		StartedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := engine.store.put(rec); err != nil {
		t.Fatalf("seed persistence: %v", err)
	}

	result, err := engine.Leave(context.Background(), "M6")
	if err != nil {
		t.Fatalf("recovery leave failed: %v", err)
	}
	if !result.Recovered || !result.Success {
		t.Fatalf("expected recovered result: %+v", result)
	}
	if result.DurationSeconds != 10 {
		t.Fatalf("expected 10s duration for 20 frames at 2 fps, got %v", result.DurationSeconds)
	}
	if result.Transcript != recoveredTranscript {
		t.Fatalf("unexpected transcript: %q", result.Transcript)
	}
	if !strings.HasSuffix(result.VideoPath, "S6_video.mp4") {
		t.Fatalf("unexpected video path: %q", result.VideoPath)
	}
	req := encoder.lastRequest()
	if req.FrameRate != 2 || req.AudioPath != "" {
		t.Fatalf("expected video-only 2 fps encode, got %+v", req)
	}
	if _, found := engine.store.get("M6"); found {
		t.Fatalf("persistence entry survived recovery")
	}
}

func TestEngineRecoverOrphanRefusesEmptyDir(t *testing.T) {
	t.Parallel()

	engine, _ := newTestEngine(t, nil, &fakeAudioCapture{}, &fakeEncoder{})
	rec := domain.PersistedSession{
		MeetingID: "ME",
		SessionID: "SE",
		FramesDir: t.TempDir(),
	}
	if err := engine.store.put(rec); err != nil {
		t.Fatalf("seed persistence: %v", err)
	}
	if _, err := engine.RecoverOrphan(context.Background(), rec); !errors.Is(err, ErrNoFrames) {
		t.Fatalf("expected ErrNoFrames, got %v", err)
	}
	if _, found := engine.store.get("ME"); found {
		t.Fatalf("unrecoverable entry should be dropped")
	}
}

func TestEngineShutdownStopsSessions(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{platform: domain.PlatformGoogleMeet, outcome: domain.JoinSucceeded}
	engine, factory := newTestEngine(t, adapter, &fakeAudioCapture{}, &fakeEncoder{})

	if _, err := engine.Join(context.Background(), "MS", "https://meet.google.com/abc"); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	engine.Shutdown()

	if status := engine.Status("MS"); status.Status != "not_active" {
		t.Fatalf("session survived shutdown")
	}
	if !factory.last().closed() {
		t.Fatalf("browser survived shutdown")
	}
	// The persisted record stays for recovery on next start.
	if _, found := engine.store.get("MS"); !found {
		t.Fatalf("persistence entry dropped on shutdown")
	}
}

// --- fakes ---

type fakeResolver struct {
	adapter *fakeAdapter
}

func (r *fakeResolver) Detect(url string) domain.Platform {
	switch {
	case strings.Contains(url, "meet.google.com"):
		return domain.PlatformGoogleMeet
	case strings.Contains(url, "zoom.us"):
		return domain.PlatformZoom
	case strings.Contains(url, "teams."):
		return domain.PlatformTeams
	default:
		return domain.PlatformUnknown
	}
}

func (r *fakeResolver) Adapter(p domain.Platform) (ports.PlatformAdapter, bool) {
	if p == domain.PlatformUnknown || r.adapter == nil {
		return nil, false
	}
	return r.adapter, true
}

type fakeAdapter struct {
	platform        domain.Platform
	outcome         domain.JoinOutcome
	joinErr         error
	captionsEnabled bool
}

func (a *fakeAdapter) Platform() domain.Platform { return a.platform }

func (a *fakeAdapter) Join(_ context.Context, _ ports.BrowserDriver, _, _ string) (domain.JoinOutcome, error) {
	return a.outcome, a.joinErr
}

func (a *fakeAdapter) EnableCaptions(_ context.Context, _ ports.BrowserDriver) {
	a.captionsEnabled = true
}

func (a *fakeAdapter) CaptionScript() string { return "captions" }

type fakeFactory struct {
	mu      sync.Mutex
	drivers []*fakeDriver
}

func (f *fakeFactory) Launch(_ context.Context, _ ports.LaunchOptions) (ports.BrowserDriver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := &fakeDriver{}
	f.drivers = append(f.drivers, d)
	return d, nil
}

func (f *fakeFactory) last() *fakeDriver {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drivers[len(f.drivers)-1]
}

type fakeDriver struct {
	mu        sync.Mutex
	opened    []string
	captions  [][]domain.CaptionCandidate
	isClosed  bool
	shotFails bool
}

func (d *fakeDriver) queueCaptions(batches ...[]domain.CaptionCandidate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.captions = append(d.captions, batches...)
}

func (d *fakeDriver) Open(_ context.Context, url string, _ time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opened = append(d.opened, url)
	return nil
}

func (d *fakeDriver) Evaluate(_ context.Context, js string, out any) error {
	if js != "captions" || out == nil {
		return nil
	}
	d.mu.Lock()
	var batch []domain.CaptionCandidate
	if len(d.captions) > 0 {
		batch = d.captions[0]
		d.captions = d.captions[1:]
	}
	d.mu.Unlock()
	data, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (d *fakeDriver) FindAndClick(_ context.Context, _ string) bool   { return true }
func (d *fakeDriver) ClickByText(_ context.Context, _ ...string) bool { return true }
func (d *fakeDriver) ClickAt(_ context.Context, _, _ float64) error   { return nil }
func (d *fakeDriver) TypeText(_ context.Context, _, _ string) error   { return nil }
func (d *fakeDriver) Keyboard(_ context.Context, _ string) error      { return nil }

func (d *fakeDriver) Screenshot(_ context.Context, path string) error {
	d.mu.Lock()
	fail := d.shotFails
	d.mu.Unlock()
	if fail {
		return errors.New("screenshot failed")
	}
	return os.WriteFile(path, []byte("png"), 0o644)
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.isClosed = true
	return nil
}

func (d *fakeDriver) closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isClosed
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	startErr error
	started  []*fakeAudioSession
}

func (f *fakeAudioCapture) Start(_ context.Context, outputPath string, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	if err := os.WriteFile(outputPath, []byte("mp3"), 0o644); err != nil {
		return nil, err
	}
	s := &fakeAudioSession{}
	f.started = append(f.started, s)
	return s, nil
}

func (f *fakeAudioCapture) sessions() []*fakeAudioSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*fakeAudioSession, len(f.started))
	copy(out, f.started)
	return out
}

func (f *fakeAudioCapture) lastSession() *fakeAudioSession {
	sessions := f.sessions()
	return sessions[len(sessions)-1]
}

type fakeAudioSession struct {
	mu        sync.Mutex
	stopCalls int
}

func (s *fakeAudioSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	return nil
}

type fakeEncoder struct {
	mu       sync.Mutex
	err      error
	requests []ports.EncodeRequest
}

func (e *fakeEncoder) Encode(_ context.Context, req ports.EncodeRequest) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, req)
	if e.err != nil {
		return e.err
	}
	return os.WriteFile(req.VideoPath, []byte("mp4"), 0o644)
}

func (e *fakeEncoder) lastRequest() ports.EncodeRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requests[len(e.requests)-1]
}
