package domain

import "time"

// Platform identifies the conferencing provider behind a meeting URL.
type Platform string

const (
	PlatformZoom       Platform = "zoom"
	PlatformGoogleMeet Platform = "google_meet"
	PlatformTeams      Platform = "teams"
	PlatformWebex      Platform = "webex"
	PlatformUnknown    Platform = "unknown"
)

// SessionState models the capture lifecycle of a single meeting session.
type SessionState string

const (
	SessionStateJoining   SessionState = "joining"
	SessionStateInMeeting SessionState = "in_meeting"
	SessionStateRecording SessionState = "recording"
	SessionStatePaused    SessionState = "paused"
	SessionStateEnding    SessionState = "ending"
	SessionStateEnded     SessionState = "ended"
	SessionStateErrored   SessionState = "errored"
)

// JoinOutcome is the structured result of a platform adapter's join attempt.
type JoinOutcome string

const (
	JoinSucceeded JoinOutcome = "join_succeeded"
	JoinTimedOut  JoinOutcome = "join_timed_out"
	JoinRejected  JoinOutcome = "join_rejected"
	JoinFailed    JoinOutcome = "join_failed"
)

// AdmissionState classifies the page during the admission poll.
type AdmissionState string

const (
	AdmissionWaiting   AdmissionState = "waiting"
	AdmissionInMeeting AdmissionState = "in_meeting"
	AdmissionPrejoin   AdmissionState = "prejoin"
	AdmissionRejected  AdmissionState = "rejected"
	AdmissionUnknown   AdmissionState = "unknown"
)

// ErrorCode identifies non-fatal and fatal capture errors.
type ErrorCode string

const (
	ErrorCodeConfiguration ErrorCode = "configuration"
	ErrorCodeAlreadyActive ErrorCode = "already_active"
	ErrorCodeJoinTimedOut  ErrorCode = "join_timed_out"
	ErrorCodeJoinRejected  ErrorCode = "join_rejected"
	ErrorCodeDriver        ErrorCode = "driver_transient"
	ErrorCodeAudio         ErrorCode = "audio_unavailable"
	ErrorCodeEncoder       ErrorCode = "encoder_failure"
	ErrorCodeNotActive     ErrorCode = "not_active"
)

// CaptionCandidate is one raw utterance scraped from the page.
type CaptionCandidate struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// CaptionSegment is an appended transcript entry.
type CaptionSegment struct {
	Speaker     string  `json:"speaker"`
	Text        string  `json:"text"`
	TimestampMS int64   `json:"timestamp_ms"`
	Confidence  float64 `json:"confidence"`
}

// FormattedSegment is a caption segment with a rendered timestamp, as
// returned by Status.
type FormattedSegment struct {
	Timestamp string `json:"timestamp"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
}

// JoinResult is returned by CaptureEngine.Join.
type JoinResult struct {
	Success          bool     `json:"success"`
	SessionID        string   `json:"session_id,omitempty"`
	Platform         Platform `json:"platform"`
	RecordingStarted bool     `json:"recording_started"`
	Error            string   `json:"error,omitempty"`
}

// LeaveResult is returned by CaptureEngine.Leave and RecoverOrphan.
type LeaveResult struct {
	Success            bool             `json:"success"`
	DurationSeconds    float64          `json:"duration_seconds"`
	Transcript         string           `json:"transcript"`
	TranscriptSegments []CaptionSegment `json:"transcript_segments"`
	VideoPath          string           `json:"video_path,omitempty"`
	AudioPath          string           `json:"audio_path,omitempty"`
	Screenshots        []string         `json:"screenshots"`
	FrameCount         int              `json:"frame_count"`
	Recovered          bool             `json:"recovered,omitempty"`
}

// Status is a point-in-time snapshot of a session.
type Status struct {
	Status         string             `json:"status"`
	SessionID      string             `json:"session_id,omitempty"`
	Platform       Platform           `json:"platform,omitempty"`
	State          SessionState       `json:"state,omitempty"`
	IsRecording    bool               `json:"is_recording"`
	StartedAt      time.Time          `json:"started_at,omitempty"`
	FrameCount     int                `json:"frame_count"`
	SegmentCount   int                `json:"segment_count"`
	RecentSegments []FormattedSegment `json:"recent_segments,omitempty"`
	Screenshots    []string           `json:"screenshots,omitempty"`
}

// PersistedSession is the on-disk record used for crash recovery.
type PersistedSession struct {
	MeetingID  string    `json:"meeting_id"`
	SessionID  string    `json:"session_id"`
	Platform   Platform  `json:"platform"`
	FramesDir  string    `json:"frames_dir"`
	StartedAt  time.Time `json:"started_at"`
	FrameCount int       `json:"frame_count"`
}
