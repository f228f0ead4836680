package domain

import "time"

// EventKind classifies progress events.
type EventKind string

const (
	EventStageStarted       EventKind = "stage_started"
	EventAgentStatus        EventKind = "agent_status"
	EventArtifactProduced   EventKind = "artifact_produced"
	EventStageCompleted     EventKind = "stage_completed"
	EventSessionCompleted   EventKind = "session_completed"
	EventSessionFailed      EventKind = "session_failed"
	EventSessionCancelled   EventKind = "session_cancelled"
	EventSubscriberOverflow EventKind = "subscriber_overflow"
)

// AgentStatusPayload is the payload of an agent_status event.
type AgentStatusPayload struct {
	Role   Role   `json:"role"`
	Status string `json:"status"` // running|completed|degraded|failed
}

// FailurePayload is the payload of a session_failed event. LastStage is the
// last stage that completed, so callers can tell "no recommendation
// possible" apart from "partial analysis available".
type FailurePayload struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	LastStage Stage  `json:"last_stage"`
}

// ProgressEvent is one ordered observation of a running session. Events for
// a session are strictly ordered by Seq.
type ProgressEvent struct {
	SessionID string    `json:"session_id"`
	Seq       int64     `json:"seq"`
	Kind      EventKind `json:"kind"`
	Stage     Stage     `json:"stage,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	Artifact *Artifact           `json:"artifact,omitempty"`
	Agent    *AgentStatusPayload `json:"agent,omitempty"`
	Failure  *FailurePayload     `json:"failure,omitempty"`
	// Dropped counts events discarded for this subscriber before a
	// subscriber_overflow event.
	Dropped int `json:"dropped,omitempty"`
}
