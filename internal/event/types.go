package event

import "time"

type EventType string

const (
	// Agent lifecycle
	EventAgentConnecting EventType = "agent.connecting"
	EventAgentOnline     EventType = "agent.online"
	EventAgentOffline    EventType = "agent.offline"

	// Retention verdicts
	EventVerdict EventType = "retention.verdict"

	// Queue
	EventItemEnqueued  EventType = "item.enqueued"
	EventItemAssigned  EventType = "item.assigned"
	EventItemCompleted EventType = "item.completed"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

type AgentEvent struct {
	Agent string
	Cause string
}

type VerdictEvent struct {
	Agent     string
	Verdict   string
	DemandFor time.Duration
	IdleFor   time.Duration
	Recheck   time.Duration
	Conflicts []string
}

type ItemEvent struct {
	ItemID string
	Agent  string
	Labels []string
}
