package domain

// AlertPriority is the urgency hint passed to the speech sink.
type AlertPriority string

const (
	PriorityMedium AlertPriority = "medium"
	PriorityHigh   AlertPriority = "high"
)

// Speaker is the voice/audio output sink. Implementations are fire-and-forget;
// the caller never waits on rendering.
type Speaker interface {
	Speak(message string, priority AlertPriority)
}

// SMSSender forwards a message off-vehicle. A false return means the gateway
// rejected or dropped the message; callers log and move on.
type SMSSender interface {
	SendSMS(phoneNumber, message string) bool
}
