package models

// CommandKind is a logical operator command accepted by the dispatcher.
type CommandKind string

const (
	CommandStart        CommandKind = "start"
	CommandStop         CommandKind = "stop"
	CommandPause        CommandKind = "pause"
	CommandResume       CommandKind = "resume"
	CommandReturnToDock CommandKind = "return_to_dock"
)

// CommandAck is the transport-level acknowledgement for a sent command.
type CommandAck struct {
	MessageID string         `json:"id"`
	Code      int            `json:"code"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// CommandResult is returned to the caller of the dispatcher.
type CommandResult struct {
	DeviceName  string `json:"device_name"`
	CommandSent string `json:"command_sent"`
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
}
