package protocol

// Service paths, relative to the configured origin.
const (
	// WebSocketPath is the persistent connection endpoint.
	WebSocketPath = "/ws"

	// TasksPath is the task collection endpoint.
	TasksPath = "/api/tasks"

	// StateDir is the user-level state directory (e.g., ~/.concierge).
	StateDir = ".concierge"
)
