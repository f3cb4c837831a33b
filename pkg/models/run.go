package models

import "time"

type RunState string

const (
	RunPending   RunState = "Pending"
	RunRunning   RunState = "Running"
	RunFailed    RunState = "Failed"
	RunCompleted RunState = "Completed"
)

type RunRecord struct {
	ID           string      `json:"id"`
	ManifestPath string      `json:"manifestPath"`
	Channel      Channel     `json:"channel"`
	State        RunState    `json:"state"`
	CurrentPhase string      `json:"currentPhase,omitempty"`
	CommandsRun  int         `json:"commandsRun"`
	CommandTotal int         `json:"commandTotal"`
	CacheHints   []CacheHint `json:"cacheHints,omitempty"`
	Error        string      `json:"error,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
	StartedAt    *time.Time  `json:"startedAt,omitempty"`
	CompletedAt  *time.Time  `json:"completedAt,omitempty"`
}

type CommandLog struct {
	Timestamp time.Time `json:"timestamp"`
	Phase     string    `json:"phase"`
	Sequence  int       `json:"sequence"`
	Command   string    `json:"command"`
	Output    string    `json:"output,omitempty"`
	ExitCode  int       `json:"exitCode"`
	LatencyMs int64     `json:"latencyMs"`
}

// CacheHint records a directory the hosting environment may persist
// between runs. Informational only; nothing in the runner acts on it.
type CacheHint struct {
	Path     string `json:"path"`
	Resolved string `json:"resolved"`
	Exists   bool   `json:"exists"`
	Bytes    int64  `json:"bytes"`
}
