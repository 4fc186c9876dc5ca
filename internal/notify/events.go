// Package notify fans project events out to live observers and posts
// completion notices to Slack.
package notify

import "time"

// Event types sent to observers.
const (
	TypeConnection   = "connection"
	TypePong         = "pong"
	TypeKeepalive    = "keepalive"
	TypeStatusUpdate = "status_update"
	TypeAgentUpdate  = "agent_update"
	TypeLog          = "log"
	TypeCompletion   = "completion"
)

// Event is one message on a project's stream.
type Event struct {
	Type        string    `json:"type"`
	ProjectID   string    `json:"project_id"`
	Timestamp   time.Time `json:"timestamp"`
	Message     string    `json:"message,omitempty"`
	Status      string    `json:"status,omitempty"`
	Progress    *int      `json:"progress,omitempty"`
	Agent       string    `json:"agent,omitempty"`
	Success     *bool     `json:"success,omitempty"`
	DownloadURL string    `json:"download_url,omitempty"`
}

func newEvent(typ, projectID string) Event {
	return Event{Type: typ, ProjectID: projectID, Timestamp: time.Now().UTC()}
}

// Connection acknowledges a new observer.
func Connection(projectID string) Event {
	ev := newEvent(TypeConnection, projectID)
	ev.Message = "Connected to project updates"
	return ev
}

func Pong(projectID string) Event      { return newEvent(TypePong, projectID) }
func Keepalive(projectID string) Event { return newEvent(TypeKeepalive, projectID) }

// StatusUpdate reports the project status and progress.
func StatusUpdate(projectID, status string, progress int) Event {
	ev := newEvent(TypeStatusUpdate, projectID)
	ev.Status = status
	ev.Progress = &progress
	return ev
}

// AgentUpdate reports a stage transition.
func AgentUpdate(projectID, agent, status, message string) Event {
	ev := newEvent(TypeAgentUpdate, projectID)
	ev.Agent = agent
	ev.Status = status
	ev.Message = message
	return ev
}

func Log(projectID, message string) Event {
	ev := newEvent(TypeLog, projectID)
	ev.Message = message
	return ev
}

// Completion ends a run. downloadURL is empty on failure.
func Completion(projectID string, success bool, message, downloadURL string) Event {
	ev := newEvent(TypeCompletion, projectID)
	ev.Success = &success
	ev.Message = message
	ev.DownloadURL = downloadURL
	return ev
}
