package generation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/appforge/internal/notify"
	"github.com/p-blackswan/appforge/internal/project"
	"github.com/p-blackswan/appforge/internal/specialist"
)

// runObserver mirrors engine progress into the project record and the hub.
type runObserver struct {
	svc       *Service
	ctx       context.Context
	projectID string
	progress  int
	logger    zerolog.Logger
}

func (o *runObserver) StageStarted(stage, platform string) {
	msg := "Starting " + stage
	if platform != "" {
		msg = fmt.Sprintf("Starting %s (%s)", stage, platform)
	}
	o.svc.hub.Broadcast(o.projectID, notify.AgentUpdate(o.projectID, stage, project.StatusInProgress, msg))
}

func (o *runObserver) StageFinished(res specialist.StageResult, progress int) {
	o.progress = progress
	if _, err := o.svc.projects.ApplyState(o.ctx, o.projectID, project.StateUpdate{
		Progress: project.Int(progress),
	}); err != nil {
		o.logger.Warn().Err(err).Msg("failed to record progress")
	}

	msg := res.Stage + " " + res.Status
	if !res.Completed() {
		msg = fmt.Sprintf("%s failed: %s", res.Stage, res.Result)
	}
	o.svc.hub.Broadcast(o.projectID, notify.StatusUpdate(o.projectID, project.StatusInProgress, progress))
	o.svc.hub.Broadcast(o.projectID, notify.AgentUpdate(o.projectID, string(res.Kind), res.Status, msg))
}

func (o *runObserver) Log(msg string) {
	if _, err := o.svc.projects.AppendLog(o.ctx, o.projectID, msg); err != nil {
		o.logger.Warn().Err(err).Msg("failed to append log")
	}
	o.svc.hub.Broadcast(o.projectID, notify.Log(o.projectID, msg))
}
