package docker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docker/docker/api/types/events"
	"github.com/docker/docker/api/types/filters"

	"github.com/bargehq/barge/internal/core/domain"
	"github.com/bargehq/barge/internal/core/plan"
)

// =============================================================================
// Engine Event Stream
// =============================================================================

// EngineEvent is a container lifecycle event translated from the engine's
// event stream into the stack event taxonomy.
type EngineEvent struct {
	Type        domain.StackEventType
	Stack       string
	StackID     string
	Service     string
	ContainerID string
	Detail      string
	Time        time.Time
}

// StreamEvents subscribes to container events matching the given label
// filters. Events the taxonomy does not cover are dropped. The returned
// channels close when ctx is cancelled or the engine stream ends; a
// terminal stream error is delivered on the error channel first.
func (d *DockerClient) StreamEvents(ctx context.Context, labelFilters map[string]string) (<-chan EngineEvent, <-chan error) {
	f := filters.NewArgs()
	f.Add("type", "container")
	for k, v := range labelFilters {
		f.Add("label", fmt.Sprintf("%s=%s", k, v))
	}

	msgs, errs := d.cli.Events(ctx, events.ListOptions{Filters: f})

	out := make(chan EngineEvent)
	errOut := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errOut)
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-errs:
				if ok && err != nil && !errors.Is(err, context.Canceled) {
					errOut <- NewDockerError("StreamEvents", "", "", err.Error(), err)
				}
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				ev, ok := translateMessage(msg)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, errOut
}

// translateMessage converts an engine event into an EngineEvent. Returns
// false for actions outside the stack event taxonomy (exec, attach, ...).
func translateMessage(msg events.Message) (EngineEvent, bool) {
	eventType, detail, ok := translateAction(string(msg.Action))
	if !ok {
		return EngineEvent{}, false
	}

	attrs := msg.Actor.Attributes
	if eventType == domain.EventContainerDied {
		if code, found := attrs["exitCode"]; found {
			detail = "exit code " + code
		}
	}

	ts := time.Unix(msg.Time, 0)
	if msg.TimeNano > 0 {
		ts = time.Unix(0, msg.TimeNano)
	}

	return EngineEvent{
		Type:        eventType,
		Stack:       attrs[plan.LabelStack],
		StackID:     attrs[plan.LabelStackID],
		Service:     attrs[plan.LabelService],
		ContainerID: msg.Actor.ID,
		Detail:      detail,
		Time:        ts,
	}, true
}

// translateAction maps an engine action to a stack event type. Health
// actions arrive as "health_status: healthy", so matching is on the part
// before the colon.
func translateAction(action string) (domain.StackEventType, string, bool) {
	name, detail, _ := strings.Cut(action, ": ")

	switch name {
	case "create":
		return domain.EventContainerCreated, "", true
	case "start":
		return domain.EventContainerStarted, "", true
	case "restart":
		return domain.EventContainerRestarted, "", true
	case "stop":
		return domain.EventContainerStopped, "", true
	case "die":
		return domain.EventContainerDied, "", true
	case "oom":
		return domain.EventContainerOOM, "", true
	case "health_status":
		if detail == "healthy" {
			return domain.EventContainerHealthy, detail, true
		}
		return domain.EventContainerUnhealthy, detail, true
	}

	return "", "", false
}
