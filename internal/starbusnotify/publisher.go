// Package starbusnotify fans a state change out to whichever live-event
// transports are configured (NATS, WebSocket), so the HTTP layer does not
// need to know about either.
package starbusnotify

import (
	"fmt"
	"log"
	"time"

	"github.com/starbus/coordinator/internal/nats"
	"github.com/starbus/coordinator/internal/notifications"
)

// NATSPublisher publishes task state changes to an embedded NATS server on
// the subject pattern nats.SubjectStarbusTaskState.
type NATSPublisher struct {
	client *nats.Client
}

// NewNATSPublisher wraps an already-connected client.
func NewNATSPublisher(client *nats.Client) *NATSPublisher {
	return &NATSPublisher{client: client}
}

// NotifyStateChange implements starbushttp.StateNotifier.
func (p *NATSPublisher) NotifyStateChange(taskID string, status string) {
	if p == nil || p.client == nil {
		return
	}
	subject := fmt.Sprintf(nats.SubjectStarbusTaskState, taskID)
	msg := nats.StarbusStateMessage{TaskID: taskID, Status: status, Timestamp: time.Now()}
	if err := p.client.PublishJSON(subject, msg); err != nil {
		log.Printf("[STARBUS] failed to publish state change for %s: %v", taskID, err)
	}
}

// DesktopNotifier raises a desktop toast whenever a task lands in
// BLOCKED_HUMAN, since that is the one state that needs a person to act.
type DesktopNotifier struct {
	manager *notifications.Manager
}

// NewDesktopNotifier wraps an already-configured notification manager.
func NewDesktopNotifier(manager *notifications.Manager) *DesktopNotifier {
	return &DesktopNotifier{manager: manager}
}

// NotifyStateChange implements starbushttp.StateNotifier.
func (d *DesktopNotifier) NotifyStateChange(taskID string, status string) {
	if d == nil || d.manager == nil || !d.manager.IsEnabled() || status != "BLOCKED_HUMAN" {
		return
	}
	if err := d.manager.NotifySupervisorNeedsInput(fmt.Sprintf("task %s needs a human decision", taskID)); err != nil {
		log.Printf("[STARBUS] desktop notification failed for %s: %v", taskID, err)
	}
}

// Fanout broadcasts a single NotifyStateChange call to every configured
// notifier. A nil entry is skipped, so callers can pass an optional
// notifier without a branch at the call site.
type Fanout struct {
	Notifiers []interface {
		NotifyStateChange(taskID string, status string)
	}
}

// NotifyStateChange implements starbushttp.StateNotifier.
func (f Fanout) NotifyStateChange(taskID string, status string) {
	for _, n := range f.Notifiers {
		if n != nil {
			n.NotifyStateChange(taskID, status)
		}
	}
}
