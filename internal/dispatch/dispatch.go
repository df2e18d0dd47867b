// internal/dispatch/dispatch.go
package dispatch

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/marousta/njmpu-api/internal/events"
	"github.com/marousta/njmpu-api/internal/models"
	"github.com/marousta/njmpu-api/internal/registry"
)

// Router resolves a target shape into concrete sends through the connection
// registry. Every dispatch logs its delivery count; zero deliveries against
// a non-empty target set is an anomaly worth flagging, since sends to a
// legitimately disconnected user should have short-circuited earlier.
type Router struct {
	reg *registry.Registry
	log *logrus.Logger
}

func NewRouter(reg *registry.Registry, log *logrus.Logger) *Router {
	return &Router{reg: reg, log: log}
}

// Broadcast sends to every connected user.
func (rt *Router) Broadcast(ev events.Event) {
	rt.deliver(rt.reg.All(), ev, nil)
}

// ToUser sends to all of one user's connections.
func (rt *Router) ToUser(userID uuid.UUID, ev events.Event) {
	rt.deliver(rt.reg.Connections(userID), ev, nil)
}

// ToConns sends to an explicit connection list, e.g. the exactly-two paired
// connections of a matchmaking announcement.
func (rt *Router) ToConns(conns []*models.Connection, ev events.Event) {
	rt.deliver(conns, ev, nil)
}

// ToConnsExcept sends to a connection list minus an ignore-list of
// connection ids, used to avoid echoing an action back to its own actor.
func (rt *Router) ToConnsExcept(conns []*models.Connection, ev events.Event, ignore ...uuid.UUID) {
	skip := make(map[uuid.UUID]bool, len(ignore))
	for _, id := range ignore {
		skip[id] = true
	}
	rt.deliver(conns, ev, skip)
}

func (rt *Router) deliver(conns []*models.Connection, ev events.Event, skip map[uuid.UUID]bool) {
	targets := 0
	delivered := 0
	for _, c := range conns {
		if c == nil || skip[c.ID] {
			continue
		}
		targets++
		if rt.reg.Send(c, ev) {
			delivered++
		}
	}

	entry := rt.log.WithFields(logrus.Fields{
		"namespace": ev.Namespace,
		"action":    ev.Action,
		"targets":   targets,
		"delivered": delivered,
	})
	if targets > 0 && delivered == 0 {
		entry.Warn("Dispatch delivered nothing to a non-empty target set")
		return
	}
	entry.Debug("Dispatch")
}
