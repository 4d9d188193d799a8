package internal

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"ftmsg/internal/protocol"
)

// handleFrame decodes and dispatches one inbound text frame.
func (c *Client) handleFrame(data []byte) error {
	m, err := protocol.Decode(data)
	if err != nil {
		return err
	}
	observeFrameReceived(m.MessageType())
	return c.dispatch(m)
}

func (c *Client) dispatch(m protocol.Message) error {
	if hb, ok := m.(*protocol.HeartbeatClient); ok {
		if !hb.Up {
			for _, id := range hb.Clients {
				c.removeConnection(id)
			}
			return nil
		}
		c.reconcile(hb.Clients)
		return nil
	}

	id := protocol.ClientOf(m)
	if id == "" {
		return fmt.Errorf("%w: %s", ErrMissingClient, m.MessageType())
	}

	if _, ok := m.(*protocol.Connect); ok {
		c.addConnection(id)
		return nil
	}

	lc := c.lookup(id)
	if lc == nil {
		return fmt.Errorf("%w: %q sent %s", ErrUnauthorizedClient, id, m.MessageType())
	}

	switch msg := m.(type) {
	case *protocol.ApplicationClient:
		payload := inboundPayload(lc, msg.Body, msg.Req)
		c.messageListeners.notify(payload)
		lc.messageListeners.notify(payload)
		return nil
	case *protocol.Lifecycle:
		lc.setPaused(msg.Paused)
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnhandledType, m.MessageType())
	}
}

// diffRoster compares the local id set against the broker's roster. Both
// results are sorted and duplicates in reported are collapsed.
func diffRoster(local, reported []string) (added, removed []string) {
	live := make(map[string]struct{}, len(reported))
	for _, id := range reported {
		live[id] = struct{}{}
	}
	known := make(map[string]struct{}, len(local))
	for _, id := range local {
		known[id] = struct{}{}
	}
	for id := range live {
		if _, ok := known[id]; !ok {
			added = append(added, id)
		}
	}
	for id := range known {
		if _, ok := live[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func (c *Client) reconcile(roster []string) {
	added, removed := diffRoster(c.connectionIDs(), roster)
	for _, id := range removed {
		c.removeConnection(id)
	}
	for _, id := range added {
		c.addConnection(id)
	}
	if len(added) > 0 || len(removed) > 0 {
		c.log.Debug("engine.roster.reconciled",
			zap.Strings("added", added),
			zap.Strings("removed", removed),
		)
	}
}

// addConnection creates the connection for id unless it already exists.
// Connection listeners fire only for a new entry.
func (c *Client) addConnection(id string) {
	c.mu.Lock()
	if _, ok := c.conns[id]; ok || c.status == StatusClosed {
		c.mu.Unlock()
		return
	}
	accepted := !c.lock.Engaged()
	lc := newLogicalConnection(id, c, accepted)
	c.conns[id] = lc
	n := len(c.conns)
	c.mu.Unlock()

	setConnections(n)
	c.log.Info("engine.connection.added", zap.String("client", id), zap.Bool("accepted", accepted))
	c.connectionListeners.notify(&Connection{impl: lc})
}

// removeConnection fires close listeners before the entry leaves the table.
func (c *Client) removeConnection(id string) {
	if lc := c.lookup(id); lc != nil {
		c.dropConnection(lc)
	}
}

// dropConnection removes exactly lc. An entry that has since been replaced
// under the same id stays in the table.
func (c *Client) dropConnection(lc *logicalConnection) {
	lc.close()

	c.mu.Lock()
	if c.conns[lc.id] == lc {
		delete(c.conns, lc.id)
	}
	n := len(c.conns)
	c.mu.Unlock()

	setConnections(n)
	c.log.Info("engine.connection.removed", zap.String("client", lc.id))
}
