/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package lwm2m

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/lwm2m/coap"
)

// BootstrapState is the client bootstrap progress
type BootstrapState uint8

// bootstrap states
const (
	BootstrapNone BootstrapState = iota
	BootstrapRequested
	BootstrapInitiated
	BootstrapPending
	BootstrapFinished
	BootstrapFailed
)

func (s BootstrapState) String() string {
	switch s {
	case BootstrapNone:
		return "NONE"
	case BootstrapRequested:
		return "REQUESTED"
	case BootstrapInitiated:
		return "INITIATED"
	case BootstrapPending:
		return "PENDING"
	case BootstrapFinished:
		return "FINISHED"
	case BootstrapFailed:
		return "FAILED"
	}
	return "UNKNOWN"
}

// ErrNoBootstrapServer is returned when bootstrap is requested with no
// bootstrap server on the list
var ErrNoBootstrapServer = errors.New("no bootstrap server configured")

// BootstrapState reports the client bootstrap progress
func (c *Context) BootstrapState() BootstrapState {
	return c.bsState
}

// Bootstrap requests a device-initiated bootstrap. The request itself goes
// out on the next step.
func (c *Context) Bootstrap() error {
	if c.closed {
		return ErrClosed
	}
	if c.endpoint == "" {
		return ErrNotConfigured
	}
	if len(c.bootstrapServers) == 0 {
		return ErrNoBootstrapServer
	}
	c.bsState = BootstrapRequested
	return nil
}

// bootstrapRequired tells if the state machine should start a bootstrap on
// its own: nothing to register with and a bootstrap server available
func (c *Context) bootstrapRequired() bool {
	return c.bsState == BootstrapNone && len(c.servers) == 0 && len(c.bootstrapServers) > 0
}

// startBootstrap POSTs /bs?ep= to the first bootstrap server whose session
// can be opened
func (c *Context) startBootstrap() {
	c.bsState = BootstrapInitiated
	for _, s := range c.bootstrapServers {
		if err := c.connectServer(s); err != nil {
			log.Errorf("Bootstrap: %v", err)
			continue
		}
		t := c.newTransaction(s.session, s, coap.POST)
		t.pkt.SetURIPath("/" + bootstrapRoot)
		t.pkt.SetURIQuery("ep=" + c.endpoint)
		t.callback = func(resp *coap.Packet) {
			c.handleBootstrapReply(s, resp)
		}
		s.lastMID = t.mid
		c.enqueueTransaction(t)
		log.Infof("Bootstrap requested from server %d", s.ShortID)
		return
	}
	log.Errorf("Bootstrap: no bootstrap server reachable")
	c.bsState = BootstrapFailed
}

// handleBootstrapReply processes the answer to the bootstrap request. A
// 2.04 opens the provisioning window and snapshots the objects so a failed
// run can be rolled back.
func (c *Context) handleBootstrapReply(s *Server, resp *coap.Packet) {
	if c.bsState != BootstrapInitiated {
		return
	}
	if resp == nil || resp.Code != coap.Changed {
		if resp != nil {
			log.Errorf("Bootstrap refused by server %d: %s", s.ShortID, resp.Code)
		}
		c.bsState = BootstrapFailed
		c.restoreObjects()
		return
	}
	log.Infof("Bootstrap pending, waiting for provisioning from server %d", s.ShortID)
	c.bsState = BootstrapPending
	c.backupObjects()
}

// handleBootstrapFinish processes POST /bs sent by the bootstrap server at
// the end of provisioning. The run only succeeds when a Server object
// instance exists to register with.
func (c *Context) handleBootstrapFinish() coap.Code {
	if c.bsState != BootstrapPending {
		return coap.BadRequest
	}
	server := c.findObject(ServerObjectID)
	if server == nil || len(server.Code.InstanceIDs()) == 0 {
		log.Errorf("Bootstrap finished without a server account, rolling back")
		c.bsState = BootstrapFailed
		c.restoreObjects()
		return coap.NotAcceptable
	}
	log.Infof("Bootstrap finished")
	c.bsState = BootstrapFinished
	c.backup = nil
	return coap.Changed
}

// bootstrapping tells if provisioning writes are currently allowed to touch
// otherwise-immutable resources
func (c *Context) bootstrapping() bool {
	return c.bsState == BootstrapPending
}
