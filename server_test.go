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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facebook/lwm2m/coap"
)

// request builds and marshals one confirmable request
func request(t *testing.T, code coap.Code, mid uint16, path, query string, payload []byte) []byte {
	p := coap.NewPacket(coap.Confirmable, code, mid)
	p.Token = []byte{byte(mid >> 8), byte(mid)}
	p.SetURIPath(path)
	if query != "" {
		p.SetURIQuery(query)
	}
	if payload != nil {
		p.ContentFormat = coap.MediaTypeLinkFormat
		p.Payload = payload
	}
	data, err := p.Marshal()
	require.Nil(t, err)
	return data
}

// newTestServer builds a server-mode engine with a monitor capture
func newTestServer(t *testing.T) (*Context, *capture, *testClock, *[]monitorEvent) {
	cap := &capture{t: t}
	clock := newTestClock()
	c, err := NewSeeded(nil, cap.send, 7)
	require.Nil(t, err)
	c.now = clock.Now

	events := []monitorEvent{}
	c.SetMonitor(func(clientID uint16, location string, code coap.Code, _ []byte) {
		events = append(events, monitorEvent{clientID, location, code})
	})
	return c, cap, clock, &events
}

func Test_serverRegister(t *testing.T) {
	c, cap, clock, events := newTestServer(t)

	c.HandlePacket(request(t, coap.POST, 1, "/rd", "ep=urn:test:1&lt=10&b=U", []byte("</1/0>,</3/0>")), "client")

	resp := cap.last()
	assert.Equal(t, coap.Created, resp.Code)
	require.Len(t, c.clients, 1)
	assert.Equal(t, resp.LocationPathString(), c.clients[0].Location())
	assert.Equal(t, clock.Now().Add(10*time.Second), c.clients[0].EndOfLife)

	require.Len(t, *events, 1)
	assert.Equal(t, coap.Created, (*events)[0].code)
	assert.Equal(t, c.clients[0].ID, (*events)[0].clientID)
}

func Test_serverRegisterValidation(t *testing.T) {
	c, cap, _, _ := newTestServer(t)

	for _, tc := range []struct {
		query   string
		payload []byte
	}{
		{"lt=10&b=U", []byte("</1/0>")},            // no endpoint
		{"ep=e&lt=0", []byte("</1/0>")},            // zero lifetime
		{"ep=e&lt=x", []byte("</1/0>")},            // junk lifetime
		{"ep=e&b=X", []byte("</1/0>")},             // bad binding
		{"ep=e&b=SQ", []byte("</1/0>")},            // SMS binding without msisdn
		{"ep=e", nil},                              // no object list
		{"ep=e", []byte("bogus")},                  // malformed object list
	} {
		c.HandlePacket(request(t, coap.POST, 2, "/rd", tc.query, tc.payload), "client")
		assert.Equal(t, coap.BadRequest, cap.last().Code, "query %q", tc.query)
		assert.Empty(t, c.clients)
	}

	// sms binding with an msisdn is accepted
	c.HandlePacket(request(t, coap.POST, 3, "/rd", "ep=e&b=SQ&sms=15551234", []byte("</1/0>")), "client")
	assert.Equal(t, coap.Created, cap.last().Code)
}

func Test_serverLifetimeExpiry(t *testing.T) {
	c, _, clock, events := newTestServer(t)

	c.HandlePacket(request(t, coap.POST, 1, "/rd", "ep=urn:test:1&lt=10&b=U", []byte("</1/0>")), "client")
	require.Len(t, c.clients, 1)

	// one second before the end of life the record survives and the step
	// timeout is capped by the remaining time
	clock.advance(9 * time.Second)
	timeout := stepOnce(t, c)
	require.Len(t, c.clients, 1)
	assert.LessOrEqual(t, timeout, time.Second)

	// past the end of life the record is swept
	clock.advance(2 * time.Second)
	stepOnce(t, c)
	assert.Empty(t, c.clients)

	require.Len(t, *events, 2)
	assert.Equal(t, coap.Deleted, (*events)[1].code)
}

func Test_serverUpdateRefreshesLifetime(t *testing.T) {
	c, cap, clock, events := newTestServer(t)

	c.HandlePacket(request(t, coap.POST, 1, "/rd", "ep=urn:test:1&lt=10&b=U", []byte("</1/0>")), "client")
	location := c.clients[0].Location()

	// an update without a body refreshes the deadline only
	clock.advance(8 * time.Second)
	c.HandlePacket(request(t, coap.POST, 2, location, "", nil), "client")
	assert.Equal(t, coap.Changed, cap.last().Code)
	assert.Equal(t, clock.Now().Add(10*time.Second), c.clients[0].EndOfLife)

	// a new lifetime sticks
	c.HandlePacket(request(t, coap.POST, 3, location, "lt=60", nil), "client")
	assert.Equal(t, 60*time.Second, c.clients[0].Lifetime)
	assert.Equal(t, clock.Now().Add(60*time.Second), c.clients[0].EndOfLife)

	// a body replaces the object list
	c.HandlePacket(request(t, coap.POST, 4, location, "", []byte("</1/0>,</5>")), "client")
	require.Len(t, c.clients[0].Objects, 2)

	assert.Equal(t, coap.Changed, (*events)[1].code)

	// after every operation the invariant holds
	remaining := c.clients[0].EndOfLife.Sub(clock.Now())
	assert.Greater(t, remaining, time.Duration(0))
	assert.LessOrEqual(t, remaining, c.clients[0].Lifetime)
}

func Test_serverDeregister(t *testing.T) {
	c, cap, _, events := newTestServer(t)

	c.HandlePacket(request(t, coap.POST, 1, "/rd", "ep=urn:test:1&b=U", []byte("</1/0>")), "client")
	location := c.clients[0].Location()

	c.HandlePacket(request(t, coap.DELETE, 2, location, "", nil), "client")
	assert.Equal(t, coap.Deleted, cap.last().Code)
	assert.Empty(t, c.clients)
	assert.Equal(t, coap.Deleted, (*events)[1].code)

	// a second delete finds nothing
	c.HandlePacket(request(t, coap.DELETE, 3, location, "", nil), "client")
	assert.Equal(t, coap.NotFound, cap.last().Code)
}

func Test_serverEndpointReplacement(t *testing.T) {
	c, _, _, _ := newTestServer(t)

	c.HandlePacket(request(t, coap.POST, 1, "/rd", "ep=urn:test:1&b=U", []byte("</1/0>")), "client")
	firstID := c.clients[0].ID

	c.HandlePacket(request(t, coap.POST, 2, "/rd", "ep=urn:test:1&b=U", []byte("</1/0>,</3/0>")), "client2")
	require.Len(t, c.clients, 1, "same endpoint replaces the record")
	assert.NotEqual(t, firstID, c.clients[0].ID)
	assert.Equal(t, Session("client2"), c.clients[0].Session)
	require.Len(t, c.clients[0].Objects, 2)
}

func Test_serverUnknownLocation(t *testing.T) {
	c, cap, _, _ := newTestServer(t)

	c.HandlePacket(request(t, coap.POST, 1, "/rd/42", "", nil), "client")
	assert.Equal(t, coap.NotFound, cap.last().Code)

	c.HandlePacket(request(t, coap.GET, 2, "/rd", "", nil), "client")
	assert.Equal(t, coap.MethodNotAllowed, cap.last().Code)

	c.HandlePacket(request(t, coap.POST, 3, "/rd/1/2/3", "", nil), "client")
	assert.Equal(t, coap.NotFound, cap.last().Code)
}
