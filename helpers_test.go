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
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/facebook/lwm2m/coap"
	"github.com/facebook/lwm2m/tlv"
)

// testClock is a manually advanced time source
type testClock struct {
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Unix(1700000000, 0)}
}

func (c *testClock) Now() time.Time {
	return c.current
}

func (c *testClock) advance(d time.Duration) {
	c.current = c.current.Add(d)
}

// capture records every datagram the engine sends
type capture struct {
	t    *testing.T
	sent []*coap.Packet
	to   []Session
}

func (cap *capture) send(s Session, data []byte) error {
	p, err := coap.ParsePacket(data)
	require.Nil(cap.t, err)
	cap.sent = append(cap.sent, p)
	cap.to = append(cap.to, s)
	return nil
}

// take drains the captured packets
func (cap *capture) take() []*coap.Packet {
	sent := cap.sent
	cap.sent = nil
	cap.to = nil
	return sent
}

// last returns the most recent packet without draining
func (cap *capture) last() *coap.Packet {
	require.NotEmpty(cap.t, cap.sent)
	return cap.sent[len(cap.sent)-1]
}

// newTestContext builds a deterministic engine: fixed seed, manual clock,
// capturing transport, sessions handed out as plain strings
func newTestContext(t *testing.T) (*Context, *capture, *testClock) {
	cap := &capture{t: t}
	clock := newTestClock()
	connect := func(shortID uint16) (Session, error) {
		return "session", nil
	}
	c, err := NewSeeded(connect, cap.send, 1)
	require.Nil(t, err)
	c.now = clock.Now
	return c, cap, clock
}

// testObject is a generic object fixture: a plain store of raw resource
// values with the full capability set
type testObject struct {
	id        uint16
	instances map[uint16]map[uint16][]byte
	order     []uint16
	closed    bool
	executed  []uint16
}

func newTestObject(id uint16, instanceIDs ...uint16) *testObject {
	o := &testObject{id: id, instances: make(map[uint16]map[uint16][]byte)}
	for _, i := range instanceIDs {
		o.instances[i] = map[uint16][]byte{
			0: tlv.EncodeInt(int64(id)),
			1: tlv.EncodeBool(true),
		}
		o.order = append(o.order, i)
	}
	return o
}

func (o *testObject) InstanceIDs() []uint16 {
	return append([]uint16(nil), o.order...)
}

func (o *testObject) Read(instanceID uint16, resources []tlv.Resource) ([]tlv.Resource, coap.Code) {
	store, ok := o.instances[instanceID]
	if !ok {
		return nil, coap.NotFound
	}
	if len(resources) == 0 {
		ids := make([]int, 0, len(store))
		for id := range store {
			ids = append(ids, int(id))
		}
		sort.Ints(ids)
		for _, id := range ids {
			resources = append(resources, tlv.Resource{ID: uint16(id)})
		}
	}
	for n := range resources {
		value, ok := store[resources[n].ID]
		if !ok {
			return nil, coap.NotFound
		}
		resources[n].Type = tlv.TypeResource
		resources[n].Value = value
	}
	return resources, coap.Content
}

func (o *testObject) Write(instanceID uint16, resources []tlv.Resource, _ bool) coap.Code {
	store, ok := o.instances[instanceID]
	if !ok {
		return coap.NotFound
	}
	for _, r := range resources {
		store[r.ID] = r.Value
	}
	return coap.Changed
}

func (o *testObject) Create(instanceID uint16, resources []tlv.Resource) coap.Code {
	if _, ok := o.instances[instanceID]; ok {
		return coap.BadRequest
	}
	o.instances[instanceID] = make(map[uint16][]byte)
	o.order = append(o.order, instanceID)
	if code := o.Write(instanceID, resources, true); code != coap.Changed {
		o.Delete(instanceID)
		return code
	}
	return coap.Created
}

func (o *testObject) Delete(instanceID uint16) coap.Code {
	if _, ok := o.instances[instanceID]; !ok {
		return coap.NotFound
	}
	delete(o.instances, instanceID)
	for n, id := range o.order {
		if id == instanceID {
			o.order = append(o.order[:n], o.order[n+1:]...)
			break
		}
	}
	return coap.Deleted
}

func (o *testObject) Execute(instanceID, resourceID uint16, _ []byte) coap.Code {
	if _, ok := o.instances[instanceID]; !ok {
		return coap.NotFound
	}
	o.executed = append(o.executed, resourceID)
	return coap.Changed
}

func (o *testObject) Close() {
	o.closed = true
}

func (o *testObject) Copy() ObjectCode {
	clone := newTestObject(o.id)
	for _, id := range o.order {
		clone.order = append(clone.order, id)
		store := make(map[uint16][]byte, len(o.instances[id]))
		for k, v := range o.instances[id] {
			store[k] = append([]byte(nil), v...)
		}
		clone.instances[id] = store
	}
	return clone
}

// testObjects returns the three mandatory objects backed by fixtures
func testObjects() []*Object {
	return []*Object{
		{ID: SecurityObjectID, Code: newTestObject(SecurityObjectID, 0)},
		{ID: ServerObjectID, Code: newTestObject(ServerObjectID, 0)},
		{ID: DeviceObjectID, Code: newTestObject(DeviceObjectID, 0)},
	}
}

// configureTestClient sets the context up as client "urn:test:1" with one
// regular server
func configureTestClient(t *testing.T, c *Context) {
	require.Nil(t, c.Configure("urn:test:1", BindingU, "", testObjects()))
	require.Nil(t, c.AddServer(123, false))
}

// stepOnce runs one engine step with a generous host timeout and returns
// the shrunk value
func stepOnce(t *testing.T, c *Context) time.Duration {
	timeout := time.Hour
	require.Nil(t, c.Step(&timeout))
	return timeout
}
