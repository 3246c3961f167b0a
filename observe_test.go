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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facebook/lwm2m/coap"
	"github.com/facebook/lwm2m/tlv"
)

// observeRequest is a GET carrying the observe option; registration and
// cancellation use the same token
func observeRequest(t *testing.T, mid uint16, path string, observe int64, token []byte) []byte {
	p := coap.NewPacket(coap.Confirmable, coap.GET, mid)
	p.Token = token
	p.SetURIPath(path)
	p.Observe = observe
	data, err := p.Marshal()
	require.Nil(t, err)
	return data
}

func Test_observeInstallAndNotify(t *testing.T) {
	c, cap, _ := newTestContext(t)
	configureTestClient(t, c)

	c.HandlePacket(observeRequest(t, 1, "/1/0/1", 0, []byte{0x0b, 0x01}), "srv")
	resp := cap.take()[0]
	require.Equal(t, coap.Content, resp.Code)
	assert.Equal(t, int64(0), resp.Observe, "initial response carries the counter")
	require.Len(t, c.observed, 1)

	// a change triggers one notification with an increasing counter
	c.Notify(NewResourceURI(1, 0, 1))
	note := cap.take()[0]
	assert.Equal(t, coap.NonConfirmable, note.Type)
	assert.Equal(t, coap.Content, note.Code)
	assert.Equal(t, int64(1), note.Observe)
	assert.Equal(t, []byte{0x0b, 0x01}, note.Token, "notification reuses the watcher token")
	items, err := tlv.Parse(note.Payload)
	require.Nil(t, err)
	require.Len(t, items, 1)

	c.Notify(NewResourceURI(1, 0, 1))
	assert.Equal(t, int64(2), cap.take()[0].Observe)
}

func Test_observeGranularityMatching(t *testing.T) {
	c, cap, _ := newTestContext(t)
	configureTestClient(t, c)

	// observe the whole instance
	c.HandlePacket(observeRequest(t, 1, "/1/0", 0, []byte{0x0b, 0x01}), "srv")
	cap.take()

	// a single resource change inside it notifies the instance watcher
	c.Notify(NewResourceURI(1, 0, 0))
	require.Len(t, cap.take(), 1)

	// a change in another object does not
	c.Notify(NewResourceURI(3, 0, 0))
	assert.Empty(t, cap.take())

	// an object-level change covers the instance observation
	c.Notify(NewObjectURI(1))
	require.Len(t, cap.take(), 1)
}

func Test_observeCancel(t *testing.T) {
	c, cap, _ := newTestContext(t)
	configureTestClient(t, c)

	c.HandlePacket(observeRequest(t, 1, "/1/0", 0, []byte{0x0b, 0x01}), "srv")
	cap.take()
	require.Len(t, c.observed, 1)

	// explicit cancel: observe option 1, same token
	c.HandlePacket(observeRequest(t, 2, "/1/0", 1, []byte{0x0b, 0x01}), "srv")
	resp := cap.take()[0]
	assert.Equal(t, coap.Content, resp.Code, "cancel returns the current value")
	assert.Equal(t, int64(-1), resp.Observe)

	assert.Empty(t, c.observed)
	c.Notify(NewInstanceURI(1, 0))
	assert.Empty(t, cap.take())
}

func Test_observeCancelNeedsMatchingToken(t *testing.T) {
	c, cap, _ := newTestContext(t)
	configureTestClient(t, c)

	c.HandlePacket(observeRequest(t, 1, "/1/0", 0, []byte{0x0b, 0x01}), "srv")
	cap.take()

	// a cancel with a different token leaves the watcher in place
	c.HandlePacket(observeRequest(t, 9, "/1/0", 1, []byte{0x0b, 0x09}), "srv")
	cap.take()
	require.Len(t, c.observed, 1)
}

func Test_observeDroppedWithServer(t *testing.T) {
	c, cap, _ := newTestContext(t)
	configureTestClient(t, c)
	stepOnce(t, c) // opens the session to server 123
	cap.take()

	c.HandlePacket(observeRequest(t, 1, "/1/0", 0, []byte{0x0b, 0x01}), "session")
	cap.take()
	require.Len(t, c.observed, 1)

	require.Nil(t, c.RemoveServer(123))
	assert.Empty(t, c.observed, "watchers die with their peer")
}

func Test_watcherCounterWraps(t *testing.T) {
	c, cap, _ := newTestContext(t)
	configureTestClient(t, c)

	c.HandlePacket(observeRequest(t, 1, "/1/0", 0, []byte{0x0b, 0x01}), "srv")
	cap.take()
	c.observed[0].watchers[0].counter = observeCounterMask

	c.Notify(NewInstanceURI(1, 0))
	assert.Equal(t, int64(0), cap.take()[0].Observe)
}
