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

func Test_newRequiresSend(t *testing.T) {
	_, err := New(nil, nil)
	require.ErrorIs(t, err, ErrSendRequired)

	c, err := New(nil, func(Session, []byte) error { return nil })
	require.Nil(t, err)
	require.NotNil(t, c)
}

func Test_configureMandatoryObjects(t *testing.T) {
	c, _, _ := newTestContext(t)

	// security and server only: the device object is missing
	err := c.Configure("urn:test:1", BindingU, "", []*Object{
		{ID: SecurityObjectID, Code: newTestObject(SecurityObjectID, 0)},
		{ID: ServerObjectID, Code: newTestObject(ServerObjectID, 0)},
	})
	require.ErrorIs(t, err, ErrMissingObject)

	// adding object 3 fixes it
	err = c.Configure("urn:test:1", BindingU, "", testObjects())
	require.Nil(t, err)

	// second configure is rejected
	err = c.Configure("urn:test:2", BindingU, "", testObjects())
	require.ErrorIs(t, err, ErrConfigured)
}

func Test_configureBindingValidation(t *testing.T) {
	c, _, _ := newTestContext(t)

	err := c.Configure("urn:test:1", Binding("SQ"), "", testObjects())
	require.ErrorIs(t, err, ErrMSISDNRequired)

	err = c.Configure("urn:test:1", Binding("X"), "", testObjects())
	require.ErrorIs(t, err, ErrInvalidBinding)

	err = c.Configure("urn:test:1", Binding("SQ"), "+15551234", testObjects())
	require.Nil(t, err)
}

func Test_configureRejectsDuplicates(t *testing.T) {
	c, _, _ := newTestContext(t)
	objects := append(testObjects(), &Object{ID: ServerObjectID, Code: newTestObject(ServerObjectID, 0)})
	err := c.Configure("urn:test:1", BindingU, "", objects)
	require.ErrorIs(t, err, ErrDuplicateObject)
}

func Test_configureEmptyEndpoint(t *testing.T) {
	c, _, _ := newTestContext(t)
	err := c.Configure("", BindingU, "", testObjects())
	require.ErrorIs(t, err, ErrEndpointEmpty)
}

func Test_addServer(t *testing.T) {
	c, _, _ := newTestContext(t)

	require.Nil(t, c.AddServer(1, false))
	require.Nil(t, c.AddServer(2, true))
	require.ErrorIs(t, c.AddServer(1, true), ErrDuplicateServer)
	require.ErrorIs(t, c.AddServer(2, false), ErrDuplicateServer)

	require.Nil(t, c.RemoveServer(1))
	require.Nil(t, c.RemoveServer(2))
	require.ErrorIs(t, c.RemoveServer(1), ErrServerNotFound)

	// removed IDs can be added again
	require.Nil(t, c.AddServer(1, false))
}

func Test_closeInvokesObjectClose(t *testing.T) {
	c, _, _ := newTestContext(t)
	objects := testObjects()
	require.Nil(t, c.Configure("urn:test:1", BindingU, "", objects))

	c.Close()
	for _, o := range objects {
		assert.True(t, o.Code.(*testObject).closed, "object %d not closed", o.ID)
	}

	// the context is unusable afterwards
	require.ErrorIs(t, c.AddServer(5, false), ErrClosed)
	timeout := time.Hour
	require.ErrorIs(t, c.Step(&timeout), ErrClosed)

	// double close is a no-op
	c.Close()
}

func Test_closeCancelsTransactions(t *testing.T) {
	c, cap, _ := newTestContext(t)
	configureTestClient(t, c)

	stepOnce(t, c) // registration goes out
	require.NotEmpty(t, cap.take())
	require.NotEmpty(t, c.transactions)

	called := false
	c.transactions[0].callback = func(*coap.Packet) { called = true }
	c.Close()
	assert.Empty(t, c.transactions)
	assert.False(t, called)
}
