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

func Test_stepIdleKeepsTimeout(t *testing.T) {
	c, _, _ := newTestContext(t)

	timeout := time.Hour
	require.Nil(t, c.Step(&timeout))
	assert.Equal(t, time.Hour, timeout, "nothing pending, nothing shrinks")
}

func Test_stepClampsNegativeTimeout(t *testing.T) {
	c, _, _ := newTestContext(t)

	timeout := -time.Second
	require.Nil(t, c.Step(&timeout))
	assert.Equal(t, time.Duration(0), timeout)
}

func Test_stepTracksClientExpiry(t *testing.T) {
	c, cap, clock, _ := newTestServer(t)

	c.HandlePacket(request(t, coap.POST, 1, "/rd", "ep=a&lt=5&b=U", []byte("</1/0>")), "client")
	cap.take()

	timeout := time.Hour
	require.Nil(t, c.Step(&timeout))
	assert.LessOrEqual(t, timeout, 5*time.Second)

	clock.advance(3 * time.Second)
	timeout = time.Hour
	require.Nil(t, c.Step(&timeout))
	assert.LessOrEqual(t, timeout, 2*time.Second)
}
