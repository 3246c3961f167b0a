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

package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facebook/lwm2m/coap"
	"github.com/facebook/lwm2m/tlv"
)

func newObject() *Object {
	return New(Instance{
		ID:            0,
		ServerURI:     "coap://localhost:5683",
		SecurityMode:  ModeNone,
		ShortServerID: 1,
	}).Code.(*Object)
}

func Test_readDefaultSet(t *testing.T) {
	o := newObject()

	items, code := o.Read(0, nil)
	require.Equal(t, coap.Content, code)
	require.Len(t, items, 5)
	assert.Equal(t, "coap://localhost:5683", string(items[0].Value))

	_, code = o.Read(5, nil)
	assert.Equal(t, coap.NotFound, code)
}

func Test_provisioning(t *testing.T) {
	o := newObject()

	code := o.Create(1, []tlv.Resource{
		tlv.StringResource(ResServerURI, "coap://bootstrap:5684"),
		tlv.BoolResource(ResBootstrapServer, true),
		tlv.IntResource(ResSecurityMode, ModePreSharedKey),
		tlv.OpaqueResource(ResSecretKey, []byte{1, 2, 3}),
		tlv.IntResource(ResShortServerID, 2),
	})
	require.Equal(t, coap.Created, code)
	require.Len(t, o.InstanceIDs(), 2)

	items, readCode := o.Read(1, []tlv.Resource{{ID: ResServerURI}, {ID: ResSecretKey}})
	require.Equal(t, coap.Content, readCode)
	assert.Equal(t, "coap://bootstrap:5684", string(items[0].Value))
	assert.Equal(t, []byte{1, 2, 3}, items[1].Value)
}

func Test_writeValidation(t *testing.T) {
	o := newObject()

	assert.Equal(t, coap.NotAcceptable, o.Write(0, []tlv.Resource{tlv.IntResource(ResSecurityMode, 9)}, true))
	assert.Equal(t, coap.NotAcceptable, o.Write(0, []tlv.Resource{tlv.IntResource(ResShortServerID, 0)}, true))
	assert.Equal(t, coap.BadRequest, o.Write(0, []tlv.Resource{tlv.OpaqueResource(ResSecurityMode, []byte{1, 2, 3})}, true))
	assert.Equal(t, coap.NotFound, o.Write(0, []tlv.Resource{tlv.IntResource(99, 1)}, true))
	assert.Equal(t, coap.NotFound, o.Write(7, nil, true))
}

func Test_copyIsDeep(t *testing.T) {
	o := newObject()
	require.Equal(t, coap.Changed, o.Write(0, []tlv.Resource{tlv.OpaqueResource(ResSecretKey, []byte{9})}, true))

	clone := o.Copy().(*Object)
	o.instances[0].SecretKey[0] = 1
	assert.Equal(t, []byte{9}, clone.instances[0].SecretKey)
}

func Test_closeWipesKeys(t *testing.T) {
	o := newObject()
	require.Equal(t, coap.Changed, o.Write(0, []tlv.Resource{tlv.OpaqueResource(ResSecretKey, []byte{9, 9})}, true))
	key := o.instances[0].SecretKey

	o.Close()
	assert.Empty(t, o.InstanceIDs())
	assert.Equal(t, []byte{0, 0}, key)
}

func Test_delete(t *testing.T) {
	o := newObject()
	assert.Equal(t, coap.Deleted, o.Delete(0))
	assert.Equal(t, coap.NotFound, o.Delete(0))
}
