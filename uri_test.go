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
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseURI(t *testing.T) {
	uri, err := ParseURI("/3")
	require.Nil(t, err)
	assert.Equal(t, NewObjectURI(3), uri)

	uri, err = ParseURI("/1/0")
	require.Nil(t, err)
	assert.Equal(t, NewInstanceURI(1, 0), uri)

	uri, err = ParseURI("/1/0/7")
	require.Nil(t, err)
	assert.Equal(t, NewResourceURI(1, 0, 7), uri)

	uri, err = ParseURI("65535/65535/65535")
	require.Nil(t, err)
	assert.Equal(t, NewResourceURI(65535, 65535, 65535), uri)
}

func Test_parseURIRoundtrip(t *testing.T) {
	for _, id := range []uint16{0, 1, 42, 65535} {
		uri, err := ParseURI(fmt.Sprintf("/%d", id))
		require.Nil(t, err)
		assert.Equal(t, fmt.Sprintf("/%d", id), uri.String())

		uri, err = ParseURI(fmt.Sprintf("/%d/%d", id, id))
		require.Nil(t, err)
		assert.Equal(t, fmt.Sprintf("/%d/%d", id, id), uri.String())

		uri, err = ParseURI(fmt.Sprintf("/%d/%d/%d", id, id, id))
		require.Nil(t, err)
		assert.Equal(t, fmt.Sprintf("/%d/%d/%d", id, id, id), uri.String())
	}
}

func Test_parseURIErrors(t *testing.T) {
	for _, path := range []string{
		"",
		"/",
		"/1/2/3/4",
		"/x",
		"/1/y",
		"/1/2/z",
		"/65536",
		"/1/65536",
		"/-1",
		"/1.5",
	} {
		_, err := ParseURI(path)
		require.ErrorIs(t, err, ErrInvalidURI, "path %q", path)
	}
}

func Test_uriCovers(t *testing.T) {
	object := NewObjectURI(3)
	instance := NewInstanceURI(3, 0)
	resource := NewResourceURI(3, 0, 13)

	assert.True(t, object.covers(resource))
	assert.True(t, resource.covers(object))
	assert.True(t, instance.covers(resource))
	assert.True(t, instance.covers(instance))

	assert.False(t, object.covers(NewObjectURI(4)))
	assert.False(t, instance.covers(NewInstanceURI(3, 1)))
	assert.False(t, resource.covers(NewResourceURI(3, 0, 14)))
}

func Test_binding(t *testing.T) {
	for _, b := range []Binding{BindingU, BindingUQ, BindingS, BindingSQ, BindingUS, BindingUQS} {
		assert.True(t, b.Valid())
	}
	assert.False(t, Binding("X").Valid())
	assert.False(t, Binding("").Valid())
	assert.False(t, Binding("QU").Valid())

	assert.False(t, BindingU.RequiresMSISDN())
	assert.False(t, BindingUQ.RequiresMSISDN())
	assert.True(t, BindingS.RequiresMSISDN())
	assert.True(t, BindingSQ.RequiresMSISDN())
	assert.True(t, BindingUS.RequiresMSISDN())
	assert.True(t, BindingUQS.RequiresMSISDN())
}
