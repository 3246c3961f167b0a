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

// Package server implements the LwM2M Server object (id 1):
//
//	Name                 | ID | Operations | Mandatory |  Type   |  Range
//	Short ID             |  0 |     R      |    Yes    | Integer | 1-65535
//	Lifetime             |  1 |    R/W     |    Yes    | Integer |
//	Default Min Period   |  2 |    R/W     |    No     | Integer |
//	Default Max Period   |  3 |    R/W     |    No     | Integer |
//	Disable              |  4 |     E      |    No     |         |
//	Disable Timeout      |  5 |    R/W     |    No     | Integer |
//	Notification Storing |  6 |    R/W     |    Yes    | Boolean |
//	Binding              |  7 |    R/W     |    Yes    | String  |
//	Registration Update  |  8 |     E      |    Yes    |         |
//
// The optional resources are not implemented.
package server

import (
	"fmt"
	"strings"

	"github.com/facebook/lwm2m"
	"github.com/facebook/lwm2m/coap"
	"github.com/facebook/lwm2m/tlv"
)

// resource IDs
const (
	ResShortServerID  uint16 = 0
	ResLifetime       uint16 = 1
	ResMinPeriod      uint16 = 2
	ResMaxPeriod      uint16 = 3
	ResDisable        uint16 = 4
	ResDisableTimeout uint16 = 5
	ResStoring        uint16 = 6
	ResBinding        uint16 = 7
	ResUpdateTrigger  uint16 = 8
)

// Instance is one server account on the device
type Instance struct {
	ID            uint16
	ShortServerID uint16
	Lifetime      int64
	Storing       bool
	Binding       lwm2m.Binding
}

// Object holds the Server object instances
type Object struct {
	instances []*Instance
}

// New builds a Server object with one hardcoded instance, the way most
// clients start out before bootstrap adds more
func New(shortID uint16, binding lwm2m.Binding, lifetime int64, storing bool) *lwm2m.Object {
	return &lwm2m.Object{
		ID: lwm2m.ServerObjectID,
		Code: &Object{
			instances: []*Instance{{
				ShortServerID: shortID,
				Lifetime:      lifetime,
				Storing:       storing,
				Binding:       binding,
			}},
		},
	}
}

// InstanceIDs lists the live instances in creation order
func (o *Object) InstanceIDs() []uint16 {
	ids := make([]uint16, 0, len(o.instances))
	for _, i := range o.instances {
		ids = append(ids, i.ID)
	}
	return ids
}

func (o *Object) find(instanceID uint16) *Instance {
	for _, i := range o.instances {
		if i.ID == instanceID {
			return i
		}
	}
	return nil
}

func (i *Instance) readResource(r *tlv.Resource) coap.Code {
	r.Type = tlv.TypeResource
	switch r.ID {
	case ResShortServerID:
		r.Value = tlv.EncodeInt(int64(i.ShortServerID))
		return coap.Content
	case ResLifetime:
		r.Value = tlv.EncodeInt(i.Lifetime)
		return coap.Content
	case ResStoring:
		r.Value = tlv.EncodeBool(i.Storing)
		return coap.Content
	case ResBinding:
		r.Value = []byte(i.Binding)
		return coap.Content
	case ResDisable, ResUpdateTrigger:
		return coap.MethodNotAllowed
	default:
		return coap.NotFound
	}
}

// Read fills the requested resources, or the default set when none are named
func (o *Object) Read(instanceID uint16, resources []tlv.Resource) ([]tlv.Resource, coap.Code) {
	target := o.find(instanceID)
	if target == nil {
		return nil, coap.NotFound
	}
	if len(resources) == 0 {
		resources = []tlv.Resource{
			{ID: ResShortServerID},
			{ID: ResLifetime},
			{ID: ResStoring},
			{ID: ResBinding},
		}
	}
	for n := range resources {
		if code := target.readResource(&resources[n]); code != coap.Content {
			return nil, code
		}
	}
	return resources, coap.Content
}

// Write applies resource values; the short server ID only yields while a
// bootstrap server is provisioning
func (o *Object) Write(instanceID uint16, resources []tlv.Resource, bootstrapping bool) coap.Code {
	target := o.find(instanceID)
	if target == nil {
		return coap.NotFound
	}
	for _, r := range resources {
		code := target.writeResource(r, bootstrapping)
		if code != coap.Changed {
			return code
		}
	}
	return coap.Changed
}

func (i *Instance) writeResource(r tlv.Resource, bootstrapping bool) coap.Code {
	switch r.ID {
	case ResShortServerID:
		if !bootstrapping {
			return coap.MethodNotAllowed
		}
		value, err := tlv.DecodeInt(r.Value)
		if err != nil {
			return coap.BadRequest
		}
		if value < 1 || value > 0xffff {
			return coap.NotAcceptable
		}
		i.ShortServerID = uint16(value)
		return coap.Changed

	case ResLifetime:
		value, err := tlv.DecodeInt(r.Value)
		if err != nil {
			return coap.BadRequest
		}
		if value < 0 || value > 0xffffffff {
			return coap.NotAcceptable
		}
		i.Lifetime = value
		return coap.Changed

	case ResStoring:
		value, err := tlv.DecodeBool(r.Value)
		if err != nil {
			return coap.BadRequest
		}
		i.Storing = value
		return coap.Changed

	case ResBinding:
		binding := lwm2m.Binding(r.Value)
		if !binding.Valid() {
			return coap.BadRequest
		}
		i.Binding = binding
		return coap.Changed

	case ResDisable, ResUpdateTrigger:
		return coap.MethodNotAllowed

	default:
		return coap.NotFound
	}
}

// Create allocates an instance with defaults and applies the payload to it;
// any failure removes the instance again
func (o *Object) Create(instanceID uint16, resources []tlv.Resource) coap.Code {
	if o.find(instanceID) != nil {
		return coap.BadRequest
	}
	o.instances = append(o.instances, &Instance{ID: instanceID, Binding: lwm2m.BindingU})
	// provisioning payloads carry the short server ID, so the write runs
	// with the bootstrap rules
	code := o.Write(instanceID, resources, true)
	if code != coap.Changed {
		o.Delete(instanceID)
		return code
	}
	return coap.Created
}

// Delete removes one instance
func (o *Object) Delete(instanceID uint16) coap.Code {
	for n, i := range o.instances {
		if i.ID == instanceID {
			o.instances = append(o.instances[:n], o.instances[n+1:]...)
			return coap.Deleted
		}
	}
	return coap.NotFound
}

// Execute covers the two executable resources; neither does anything on
// this sample implementation
func (o *Object) Execute(instanceID, resourceID uint16, _ []byte) coap.Code {
	if o.find(instanceID) == nil {
		return coap.NotFound
	}
	switch resourceID {
	case ResDisable:
		return coap.NotFound
	case ResUpdateTrigger:
		return coap.NotImplemented
	default:
		return coap.MethodNotAllowed
	}
}

// Close drops all instances
func (o *Object) Close() {
	o.instances = nil
}

// Copy deep-clones the object for the bootstrap backup
func (o *Object) Copy() lwm2m.ObjectCode {
	clone := &Object{instances: make([]*Instance, 0, len(o.instances))}
	for _, i := range o.instances {
		instance := *i
		clone.instances = append(clone.instances, &instance)
	}
	return clone
}

func (o *Object) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Server object, %d instances", len(o.instances))
	for _, i := range o.instances {
		fmt.Fprintf(&b, "; instance %d: shortID=%d lifetime=%d storing=%t binding=%s",
			i.ID, i.ShortServerID, i.Lifetime, i.Storing, i.Binding)
	}
	return b.String()
}
