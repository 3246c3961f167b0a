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

// Package security implements the LwM2M Security object (id 0). It holds
// the server URIs and credentials a bootstrap server provisions; the engine
// keeps the whole object out of reach of regular servers, so every
// operation here assumes a bootstrap context.
package security

import (
	"fmt"
	"strings"

	"github.com/facebook/lwm2m"
	"github.com/facebook/lwm2m/coap"
	"github.com/facebook/lwm2m/tlv"
)

// resource IDs
const (
	ResServerURI       uint16 = 0
	ResBootstrapServer uint16 = 1
	ResSecurityMode    uint16 = 2
	ResPublicKey       uint16 = 3
	ResServerPublicKey uint16 = 4
	ResSecretKey       uint16 = 5
	ResShortServerID   uint16 = 10
	ResHoldOffTime     uint16 = 11
)

// security modes of resource 2
const (
	ModePreSharedKey int64 = 0
	ModeRawPublicKey int64 = 1
	ModeCertificate  int64 = 2
	ModeNone         int64 = 3
)

// Instance is one provisioned server account
type Instance struct {
	ID             uint16
	ServerURI      string
	IsBootstrap    bool
	SecurityMode   int64
	PublicKey      []byte
	SecretKey      []byte
	ShortServerID  uint16
	HoldOffSeconds int64
}

// Object holds the Security object instances
type Object struct {
	instances []*Instance
}

// New builds a Security object from pre-provisioned instances
func New(instances ...Instance) *lwm2m.Object {
	o := &Object{}
	for n := range instances {
		i := instances[n]
		o.instances = append(o.instances, &i)
	}
	return &lwm2m.Object{ID: lwm2m.SecurityObjectID, Code: o}
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
	case ResServerURI:
		r.Value = []byte(i.ServerURI)
		return coap.Content
	case ResBootstrapServer:
		r.Value = tlv.EncodeBool(i.IsBootstrap)
		return coap.Content
	case ResSecurityMode:
		r.Value = tlv.EncodeInt(i.SecurityMode)
		return coap.Content
	case ResPublicKey:
		r.Value = i.PublicKey
		return coap.Content
	case ResSecretKey:
		r.Value = i.SecretKey
		return coap.Content
	case ResShortServerID:
		r.Value = tlv.EncodeInt(int64(i.ShortServerID))
		return coap.Content
	case ResHoldOffTime:
		r.Value = tlv.EncodeInt(i.HoldOffSeconds)
		return coap.Content
	default:
		return coap.NotFound
	}
}

// Read fills the requested resources, or the default set when none are
// named. The engine only routes reads here during bootstrap.
func (o *Object) Read(instanceID uint16, resources []tlv.Resource) ([]tlv.Resource, coap.Code) {
	target := o.find(instanceID)
	if target == nil {
		return nil, coap.NotFound
	}
	if len(resources) == 0 {
		resources = []tlv.Resource{
			{ID: ResServerURI},
			{ID: ResBootstrapServer},
			{ID: ResSecurityMode},
			{ID: ResShortServerID},
			{ID: ResHoldOffTime},
		}
	}
	for n := range resources {
		if code := target.readResource(&resources[n]); code != coap.Content {
			return nil, code
		}
	}
	return resources, coap.Content
}

// Write applies provisioned values to one instance
func (o *Object) Write(instanceID uint16, resources []tlv.Resource, _ bool) coap.Code {
	target := o.find(instanceID)
	if target == nil {
		return coap.NotFound
	}
	for _, r := range resources {
		code := target.writeResource(r)
		if code != coap.Changed {
			return code
		}
	}
	return coap.Changed
}

func (i *Instance) writeResource(r tlv.Resource) coap.Code {
	switch r.ID {
	case ResServerURI:
		i.ServerURI = string(r.Value)
		return coap.Changed
	case ResBootstrapServer:
		value, err := tlv.DecodeBool(r.Value)
		if err != nil {
			return coap.BadRequest
		}
		i.IsBootstrap = value
		return coap.Changed
	case ResSecurityMode:
		value, err := tlv.DecodeInt(r.Value)
		if err != nil {
			return coap.BadRequest
		}
		if value < ModePreSharedKey || value > ModeNone {
			return coap.NotAcceptable
		}
		i.SecurityMode = value
		return coap.Changed
	case ResPublicKey:
		i.PublicKey = append([]byte(nil), r.Value...)
		return coap.Changed
	case ResSecretKey:
		i.SecretKey = append([]byte(nil), r.Value...)
		return coap.Changed
	case ResShortServerID:
		value, err := tlv.DecodeInt(r.Value)
		if err != nil {
			return coap.BadRequest
		}
		if value < 1 || value > 0xffff {
			return coap.NotAcceptable
		}
		i.ShortServerID = uint16(value)
		return coap.Changed
	case ResHoldOffTime:
		value, err := tlv.DecodeInt(r.Value)
		if err != nil {
			return coap.BadRequest
		}
		if value < 0 {
			return coap.NotAcceptable
		}
		i.HoldOffSeconds = value
		return coap.Changed
	default:
		return coap.NotFound
	}
}

// Create allocates an instance and applies the provisioned values
func (o *Object) Create(instanceID uint16, resources []tlv.Resource) coap.Code {
	if o.find(instanceID) != nil {
		return coap.BadRequest
	}
	o.instances = append(o.instances, &Instance{ID: instanceID, SecurityMode: ModeNone})
	if code := o.Write(instanceID, resources, true); code != coap.Changed {
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

// Close wipes the key material with the instances
func (o *Object) Close() {
	for _, i := range o.instances {
		for n := range i.SecretKey {
			i.SecretKey[n] = 0
		}
	}
	o.instances = nil
}

// Copy deep-clones the object for the bootstrap backup
func (o *Object) Copy() lwm2m.ObjectCode {
	clone := &Object{instances: make([]*Instance, 0, len(o.instances))}
	for _, i := range o.instances {
		instance := *i
		instance.PublicKey = append([]byte(nil), i.PublicKey...)
		instance.SecretKey = append([]byte(nil), i.SecretKey...)
		clone.instances = append(clone.instances, &instance)
	}
	return clone
}

func (o *Object) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Security object, %d instances", len(o.instances))
	for _, i := range o.instances {
		fmt.Fprintf(&b, "; instance %d: uri=%s bootstrap=%t shortID=%d",
			i.ID, i.ServerURI, i.IsBootstrap, i.ShortServerID)
	}
	return b.String()
}
