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

// Package device implements the LwM2M Device object (id 3): static identity
// strings, the reboot trigger and the supported binding modes. The object
// has exactly one instance, id 0.
package device

import (
	"fmt"

	"github.com/facebook/lwm2m"
	"github.com/facebook/lwm2m/coap"
	"github.com/facebook/lwm2m/tlv"
)

// resource IDs
const (
	ResManufacturer    uint16 = 0
	ResModelNumber     uint16 = 1
	ResSerialNumber    uint16 = 2
	ResFirmwareVersion uint16 = 3
	ResReboot          uint16 = 4
	ResBindingModes    uint16 = 16
)

// Info is the static device identity
type Info struct {
	Manufacturer    string
	ModelNumber     string
	SerialNumber    string
	FirmwareVersion string
	BindingModes    string
}

// Object is the single-instance Device object
type Object struct {
	info Info

	// rebootFunc runs when a server executes the reboot resource; nil
	// reports the execute as unsupported
	rebootFunc func()
}

// New builds the Device object
func New(info Info, rebootFunc func()) *lwm2m.Object {
	if info.BindingModes == "" {
		info.BindingModes = string(lwm2m.BindingU)
	}
	return &lwm2m.Object{ID: lwm2m.DeviceObjectID, Code: &Object{info: info, rebootFunc: rebootFunc}}
}

// InstanceIDs lists the single mandatory instance
func (o *Object) InstanceIDs() []uint16 {
	return []uint16{0}
}

func (o *Object) readResource(r *tlv.Resource) coap.Code {
	r.Type = tlv.TypeResource
	switch r.ID {
	case ResManufacturer:
		r.Value = []byte(o.info.Manufacturer)
		return coap.Content
	case ResModelNumber:
		r.Value = []byte(o.info.ModelNumber)
		return coap.Content
	case ResSerialNumber:
		r.Value = []byte(o.info.SerialNumber)
		return coap.Content
	case ResFirmwareVersion:
		r.Value = []byte(o.info.FirmwareVersion)
		return coap.Content
	case ResBindingModes:
		r.Value = []byte(o.info.BindingModes)
		return coap.Content
	case ResReboot:
		return coap.MethodNotAllowed
	default:
		return coap.NotFound
	}
}

// Read fills the requested resources, or the default set when none are named
func (o *Object) Read(instanceID uint16, resources []tlv.Resource) ([]tlv.Resource, coap.Code) {
	if instanceID != 0 {
		return nil, coap.NotFound
	}
	if len(resources) == 0 {
		resources = []tlv.Resource{
			{ID: ResManufacturer},
			{ID: ResModelNumber},
			{ID: ResSerialNumber},
			{ID: ResFirmwareVersion},
			{ID: ResBindingModes},
		}
	}
	for n := range resources {
		if code := o.readResource(&resources[n]); code != coap.Content {
			return nil, code
		}
	}
	return resources, coap.Content
}

// Write rejects everything: the identity is factory-set
func (o *Object) Write(instanceID uint16, resources []tlv.Resource, _ bool) coap.Code {
	if instanceID != 0 {
		return coap.NotFound
	}
	for _, r := range resources {
		switch r.ID {
		case ResManufacturer, ResModelNumber, ResSerialNumber, ResFirmwareVersion, ResBindingModes:
			return coap.MethodNotAllowed
		case ResReboot:
			return coap.MethodNotAllowed
		default:
			return coap.NotFound
		}
	}
	return coap.Changed
}

// Execute triggers the reboot resource
func (o *Object) Execute(instanceID, resourceID uint16, _ []byte) coap.Code {
	if instanceID != 0 {
		return coap.NotFound
	}
	switch resourceID {
	case ResReboot:
		if o.rebootFunc == nil {
			return coap.NotImplemented
		}
		o.rebootFunc()
		return coap.Changed
	default:
		return coap.MethodNotAllowed
	}
}

// Copy clones the object; the reboot hook stays behind on the original
func (o *Object) Copy() lwm2m.ObjectCode {
	return &Object{info: o.info}
}

func (o *Object) String() string {
	return fmt.Sprintf("Device object: manufacturer=%s model=%s serial=%s firmware=%s binding=%s",
		o.info.Manufacturer, o.info.ModelNumber, o.info.SerialNumber, o.info.FirmwareVersion, o.info.BindingModes)
}
