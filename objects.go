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

	log "github.com/sirupsen/logrus"

	"github.com/facebook/lwm2m/coap"
	"github.com/facebook/lwm2m/tlv"
)

// well-known object IDs
const (
	SecurityObjectID uint16 = 0
	ServerObjectID   uint16 = 1
	DeviceObjectID   uint16 = 3
)

// ObjectCode is the device-specific implementation behind an object ID.
// The engine requires only instance enumeration; everything else is an
// opt-in capability detected with a type assertion. Operations whose
// capability is missing answer 5.01 Not Implemented.
type ObjectCode interface {
	// InstanceIDs lists the live instance IDs in creation order
	InstanceIDs() []uint16
}

// Reader reads resources of one instance. An empty input slice asks for the
// default resource set; otherwise the implementation fills the requested
// IDs. Per-resource outcomes follow the object specification: 4.04 for
// unknown resources, 4.05 for write-only ones.
type Reader interface {
	Read(instanceID uint16, resources []tlv.Resource) ([]tlv.Resource, coap.Code)
}

// Writer applies resource values to one instance. While bootstrapping is
// true, resources that are normally immutable (such as the short server ID)
// accept writes.
type Writer interface {
	Write(instanceID uint16, resources []tlv.Resource, bootstrapping bool) coap.Code
}

// Creator allocates a new instance with default values and applies the
// given resources to it. The create is atomic: any failure removes the
// half-built instance.
type Creator interface {
	Create(instanceID uint16, resources []tlv.Resource) coap.Code
}

// Deleter removes one instance
type Deleter interface {
	Delete(instanceID uint16) coap.Code
}

// Executor runs the executable resource with the request payload as argument
type Executor interface {
	Execute(instanceID, resourceID uint16, args []byte) coap.Code
}

// Closer releases whatever the object holds; called once, from Context.Close
// or when a failed bootstrap swaps the object for its snapshot
type Closer interface {
	Close()
}

// Copier returns a deep clone of the object state, used to snapshot objects
// before a bootstrap rewrites them
type Copier interface {
	Copy() ObjectCode
}

// Object binds an object ID to its implementation
type Object struct {
	ID   uint16
	Code ObjectCode
}

func (c *Context) findObject(id uint16) *Object {
	for _, o := range c.objects {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (o *Object) hasInstance(id uint16) bool {
	for _, i := range o.Code.InstanceIDs() {
		if i == id {
			return true
		}
	}
	return false
}

// readInstance reads one instance, either the default resource set or the
// IDs named in resources
func (o *Object) readInstance(instanceID uint16, resources []tlv.Resource) ([]tlv.Resource, coap.Code) {
	reader, ok := o.Code.(Reader)
	if !ok {
		return nil, coap.NotImplemented
	}
	return reader.Read(instanceID, resources)
}

// readObject reads every instance and wraps each in an object-instance item
func (o *Object) readObject() ([]tlv.Resource, coap.Code) {
	ids := o.Code.InstanceIDs()
	if len(ids) == 0 {
		return nil, coap.NotFound
	}
	items := make([]tlv.Resource, 0, len(ids))
	for _, id := range ids {
		instance, code := o.readInstance(id, nil)
		if code != coap.Content {
			return nil, code
		}
		items = append(items, tlv.ObjectInstance(id, instance))
	}
	return items, coap.Content
}

func (o *Object) write(instanceID uint16, resources []tlv.Resource, bootstrapping bool) coap.Code {
	writer, ok := o.Code.(Writer)
	if !ok {
		return coap.NotImplemented
	}
	return writer.Write(instanceID, resources, bootstrapping)
}

func (o *Object) create(instanceID uint16, resources []tlv.Resource) coap.Code {
	creator, ok := o.Code.(Creator)
	if !ok {
		return coap.NotImplemented
	}
	if o.hasInstance(instanceID) {
		return coap.BadRequest
	}
	return creator.Create(instanceID, resources)
}

func (o *Object) delete(instanceID uint16) coap.Code {
	deleter, ok := o.Code.(Deleter)
	if !ok {
		return coap.NotImplemented
	}
	return deleter.Delete(instanceID)
}

func (o *Object) execute(instanceID, resourceID uint16, args []byte) coap.Code {
	executor, ok := o.Code.(Executor)
	if !ok {
		return coap.NotImplemented
	}
	if !o.hasInstance(instanceID) {
		return coap.NotFound
	}
	return executor.Execute(instanceID, resourceID, args)
}

// nextInstanceID picks the lowest unused instance ID, used for creates that
// do not name one
func (o *Object) nextInstanceID() uint16 {
	used := make(map[uint16]bool)
	for _, id := range o.Code.InstanceIDs() {
		used[id] = true
	}
	for id := uint16(0); ; id++ {
		if !used[id] {
			return id
		}
	}
}

// backupObjects snapshots every copyable object before a bootstrap server
// starts rewriting the configuration
func (c *Context) backupObjects() {
	c.backup = make(map[uint16]ObjectCode)
	for _, o := range c.objects {
		copier, ok := o.Code.(Copier)
		if !ok {
			log.Debugf("Object %d is not copyable, skipping backup", o.ID)
			continue
		}
		c.backup[o.ID] = copier.Copy()
		if s, ok := o.Code.(fmt.Stringer); ok {
			log.Debugf("Backed up object %d: %s", o.ID, s.String())
		}
	}
}

// restoreObjects puts the backed up state back after a failed bootstrap.
// Objects are swapped wholesale for their snapshots; observations address
// URIs and keep working, and transactions in flight are left alone.
func (c *Context) restoreObjects() {
	if c.backup == nil {
		return
	}
	for _, o := range c.objects {
		snapshot, ok := c.backup[o.ID]
		if !ok {
			continue
		}
		if closer, ok := o.Code.(Closer); ok {
			closer.Close()
		}
		o.Code = snapshot
	}
	c.backup = nil
}

// closeObjects tears the registry down in reverse order of registration
func (c *Context) closeObjects() {
	for i := len(c.objects) - 1; i >= 0; i-- {
		if closer, ok := c.objects[i].Code.(Closer); ok {
			closer.Close()
		}
	}
	c.objects = nil
}
