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
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// routing roots of the LwM2M interfaces
const (
	registrationRoot = "rd"
	bootstrapRoot    = "bs"
)

// ErrInvalidURI is returned for paths that are not /object[/instance[/resource]]
var ErrInvalidURI = errors.New("invalid lwm2m uri")

// URI addresses an object, an object instance or a single resource,
// depending on how many of the three levels are present.
type URI struct {
	ObjectID    uint16
	InstanceID  uint16
	ResourceID  uint16
	HasInstance bool
	HasResource bool
}

// NewObjectURI addresses a whole object
func NewObjectURI(objectID uint16) URI {
	return URI{ObjectID: objectID}
}

// NewInstanceURI addresses one object instance
func NewInstanceURI(objectID, instanceID uint16) URI {
	return URI{ObjectID: objectID, InstanceID: instanceID, HasInstance: true}
}

// NewResourceURI addresses one resource
func NewResourceURI(objectID, instanceID, resourceID uint16) URI {
	return URI{ObjectID: objectID, InstanceID: instanceID, ResourceID: resourceID, HasInstance: true, HasResource: true}
}

// ParseURI parses up to three numeric segments into a URI. Non-numeric
// segments, segments over 16 bits and deeper paths are rejected.
func ParseURI(path string) (URI, error) {
	return parseSegments(splitSegments(path))
}

func splitSegments(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func parseSegments(segments []string) (URI, error) {
	var uri URI
	if len(segments) == 0 || len(segments) > 3 {
		return uri, fmt.Errorf("%w: %d segments", ErrInvalidURI, len(segments))
	}
	ids := make([]uint16, len(segments))
	for i, s := range segments {
		v, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return uri, fmt.Errorf("%w: segment %q", ErrInvalidURI, s)
		}
		ids[i] = uint16(v)
	}
	uri.ObjectID = ids[0]
	if len(ids) > 1 {
		uri.InstanceID = ids[1]
		uri.HasInstance = true
	}
	if len(ids) > 2 {
		uri.ResourceID = ids[2]
		uri.HasResource = true
	}
	return uri, nil
}

func (u URI) String() string {
	switch {
	case u.HasResource:
		return fmt.Sprintf("/%d/%d/%d", u.ObjectID, u.InstanceID, u.ResourceID)
	case u.HasInstance:
		return fmt.Sprintf("/%d/%d", u.ObjectID, u.InstanceID)
	default:
		return fmt.Sprintf("/%d", u.ObjectID)
	}
}

// covers tells if a change to other is visible through an observation of u:
// either uri is a prefix of the other one.
func (u URI) covers(other URI) bool {
	if u.ObjectID != other.ObjectID {
		return false
	}
	if !u.HasInstance || !other.HasInstance {
		return true
	}
	if u.InstanceID != other.InstanceID {
		return false
	}
	if !u.HasResource || !other.HasResource {
		return true
	}
	return u.ResourceID == other.ResourceID
}
