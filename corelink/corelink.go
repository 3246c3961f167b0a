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

// Package corelink reads and writes the RFC 6690 link-format listings LwM2M
// uses as registration payloads: a comma-separated list of </object> and
// </object/instance> references.
package corelink

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidLink is returned for entries that are not of the
// </number[/number]> form
var ErrInvalidLink = errors.New("invalid link-format entry")

// Link references one object or object instance
type Link struct {
	ObjectID    uint16
	InstanceID  uint16
	HasInstance bool
}

func (l Link) String() string {
	if l.HasInstance {
		return fmt.Sprintf("</%d/%d>", l.ObjectID, l.InstanceID)
	}
	return fmt.Sprintf("</%d>", l.ObjectID)
}

// Build produces the link-format payload for a registration
func Build(links []Link) []byte {
	entries := make([]string, 0, len(links))
	for _, l := range links {
		entries = append(entries, l.String())
	}
	return []byte(strings.Join(entries, ","))
}

// Parse decodes a link-format payload. Attribute parameters after a
// semicolon are ignored, the target path must be one or two 16-bit numeric
// segments.
func Parse(payload []byte) ([]Link, error) {
	var links []Link
	for _, entry := range strings.Split(string(payload), ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		// drop link parameters such as ;rt="oma.lwm2m"
		if i := strings.IndexByte(entry, ';'); i >= 0 {
			entry = entry[:i]
		}
		if len(entry) < 2 || entry[0] != '<' || entry[len(entry)-1] != '>' {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLink, entry)
		}
		target := strings.Trim(entry[1:len(entry)-1], "/")
		if target == "" {
			// root reference, carries attributes only
			continue
		}
		segments := strings.Split(target, "/")
		if len(segments) > 2 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLink, entry)
		}
		var l Link
		id, err := parseID(segments[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidLink, entry)
		}
		l.ObjectID = id
		if len(segments) == 2 {
			id, err = parseID(segments[1])
			if err != nil {
				return nil, fmt.Errorf("%w: %q", ErrInvalidLink, entry)
			}
			l.InstanceID = id
			l.HasInstance = true
		}
		links = append(links, l)
	}
	return links, nil
}

func parseID(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	return uint16(v), err
}
