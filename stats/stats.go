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

/*
Package stats implements statistics collection and reporting for the LwM2M
daemons: counters for received and sent datagrams, the registration interface
and notifications, plus client and observation gauges, reported over a JSON
monitoring endpoint.
*/
package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

// Stats is a metric collection interface
type Stats interface {
	// Start starts a stat reporter, use this for passive reporters
	Start(monitoringPort int)

	// Snapshot the values so they can be reported atomically
	Snapshot()

	// Reset atomically sets all the counters to 0
	Reset()

	// IncRX atomically adds 1 to the received datagram counter
	IncRX()

	// IncTX atomically adds 1 to the sent datagram counter
	IncTX()

	// IncRegistration atomically adds 1 to the registration counter
	IncRegistration()

	// IncUpdate atomically adds 1 to the registration update counter
	IncUpdate()

	// IncDeregistration atomically adds 1 to the deregistration counter
	IncDeregistration()

	// IncExpired atomically adds 1 to the expired client counter
	IncExpired()

	// IncNotification atomically adds 1 to the notification counter
	IncNotification()

	// SetClients atomically sets the registered client gauge
	SetClients(clients int64)

	// SetObservations atomically sets the active observation gauge
	SetObservations(observations int64)
}

// counters is the set of values the daemons report
type counters struct {
	rx              int64
	tx              int64
	registrations   int64
	updates         int64
	deregistrations int64
	expired         int64
	notifications   int64
	clients         int64
	observations    int64
}

func (c *counters) copy(dst *counters) {
	atomic.StoreInt64(&dst.rx, atomic.LoadInt64(&c.rx))
	atomic.StoreInt64(&dst.tx, atomic.LoadInt64(&c.tx))
	atomic.StoreInt64(&dst.registrations, atomic.LoadInt64(&c.registrations))
	atomic.StoreInt64(&dst.updates, atomic.LoadInt64(&c.updates))
	atomic.StoreInt64(&dst.deregistrations, atomic.LoadInt64(&c.deregistrations))
	atomic.StoreInt64(&dst.expired, atomic.LoadInt64(&c.expired))
	atomic.StoreInt64(&dst.notifications, atomic.LoadInt64(&c.notifications))
	atomic.StoreInt64(&dst.clients, atomic.LoadInt64(&c.clients))
	atomic.StoreInt64(&dst.observations, atomic.LoadInt64(&c.observations))
}

func (c *counters) reset() {
	atomic.StoreInt64(&c.rx, 0)
	atomic.StoreInt64(&c.tx, 0)
	atomic.StoreInt64(&c.registrations, 0)
	atomic.StoreInt64(&c.updates, 0)
	atomic.StoreInt64(&c.deregistrations, 0)
	atomic.StoreInt64(&c.expired, 0)
	atomic.StoreInt64(&c.notifications, 0)
	atomic.StoreInt64(&c.clients, 0)
	atomic.StoreInt64(&c.observations, 0)
}

// toMap converts counters to a map ready to be reported
func (c *counters) toMap() map[string]int64 {
	return map[string]int64{
		"lwm2m.rx":              atomic.LoadInt64(&c.rx),
		"lwm2m.tx":              atomic.LoadInt64(&c.tx),
		"lwm2m.registrations":   atomic.LoadInt64(&c.registrations),
		"lwm2m.updates":         atomic.LoadInt64(&c.updates),
		"lwm2m.deregistrations": atomic.LoadInt64(&c.deregistrations),
		"lwm2m.expired":         atomic.LoadInt64(&c.expired),
		"lwm2m.notifications":   atomic.LoadInt64(&c.notifications),
		"lwm2m.clients":         atomic.LoadInt64(&c.clients),
		"lwm2m.observations":    atomic.LoadInt64(&c.observations),
	}
}

// Counters is the monitoring content fetched from a running daemon
type Counters map[string]int64

// FetchCounters returns the counters of the daemon reachable at url
func FetchCounters(url string) (Counters, error) {
	c := http.Client{Timeout: 2 * time.Second}
	resp, err := c.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching counters: %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	counters := Counters{}
	if err := json.Unmarshal(body, &counters); err != nil {
		return nil, err
	}
	return counters, nil
}
