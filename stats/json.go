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

package stats

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
)

// JSONStats is what we want to report as stats via http
type JSONStats struct {
	report counters

	counters
}

// NewJSONStats returns a new JSONStats
func NewJSONStats() *JSONStats {
	return &JSONStats{}
}

// Start runs the http server reporting the snapshot
func (s *JSONStats) Start(monitoringPort int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)
	addr := fmt.Sprintf(":%d", monitoringPort)
	log.Infof("Starting http json server on %s", addr)
	err := http.ListenAndServe(addr, mux)
	if err != nil {
		log.Fatalf("Failed to start listener: %v", err)
	}
}

// handleRequest is a handler used for all http monitoring requests
func (s *JSONStats) handleRequest(w http.ResponseWriter, _ *http.Request) {
	js, err := json.Marshal(s.report.toMap())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(js); err != nil {
		log.Errorf("Failed to reply: %v", err)
	}
}

// Snapshot the values so they can be reported atomically
func (s *JSONStats) Snapshot() {
	s.counters.copy(&s.report)
}

// Reset atomically sets all the counters to 0
func (s *JSONStats) Reset() {
	s.reset()
}

// IncRX atomically adds 1 to the received datagram counter
func (s *JSONStats) IncRX() {
	atomic.AddInt64(&s.rx, 1)
}

// IncTX atomically adds 1 to the sent datagram counter
func (s *JSONStats) IncTX() {
	atomic.AddInt64(&s.tx, 1)
}

// IncRegistration atomically adds 1 to the registration counter
func (s *JSONStats) IncRegistration() {
	atomic.AddInt64(&s.registrations, 1)
}

// IncUpdate atomically adds 1 to the registration update counter
func (s *JSONStats) IncUpdate() {
	atomic.AddInt64(&s.updates, 1)
}

// IncDeregistration atomically adds 1 to the deregistration counter
func (s *JSONStats) IncDeregistration() {
	atomic.AddInt64(&s.deregistrations, 1)
}

// IncExpired atomically adds 1 to the expired client counter
func (s *JSONStats) IncExpired() {
	atomic.AddInt64(&s.expired, 1)
}

// IncNotification atomically adds 1 to the notification counter
func (s *JSONStats) IncNotification() {
	atomic.AddInt64(&s.notifications, 1)
}

// SetClients atomically sets the registered client gauge
func (s *JSONStats) SetClients(clients int64) {
	atomic.StoreInt64(&s.clients, clients)
}

// SetObservations atomically sets the active observation gauge
func (s *JSONStats) SetObservations(observations int64) {
	atomic.StoreInt64(&s.observations, observations)
}
