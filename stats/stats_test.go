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
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_jsonStatsCounters(t *testing.T) {
	s := NewJSONStats()
	s.IncRX()
	s.IncRX()
	s.IncTX()
	s.IncRegistration()
	s.IncUpdate()
	s.IncDeregistration()
	s.IncExpired()
	s.IncNotification()
	s.SetClients(3)
	s.SetObservations(2)
	s.Snapshot()

	m := s.report.toMap()
	assert.Equal(t, int64(2), m["lwm2m.rx"])
	assert.Equal(t, int64(1), m["lwm2m.tx"])
	assert.Equal(t, int64(1), m["lwm2m.registrations"])
	assert.Equal(t, int64(1), m["lwm2m.updates"])
	assert.Equal(t, int64(1), m["lwm2m.deregistrations"])
	assert.Equal(t, int64(1), m["lwm2m.expired"])
	assert.Equal(t, int64(1), m["lwm2m.notifications"])
	assert.Equal(t, int64(3), m["lwm2m.clients"])
	assert.Equal(t, int64(2), m["lwm2m.observations"])

	s.Reset()
	s.Snapshot()
	assert.Equal(t, int64(0), s.report.toMap()["lwm2m.rx"])
}

func Test_snapshotIsStable(t *testing.T) {
	s := NewJSONStats()
	s.IncRX()
	s.Snapshot()
	s.IncRX()
	// the report keeps the snapshotted value until the next Snapshot
	assert.Equal(t, int64(1), s.report.toMap()["lwm2m.rx"])
}

func Test_fetchCounters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, err := w.Write([]byte(`{"lwm2m.rx": 5, "lwm2m.clients": 1}`))
		require.Nil(t, err)
	}))
	defer srv.Close()

	counters, err := FetchCounters(srv.URL)
	require.Nil(t, err)
	assert.Equal(t, Counters{"lwm2m.rx": 5, "lwm2m.clients": 1}, counters)
}

func Test_flattenKey(t *testing.T) {
	assert.Equal(t, "lwm2m_registrations", flattenKey("lwm2m.registrations"))
	assert.Equal(t, "a_b_c", flattenKey("a b-c"))
}
