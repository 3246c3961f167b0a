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

import "time"

// Step is the engine's only time-driven entry point. The host calls it on any cadence
// with the longest sleep it is willing to take; the engine retransmits
// overdue exchanges, refreshes registrations, starts a requested bootstrap,
// expires server-mode clients, and shrinks timeout so the host wakes up no
// later than the earliest pending deadline.
func (c *Context) Step(timeout *time.Duration) error {
	if c.closed {
		return ErrClosed
	}
	if *timeout < 0 {
		*timeout = 0
	}
	now := c.now()

	c.stepTransactions(now, timeout)

	if c.endpoint != "" {
		if c.bsState == BootstrapRequested || c.bootstrapRequired() {
			c.startBootstrap()
		}
		c.stepRegistrations(now, timeout)
	}

	// exchanges queued during this step have pending deadlines too
	for _, t := range c.transactions {
		shrinkTimeout(timeout, t.deadline.Sub(now))
	}

	c.sweepClients(now, timeout)
	return nil
}
