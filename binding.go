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

// Binding is the transport binding mode announced at registration:
// UDP and/or SMS, with the Q variants meaning queued delivery.
type Binding string

// binding modes
const (
	BindingU   Binding = "U"
	BindingUQ  Binding = "UQ"
	BindingS   Binding = "S"
	BindingSQ  Binding = "SQ"
	BindingUS  Binding = "US"
	BindingUQS Binding = "UQS"
)

// Valid tells if the binding is one of the six defined modes
func (b Binding) Valid() bool {
	switch b {
	case BindingU, BindingUQ, BindingS, BindingSQ, BindingUS, BindingUQS:
		return true
	}
	return false
}

// RequiresMSISDN tells if the binding includes an SMS leg and therefore
// needs an MSISDN
func (b Binding) RequiresMSISDN() bool {
	switch b {
	case BindingS, BindingSQ, BindingUS, BindingUQS:
		return true
	}
	return false
}
