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

package cmd

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/lwm2m"
)

func init() {
	RootCmd.AddCommand(uriCmd)
}

var uriCmd = &cobra.Command{
	Use:   "uri <path>",
	Short: "Parse an LwM2M object path",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()

		uri, err := lwm2m.ParseURI(args[0])
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("object:   %d\n", uri.ObjectID)
		if uri.HasInstance {
			fmt.Printf("instance: %d\n", uri.InstanceID)
		}
		if uri.HasResource {
			fmt.Printf("resource: %d\n", uri.ResourceID)
		}
	},
}
