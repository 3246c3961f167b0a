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

	"github.com/facebook/lwm2m/corelink"
)

func init() {
	RootCmd.AddCommand(linkCmd)
}

var linkCmd = &cobra.Command{
	Use:   "link <payload>",
	Short: "Parse a CoRE link-format registration payload",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()

		links, err := corelink.Parse([]byte(args[0]))
		if err != nil {
			log.Fatal(err)
		}
		for _, l := range links {
			if l.HasInstance {
				fmt.Printf("object %d instance %d\n", l.ObjectID, l.InstanceID)
			} else {
				fmt.Printf("object %d\n", l.ObjectID)
			}
		}
	},
}
