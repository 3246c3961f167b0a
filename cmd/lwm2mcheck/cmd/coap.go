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
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/lwm2m/coap"
	"github.com/facebook/lwm2m/tlv"
)

func init() {
	RootCmd.AddCommand(coapCmd)
}

var coapCmd = &cobra.Command{
	Use:   "coap <hex>",
	Short: "Decode a hex-encoded CoAP datagram",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()

		data, err := hex.DecodeString(strings.ReplaceAll(args[0], " ", ""))
		if err != nil {
			log.Fatalf("Bad hex input: %v", err)
		}
		p, err := coap.ParsePacket(data)
		if err != nil {
			log.Fatalf("Bad CoAP datagram: %v", err)
		}

		bold := color.New(color.Bold)
		bold.Printf("%s %s", p.Type, p.Code)
		fmt.Printf(" mid=%d token=%s\n", p.MessageID, hex.EncodeToString(p.Token))
		if len(p.URIPath) > 0 {
			fmt.Printf("uri-path:      %s\n", p.URIPathString())
		}
		for _, q := range p.URIQuery {
			fmt.Printf("uri-query:     %s\n", q)
		}
		if len(p.LocationPath) > 0 {
			fmt.Printf("location-path: %s\n", p.LocationPathString())
		}
		if p.Observe >= 0 {
			fmt.Printf("observe:       %d\n", p.Observe)
		}
		if p.ContentFormat >= 0 {
			fmt.Printf("content:       %d\n", p.ContentFormat)
		}
		if len(p.Payload) == 0 {
			return
		}
		if p.ContentFormat == coap.MediaTypeTLV {
			items, err := tlv.Parse(p.Payload)
			if err == nil {
				printItems(items, 0)
				return
			}
		}
		fmt.Printf("payload:       %s\n", hex.EncodeToString(p.Payload))
	},
}
