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
	"unicode"

	"github.com/fatih/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/facebook/lwm2m/tlv"
)

func init() {
	RootCmd.AddCommand(tlvCmd)
}

func printItems(items []tlv.Resource, indent int) {
	bold := color.New(color.Bold)
	for _, r := range items {
		prefix := strings.Repeat("  ", indent)
		bold.Printf("%s%s %d", prefix, r.Type, r.ID)
		if len(r.Children) > 0 {
			fmt.Println(":")
			printItems(r.Children, indent+1)
			continue
		}
		fmt.Printf(" = %s\n", describeValue(r.Value))
	}
}

// describeValue prints the decodings a value allows: integers, booleans and
// printable strings are ambiguous in TLV, the reader picks by schema
func describeValue(value []byte) string {
	var forms []string
	if v, err := tlv.DecodeInt(value); err == nil {
		forms = append(forms, fmt.Sprintf("int %d", v))
	}
	if v, err := tlv.DecodeBool(value); err == nil {
		forms = append(forms, fmt.Sprintf("bool %t", v))
	}
	if printable(value) {
		forms = append(forms, fmt.Sprintf("string %q", value))
	}
	if len(forms) == 0 {
		return fmt.Sprintf("opaque %s", hex.EncodeToString(value))
	}
	return strings.Join(forms, " | ")
}

func printable(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, r := range string(b) {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

var tlvCmd = &cobra.Command{
	Use:   "tlv <hex>",
	Short: "Decode a hex-encoded LwM2M TLV payload",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()

		data, err := hex.DecodeString(strings.ReplaceAll(args[0], " ", ""))
		if err != nil {
			log.Fatalf("Bad hex input: %v", err)
		}
		items, err := tlv.Parse(data)
		if err != nil {
			log.Fatalf("Bad TLV payload: %v", err)
		}
		printItems(items, 0)
	},
}
