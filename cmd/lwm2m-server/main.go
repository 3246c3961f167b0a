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

package main

import (
	"flag"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/lwm2m"
	"github.com/facebook/lwm2m/coap"
	"github.com/facebook/lwm2m/stats"
)

func main() {
	var ipaddr string
	var port int
	var monitoringPort int
	var logLevel string
	var maxSleep time.Duration
	var metricInterval time.Duration

	flag.StringVar(&ipaddr, "ip", "::", "IP to bind on")
	flag.IntVar(&port, "port", 5683, "UDP port to listen on")
	flag.IntVar(&monitoringPort, "monitoringport", 8889, "Port to run monitoring server on")
	flag.StringVar(&logLevel, "loglevel", "info", "Set a log level. Can be: debug, info, warning, error")
	flag.DurationVar(&maxSleep, "maxsleep", 10*time.Second, "Longest interval between engine steps")
	flag.DurationVar(&metricInterval, "metricinterval", time.Minute, "Interval between stats snapshots")
	flag.Parse()

	switch logLevel {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Fatalf("Unrecognized log level: %v", logLevel)
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP(ipaddr), Port: port})
	if err != nil {
		log.Fatalf("Listening on %s:%d: %v", ipaddr, port, err)
	}
	defer conn.Close()
	log.Infof("Listening on %s", conn.LocalAddr())

	st := stats.NewJSONStats()
	go st.Start(monitoringPort)

	// sessions are the text form of the peer address
	send := func(s lwm2m.Session, data []byte) error {
		addr, err := net.ResolveUDPAddr("udp", s.(string))
		if err != nil {
			return err
		}
		st.IncTX()
		_, err = conn.WriteToUDP(data, addr)
		return err
	}

	ctx, err := lwm2m.New(nil, send)
	if err != nil {
		log.Fatal(err)
	}
	defer ctx.Close()

	ctx.SetMonitor(func(clientID uint16, location string, code coap.Code, _ []byte) {
		log.Infof("Monitor: client %d at %s: %s", clientID, location, code)
		switch code {
		case coap.Created:
			st.IncRegistration()
		case coap.Changed:
			st.IncUpdate()
		case coap.Deleted:
			st.IncDeregistration()
		}
		st.SetClients(int64(len(ctx.Clients())))
	})

	buf := make([]byte, 1500)
	lastSnapshot := time.Now()
	for {
		timeout := maxSleep
		if err := ctx.Step(&timeout); err != nil {
			log.Fatalf("Step failed: %v", err)
		}
		if time.Since(lastSnapshot) >= metricInterval {
			st.Snapshot()
			lastSnapshot = time.Now()
		}
		if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			log.Fatalf("Setting read deadline: %v", err)
		}
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			log.Errorf("Read failed: %v", err)
			continue
		}
		st.IncRX()
		ctx.HandlePacket(buf[:n], addr.String())
	}
}
