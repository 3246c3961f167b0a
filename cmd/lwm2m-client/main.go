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
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/facebook/lwm2m"
	"github.com/facebook/lwm2m/objects/device"
	"github.com/facebook/lwm2m/objects/security"
	"github.com/facebook/lwm2m/objects/server"
)

func main() {
	var configFile string
	var logLevel string
	var maxSleep time.Duration

	flag.StringVar(&configFile, "config", "/etc/lwm2m-client.yaml", "Path to the client config")
	flag.StringVar(&logLevel, "loglevel", "info", "Set a log level. Can be: debug, info, warning, error")
	flag.DurationVar(&maxSleep, "maxsleep", 10*time.Second, "Longest interval between engine steps")
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

	cfg, err := ReadConfig(configFile)
	if err != nil {
		log.Fatalf("Reading config: %v", err)
	}

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		log.Fatalf("Opening socket: %v", err)
	}
	defer conn.Close()

	connect := func(shortID uint16) (lwm2m.Session, error) {
		srv := cfg.server(shortID)
		if srv == nil {
			return nil, fmt.Errorf("no address configured for server %d", shortID)
		}
		addr, err := net.ResolveUDPAddr("udp", srv.Address)
		if err != nil {
			return nil, err
		}
		log.Infof("Connected to server %d at %s", shortID, addr)
		return cfg.sessionFor(addr), nil
	}
	send := func(s lwm2m.Session, data []byte) error {
		_, err := conn.WriteToUDP(data, s.(*net.UDPAddr))
		return err
	}

	ctx, err := lwm2m.New(connect, send)
	if err != nil {
		log.Fatal(err)
	}
	defer ctx.Close()

	objects := []*lwm2m.Object{
		security.New(cfg.securityInstances()...),
		serverObject(cfg),
		device.New(device.Info{
			Manufacturer:    cfg.Manufacturer,
			ModelNumber:     cfg.Model,
			SerialNumber:    cfg.Serial,
			FirmwareVersion: cfg.Firmware,
		}, func() { log.Warning("Reboot requested by server") }),
	}
	if err := ctx.Configure(cfg.Endpoint, lwm2m.Binding(cfg.Binding), cfg.MSISDN, objects); err != nil {
		log.Fatalf("Configure: %v", err)
	}
	for _, srv := range cfg.Servers {
		if err := ctx.AddServer(srv.ShortID, srv.Bootstrap); err != nil {
			log.Fatalf("AddServer %d: %v", srv.ShortID, err)
		}
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	buf := make([]byte, 1500)
	for {
		// the engine is single-threaded: shutdown is observed here so
		// Close never races Step or HandlePacket
		select {
		case <-sig:
			log.Info("Shutting down")
			ctx.Close()
			return
		default:
		}

		timeout := maxSleep
		if err := ctx.Step(&timeout); err != nil {
			log.Fatalf("Step failed: %v", err)
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
		ctx.HandlePacket(buf[:n], cfg.sessionFor(addr))
	}
}

// serverObject seeds the Server object with one instance per configured
// regular server
func serverObject(cfg *Config) *lwm2m.Object {
	for _, srv := range cfg.Servers {
		if !srv.Bootstrap {
			return server.New(srv.ShortID, lwm2m.Binding(cfg.Binding), int64(cfg.Lifetime), true)
		}
	}
	// bootstrap will provision the account
	return server.New(0, lwm2m.Binding(cfg.Binding), int64(cfg.Lifetime), true)
}
