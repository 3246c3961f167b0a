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
	"fmt"
	"net"
	"os"

	yaml "gopkg.in/yaml.v2"

	"github.com/facebook/lwm2m"
	"github.com/facebook/lwm2m/objects/security"
)

// ServerConfig is one server the client talks to
type ServerConfig struct {
	ShortID   uint16 `yaml:"shortid"`
	Address   string `yaml:"address"` // host:port
	Bootstrap bool   `yaml:"bootstrap"`
}

// Config specifies lwm2m-client run options
type Config struct {
	Endpoint     string         `yaml:"endpoint"`
	Binding      string         `yaml:"binding"`
	MSISDN       string         `yaml:"msisdn"`
	Lifetime     int            `yaml:"lifetime"` // seconds
	Manufacturer string         `yaml:"manufacturer"`
	Model        string         `yaml:"model"`
	Serial       string         `yaml:"serial"`
	Firmware     string         `yaml:"firmware"`
	Servers      []ServerConfig `yaml:"servers"`

	sessions map[string]*net.UDPAddr
}

// ReadConfig reads config from the file
func ReadConfig(path string) (*Config, error) {
	c := &Config{
		Binding:  string(lwm2m.BindingU),
		Lifetime: 300,
	}
	cData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(cData, c); err != nil {
		return nil, err
	}

	if c.Endpoint == "" {
		return nil, fmt.Errorf("config has no endpoint name")
	}
	if !lwm2m.Binding(c.Binding).Valid() {
		return nil, fmt.Errorf("config has invalid binding %q", c.Binding)
	}
	if len(c.Servers) == 0 {
		return nil, fmt.Errorf("config lists no servers")
	}
	for _, srv := range c.Servers {
		if srv.ShortID == 0 || srv.Address == "" {
			return nil, fmt.Errorf("server entries need a shortid and an address")
		}
	}

	c.sessions = make(map[string]*net.UDPAddr)
	return c, nil
}

// server finds the config entry for a short server ID
func (c *Config) server(shortID uint16) *ServerConfig {
	for n := range c.Servers {
		if c.Servers[n].ShortID == shortID {
			return &c.Servers[n]
		}
	}
	return nil
}

// sessionFor returns a stable session handle per peer address, so the
// engine sees one identity however often the peer shows up
func (c *Config) sessionFor(addr *net.UDPAddr) lwm2m.Session {
	key := addr.String()
	if s, ok := c.sessions[key]; ok {
		return s
	}
	c.sessions[key] = addr
	return addr
}

// securityInstances seeds the Security object from the server list
func (c *Config) securityInstances() []security.Instance {
	instances := make([]security.Instance, 0, len(c.Servers))
	for n, srv := range c.Servers {
		instances = append(instances, security.Instance{
			ID:            uint16(n),
			ServerURI:     "coap://" + srv.Address,
			IsBootstrap:   srv.Bootstrap,
			SecurityMode:  security.ModeNone,
			ShortServerID: srv.ShortID,
		})
	}
	return instances
}
