/* Copyright 2026 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config reads engine and session settings from YAML.
//
// A file has an engine section, a default section and a list of
// sessions.  Each session's settings are the defaults overlaid with
// the session's own keys:
//
//	engine:
//	  Dispatch: session
//	  Store: bolt
//	  StorePath: fix.db
//	default:
//	  BeginString: FIX.4.4
//	  SenderCompID: ENGINE
//	  DataDictionary: builtin:FIX.4.4
//	  NonStopSession: true
//	sessions:
//	  - TargetCompID: PEER1
//	    ConnectionType: acceptor
//	  - TargetCompID: PEER2
//	    ConnectionType: initiator
//	    HeartBtInt: 30
//
// Environment variables prefixed with FIX_ override keys present in
// the file, e.g. FIX_DEFAULT_HEARTBTINT or FIX_ENGINE_STOREPATH.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Comcast/fixsession/dict"
	"github.com/Comcast/fixsession/mqttlog"
	"github.com/Comcast/fixsession/session"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const EnvPrefix = "FIX"

// Engine holds the settings that aren't per session.
type Engine struct {
	// Dispatch is "single" or "session".
	Dispatch   string        `mapstructure:"Dispatch" json:"Dispatch" validate:"oneof=single session"`
	QueueSize  int           `mapstructure:"QueueSize" json:"QueueSize" validate:"gte=0"`
	PollPeriod time.Duration `mapstructure:"PollPeriod" json:"PollPeriod" validate:"gte=0"`

	TickInterval time.Duration `mapstructure:"TickInterval" json:"TickInterval" validate:"gt=0"`

	// Store is "memory" or "bolt".
	Store     string `mapstructure:"Store" json:"Store" validate:"oneof=memory bolt"`
	StorePath string `mapstructure:"StorePath" json:"StorePath,omitempty" validate:"required_if=Store bolt"`

	// MQTT, when it has a Broker, adds a message log that publishes
	// to the broker.
	MQTT mqttlog.Options `mapstructure:"MQTT" json:"MQTT"`
}

// Config is a whole settings file.
type Config struct {
	Engine   Engine             `json:"engine"`
	Sessions []session.Settings `json:"sessions"`
}

type file struct {
	Engine   Engine                   `mapstructure:"engine"`
	Default  map[string]interface{}   `mapstructure:"default"`
	Sessions []map[string]interface{} `mapstructure:"sessions"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("engine.Dispatch", "session")
	v.SetDefault("engine.QueueSize", 1024)
	v.SetDefault("engine.PollPeriod", 100*time.Millisecond)
	v.SetDefault("engine.TickInterval", time.Second)
	v.SetDefault("engine.Store", "memory")
	return v
}

// Load reads a settings file.
func Load(filename string) (*Config, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	c, err := Read(bytes.NewReader(bs))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return c, nil
}

// Read parses and checks settings.  Every session's settings are
// validated, so a bad file fails here rather than later.
func Read(r io.Reader) (*Config, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, err
	}

	var f file
	if err := v.Unmarshal(&f); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(&f.Engine); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	c := &Config{
		Engine:   f.Engine,
		Sessions: make([]session.Settings, 0, len(f.Sessions)),
	}
	seen := make(map[string]int, len(f.Sessions))
	for i, m := range f.Sessions {
		s, err := merge(f.Default, m)
		if err != nil {
			return nil, fmt.Errorf("session %d: %w", i, err)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("session %d (%s): %w", i, s.ID(), err)
		}
		k := s.ID().String()
		if j, have := seen[k]; have {
			return nil, fmt.Errorf("session %d: same ID as session %d: %s", i, j, k)
		}
		seen[k] = i
		c.Sessions = append(c.Sessions, s)
	}
	if len(c.Sessions) == 0 {
		return nil, fmt.Errorf("no sessions")
	}
	return c, nil
}

// merge overlays a session's keys on the defaults, which are in turn
// overlaid on session.DefaultSettings.
func merge(defaults, m map[string]interface{}) (session.Settings, error) {
	s := session.DefaultSettings()
	v := viper.New()
	if err := v.MergeConfigMap(defaults); err != nil {
		return s, err
	}
	if err := v.MergeConfigMap(m); err != nil {
		return s, err
	}
	err := v.Unmarshal(&s)
	return s, err
}

// Dictionaries loads the dictionaries for every session.  Sessions
// that name the same dictionaries share one Registry.  Sessions that
// don't use a dictionary get none.
func Dictionaries(c *Config) (map[string]*dict.Registry, error) {
	var (
		acc    = make(map[string]*dict.Registry, len(c.Sessions))
		loaded = make(map[string]*dict.Registry, 4)
	)
	for i := range c.Sessions {
		s := &c.Sessions[i]
		if !s.UseDataDictionary {
			continue
		}
		k := strings.Join([]string{
			s.BeginString,
			s.DataDictionary,
			s.TransportDataDictionary,
			strings.Join(s.AppDataDictionary, ","),
			s.NumericRepresentation,
		}, "|")
		r, have := loaded[k]
		if !have {
			var err error
			if r, err = session.Dictionaries(s); err != nil {
				return nil, fmt.Errorf("session %s: %w", s.ID(), err)
			}
			loaded[k] = r
		}
		acc[s.ID().String()] = r
	}
	return acc, nil
}
