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

package config

import (
	"github.com/Comcast/fixsession/dispatch"
	"github.com/Comcast/fixsession/engine"
	"github.com/Comcast/fixsession/mqttlog"
	"github.com/Comcast/fixsession/session"
	"github.com/Comcast/fixsession/store/bolt"

	"go.uber.org/zap"
)

// Build makes an Engine with every configured session registered.
// The returned function releases what Build opened.
func Build(c *Config, app session.Application, logger *zap.Logger) (*engine.Engine, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var closers []func() error
	closer := func() error {
		var first error
		for i := len(closers) - 1; 0 <= i; i-- {
			if err := closers[i](); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	fail := func(err error) (*engine.Engine, func() error, error) {
		closer()
		return nil, nil, err
	}

	regs, err := Dictionaries(c)
	if err != nil {
		return fail(err)
	}

	dc := dispatch.Config{
		QueueSize:  c.Engine.QueueSize,
		PollPeriod: c.Engine.PollPeriod,
		Logger:     logger,
	}
	var strategy dispatch.Strategy
	if c.Engine.Dispatch == "single" {
		strategy = dispatch.NewSingleThreaded(dc)
	} else {
		strategy = dispatch.NewPerSession(dc)
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithStrategy(strategy),
		engine.WithApplication(app),
		engine.WithTickInterval(c.Engine.TickInterval),
	}

	if c.Engine.Store == "bolt" {
		storage := bolt.NewStorage(c.Engine.StorePath, logger)
		if err := storage.Open(); err != nil {
			return fail(err)
		}
		closers = append(closers, storage.Close)
		opts = append(opts, engine.WithStoreFactory(storage))
	}

	logs := session.ZapLogFactory(logger)
	if c.Engine.MQTT.Broker != "" {
		client, err := mqttlog.Connect(c.Engine.MQTT, logger)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, func() error {
			client.Disconnect(250)
			return nil
		})
		pub := mqttlog.Factory(client, c.Engine.MQTT, logger)
		logs = func(id session.SessionID) (session.Log, error) {
			ml, err := pub(id)
			if err != nil {
				return nil, err
			}
			return session.MultiLog(session.NewZapLog(logger, id), ml), nil
		}
	}
	opts = append(opts, engine.WithLogFactory(logs))

	e := engine.New(opts...)
	for _, s := range c.Sessions {
		var sopts []session.Option
		if r, have := regs[s.ID().String()]; have {
			sopts = append(sopts, session.WithRegistry(r))
		}
		if _, err := e.Create(s, sopts...); err != nil {
			return fail(err)
		}
	}
	return e, closer, nil
}
