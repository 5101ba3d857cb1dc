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

// Package fixsession is a FIX session engine.
//
// Messages are framed and tokenized by package wire, decoded against
// dictionaries from package dict into message.Message values, and
// checked by package validate.  Package session implements the
// session protocol: logon and logout, heartbeats and test requests,
// sequence checking with gap recovery, resends and rejects.
//
// Package engine keeps a registry of sessions and feeds them through
// a dispatch.Strategy, with a shared timer from package timers
// driving heartbeat and schedule checks.  Package config builds an
// engine from a YAML settings file.  Message stores live in session
// (in memory) and store/bolt (on disk), and mqttlog publishes
// session traffic to an MQTT broker.
//
// Network transport is left to the caller: anything that can send
// bytes can be a session.Responder.
package fixsession
