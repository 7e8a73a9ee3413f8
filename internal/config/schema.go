// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

var configSchema = `
{
  "type": "object",
  "properties": {
    "receivers": {
      "description": "UDP hit receivers to start, one per CLB/BBB plane.",
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "name": { "type": "string" },
          "kind": { "type": "string", "enum": ["clb", "bbb"] },
          "address": { "type": "string" }
        },
        "required": ["name", "kind", "address"]
      },
      "minItems": 1
    },
    "scheduler": {
      "description": "Spill scheduler variant and its tuning knobs.",
      "type": "object",
      "properties": {
        "variant": { "type": "string", "enum": ["infinite", "periodic", "external"] },
        "spillDuration": { "type": "integer" },
        "scheduleDepth": { "type": "integer" },
        "maturationWindow": { "type": "integer" },
        "triggerListenAddr": { "type": "string" },
        "triggerWindowSize": { "type": "integer" }
      },
      "required": ["variant"]
    },
    "runFileDir": {
      "description": "Directory holding one SQLite run file per data run.",
      "type": "string"
    },
    "bus": {
      "description": "Control bus connection.",
      "type": "object"
    },
    "user": {
      "description": "Drop root permissions once the receiver sockets are bound.",
      "type": "string"
    },
    "group": {
      "description": "Drop root permissions once the receiver sockets are bound.",
      "type": "string"
    },
    "logLevel": {
      "description": "One of 'debug', 'info', 'warn', 'err'.",
      "type": "string"
    },
    "logDateTime": {
      "type": "boolean"
    },
    "gops": {
      "description": "Start the gops debug agent.",
      "type": "boolean"
    },
    "housekeepingAt": {
      "description": "Daily time-of-day (HH:MM:SS) run-file compaction/retention runs at.",
      "type": "string"
    },
    "compressOlderThan": {
      "description": "Gzip-compress run files older than this (nanoseconds); 0 disables compaction.",
      "type": "integer"
    },
    "retainFor": {
      "description": "Delete run files older than this (nanoseconds); 0 disables retention deletion.",
      "type": "integer"
    },
    "serialiserQueueDepth": {
      "description": "Bounded FIFO depth between the spill closer and the serialiser thread.",
      "type": "integer"
    },
    "metricsAddr": {
      "description": "Address the /metrics Prometheus endpoint listens on.",
      "type": "string"
    }
  },
  "required": ["receivers", "scheduler"]
}`
