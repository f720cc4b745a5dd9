/*
Copyright (C) 2024 The Falco Authors.

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

// This program is a minimal driver of the plugin host: it binds an
// in-process, scriptable capability vtable (package plugintest) as a
// stand-in for a dlopen'd plugin, initializes it, opens an event source
// session, and runs every batch through the parsing and extraction
// capabilities before logging the resolved field values. A real deployment
// would swap the plugintest.VTable for the abi.VTable bound by
// Library.VTable() from a *cabi.Library loaded from a shared object path,
// everything downstream is unchanged.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/cappellinsamuele/sinsp-plugin-host/abi"
	"github.com/cappellinsamuele/sinsp-plugin-host/filtercheck"
	"github.com/cappellinsamuele/sinsp-plugin-host/plugin"
	"github.com/cappellinsamuele/sinsp-plugin-host/plugintest"
	"github.com/cappellinsamuele/sinsp-plugin-host/registry"
	"github.com/cappellinsamuele/sinsp-plugin-host/table"
)

func main() {
	count := flag.Int("count", 3, "number of synthetic events to source")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(logger, *count); err != nil {
		logger.Fatal("run failed", zap.Error(err))
	}
}

func run(logger *zap.Logger, count int) error {
	libs := registry.NewLibraries()
	tables := table.NewRegistry()

	procs, err := tables.AddHostTable("example.procs", abi.StateTypeUint64)
	if err != nil {
		return err
	}

	vt := demoVTable(count, procs)

	p, err := plugin.NewValid(vt, tables)
	if err != nil {
		return err
	}
	p.SetLogger(logger)

	if err := p.Init(`{"greeting":"hello"}`); err != nil {
		return err
	}
	defer p.Destroy()

	resolver := filtercheck.New(p)
	checks, err := resolveChecks(resolver)
	if err != nil {
		return err
	}

	session, err := p.Sourcing().Open("")
	if err != nil {
		return err
	}
	defer session.Close()

	// libs tracks this process's dlopen'd shared libraries; demoVTable is
	// in-process so nothing is registered against it, but a real deployment
	// would pass it to cabi.Load before building the plugin above.
	logger.Debug("libraries loaded", zap.Strings("paths", libs.Paths()))

	for {
		evts, status, err := session.NextBatch()
		if err != nil {
			return err
		}
		if status == abi.BatchEOF {
			break
		}
		for i := range evts {
			evt := &evts[i]
			if p.Parsing() != nil {
				if err := p.Parsing().ParseEvent(evt); err != nil {
					logger.Warn("parse_event failed", zap.Error(err))
				}
			}
			logEvent(logger, resolver, checks, evt)
		}
	}

	logProcTable(logger, procs)
	return nil
}

func resolveChecks(r *filtercheck.Resolver) ([]*filtercheck.Check, error) {
	names := []string{"example.counter", "example.greeting"}
	out := make([]*filtercheck.Check, len(names))
	for i, name := range names {
		c, err := r.Check(name)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func logEvent(logger *zap.Logger, r *filtercheck.Resolver, checks []*filtercheck.Check, evt *abi.Event) {
	results, err := r.Extract(evt, checks)
	if err != nil {
		logger.Warn("extract_fields failed", zap.Error(err))
		return
	}
	logger.Info("event",
		zap.Uint64("num", evt.Num),
		zap.Any("example.counter", results[0]),
		zap.Any("example.greeting", results[1]))
}

func logProcTable(logger *zap.Logger, procs abi.Table) {
	procs.IterRows(func(row abi.Row) bool {
		v, _ := procs.ReadField(row, "seen")
		logger.Info("table row", zap.Any("seen_count", v))
		return true
	})
}

// demoVTable builds a fully in-process plugin exercising sourcing,
// extraction and parsing together: sourcing produces count counter events,
// parsing increments a per-run row in the procs table for every event it
// sees, and extraction exposes the counter value plus a constant greeting
// pulled from the init config.
func demoVTable(count int, procs abi.Table) *plugintest.VTable {
	var greeting string

	var produced []abi.Event
	for i := 0; i < count; i++ {
		produced = append(produced, abi.Event{Num: uint64(i), SourceIdx: 0, SourceName: "example", Type: 1, Data: []byte{byte(i)}})
	}

	return &plugintest.VTable{
		RequiredAPIVersionVal: "3.1.0",
		VersionVal:            "1.0.0",
		NameVal:               "example",
		DescriptionVal:        "demonstrates sourcing, parsing and extraction wired together",
		CapsVal:               abi.Set(abi.CapSourcing | abi.CapExtraction | abi.CapParsing),
		InitFunc: func(config string, _ abi.TableAccess) error {
			greeting = extractGreeting(config)
			return nil
		},
		SourcingVal: &plugintest.Sourcing{
			EventSourceVal: "example",
			OpenFunc: func(string) (abi.SourceHandle, error) {
				return &plugintest.SourceHandle{Batches: [][]abi.Event{produced}}, nil
			},
		},
		ExtractionVal: &plugintest.Extraction{
			FieldsJSONVal: `[
				{"name":"example.counter","type":"uint64","desc":"the event's ordinal number"},
				{"name":"example.greeting","type":"string","desc":"the configured greeting"}
			]`,
			ExtractFieldsFunc: func(evt *abi.Event, reqs []*abi.ExtractRequest) error {
				for _, r := range reqs {
					switch r.Field {
					case "example.counter":
						r.Result = evt.Num
					case "example.greeting":
						r.Result = greeting
					}
				}
				return nil
			},
		},
		ParsingVal: &plugintest.Parsing{
			ParseEventFunc: func(evt *abi.Event, tables abi.TableAccess) error {
				if _, err := procs.Field("seen", abi.StateTypeUint64); err != nil {
					return err
				}
				row, ok := procs.GetRow(uint64(0))
				if !ok {
					var err error
					row, err = procs.CreateRow(uint64(0))
					if err != nil {
						return err
					}
					if err := procs.WriteField(row, "seen", uint64(0)); err != nil {
						return err
					}
				}
				seen, err := procs.ReadField(row, "seen")
				if err != nil {
					return err
				}
				return procs.WriteField(row, "seen", seen.(uint64)+1)
			},
		},
	}
}

func extractGreeting(config string) string {
	var cfg struct {
		Greeting string `json:"greeting"`
	}
	_ = json.Unmarshal([]byte(config), &cfg)
	return cfg.Greeting
}
