// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package drill replays incident timelines against a running profile
// service.
//
// A scenario is a YAML list of steps. Each step switches the failure mode
// through the admin API, optionally fires probe requests at the profile
// endpoint, and then holds before the next step:
//
//	name: incident-b
//	target: http://localhost:8000
//	steps:
//	  - mode: none
//	    hold: 5s
//	    probe:
//	      requests: 20
//	      concurrency: 4
//	      rate: 10
//	      ids: [1, 2, 3]
//	  - mode: combined
//	    hold: 30s
package drill

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/MockSRE/services/profile/failuremode"
)

// Scenario is a named incident timeline.
type Scenario struct {
	Name   string `yaml:"name"`
	Target string `yaml:"target"`
	Steps  []Step `yaml:"steps"`
}

// Step switches to Mode, runs Probe if set, then waits Hold.
type Step struct {
	Mode  failuremode.Mode `yaml:"mode"`
	Hold  time.Duration    `yaml:"hold"`
	Probe *Probe           `yaml:"probe,omitempty"`
}

// Probe describes the requests fired during a step.
type Probe struct {
	// Requests is the total number of lookups.
	Requests int `yaml:"requests"`

	// Concurrency caps in-flight lookups. Default: 1.
	Concurrency int `yaml:"concurrency"`

	// Rate is lookups per second. Zero is unpaced.
	Rate float64 `yaml:"rate"`

	// IDs are cycled through in order. Default: [1].
	IDs []int64 `yaml:"ids"`
}

// ParseScenario decodes and validates a YAML scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadScenario reads and parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// Validate checks every step and fills probe defaults.
func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return errors.New("scenario has no steps")
	}
	var errs []error
	for i := range s.Steps {
		step := &s.Steps[i]
		if _, err := failuremode.ParseMode(string(step.Mode)); err != nil {
			errs = append(errs, fmt.Errorf("step %d: %w", i+1, err))
		}
		if step.Hold < 0 {
			errs = append(errs, fmt.Errorf("step %d: negative hold", i+1))
		}
		if p := step.Probe; p != nil {
			if p.Requests < 0 || p.Concurrency < 0 || p.Rate < 0 {
				errs = append(errs, fmt.Errorf("step %d: probe values must not be negative", i+1))
			}
			if p.Concurrency == 0 {
				p.Concurrency = 1
			}
			if len(p.IDs) == 0 {
				p.IDs = []int64{1}
			}
		}
	}
	return errors.Join(errs...)
}
