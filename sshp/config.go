// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package main

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/sshp/sshp/runner"
)

// Config for sshp
type Config struct {
	File            string   `json:"file"`
	Jobs            int      `json:"jobs"`
	Mode            string   `json:"mode"`
	Anonymous       bool     `json:"anonymous"`
	ExitCodes       bool     `json:"exit-codes"`
	Silent          bool     `json:"silent"`
	Trim            bool     `json:"trim"`
	MaxLineLength   int      `json:"max-line-length"`
	MaxOutputLength int      `json:"max-output-length"`
	Color           string   `json:"color"`
	Debug           bool     `json:"debug"`
	Login           string   `json:"login"`
	Port            int      `json:"port"`
	Options         []string `json:"options"`
	SSH             string   `json:"ssh"`
}

func parseJSONConfig(config *Config, path string) error {
	file, err := os.Open(path) // For read access.
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(config)
}

// parseMode maps the mode flag onto the runner's output discipline.
func parseMode(s string) (runner.Mode, error) {
	switch s {
	case "line", "":
		return runner.ModeLine, nil
	case "group":
		return runner.ModeGroup, nil
	case "join":
		return runner.ModeJoin, nil
	}
	return 0, errors.Errorf("unknown mode %q, want line, group or join", s)
}

// runnerOptions validates the config and binds it to runner options.
// Terminal-ness is decided by the caller.
func (config *Config) runnerOptions(terminal bool) (runner.Options, error) {
	mode, err := parseMode(config.Mode)
	if err != nil {
		return runner.Options{}, err
	}
	switch config.Color {
	case "auto", "on", "off", "":
	default:
		return runner.Options{}, errors.Errorf("unknown color %q, want auto, on or off", config.Color)
	}

	opts := runner.Options{
		Mode:            mode,
		MaxJobs:         config.Jobs,
		MaxLineLength:   config.MaxLineLength,
		MaxOutputLength: config.MaxOutputLength,
		Anonymous:       config.Anonymous,
		ExitCodes:       config.ExitCodes,
		Silent:          config.Silent,
		Trim:            config.Trim,
		Debug:           config.Debug,
		Terminal:        terminal,
	}
	if err := opts.Validate(); err != nil {
		return runner.Options{}, err
	}
	return opts, nil
}
