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
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/urfave/cli"

	"github.com/sshp/sshp/runner"
)

// VERSION is injected by buildflags
var VERSION = "SELFBUILD"

func main() {
	if VERSION == "SELFBUILD" {
		// add more log flags for debugging
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	myApp := cli.NewApp()
	myApp.Name = "sshp"
	myApp.Usage = "run a command on many hosts in parallel"
	myApp.UsageText = "sshp [options] command ..."
	myApp.Version = VERSION
	myApp.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "file,f",
			Value: "",
			Usage: `host list file, "-" or unset reads standard input`,
		},
		cli.IntFlag{
			Name:  "jobs,j",
			Value: 64,
			Usage: "max number of children to run concurrently",
		},
		cli.StringFlag{
			Name:  "mode,m",
			Value: "line",
			Usage: "output mode: line, group, join",
		},
		cli.BoolFlag{
			Name:  "anonymous,a",
			Usage: "don't prefix output with host names",
		},
		cli.BoolFlag{
			Name:  "exit-codes,e",
			Usage: "print the exit code and elapsed time of each host",
		},
		cli.BoolFlag{
			Name:  "silent,s",
			Usage: "discard all output from the remote commands",
		},
		cli.BoolFlag{
			Name:  "trim,t",
			Usage: "truncate host names at the first '.' for display",
		},
		cli.IntFlag{
			Name:  "max-line-length",
			Value: 1024,
			Usage: "line mode: longest line to buffer before forcing a break",
		},
		cli.IntFlag{
			Name:  "max-output-length",
			Value: 65536,
			Usage: "join mode: bytes of output to capture per host, the rest is dropped",
		},
		cli.StringFlag{
			Name:  "color",
			Value: "auto",
			Usage: "colorize output: auto, on, off",
		},
		cli.BoolFlag{
			Name:  "debug,d",
			Usage: "print the effective settings and per-host exit lines",
		},
		cli.StringFlag{
			Name:  "login,l",
			Value: "",
			Usage: "remote login name passed to the remote shell",
		},
		cli.IntFlag{
			Name:  "port,p",
			Value: 0,
			Usage: "remote port passed to the remote shell, 0 to omit",
		},
		cli.StringSliceFlag{
			Name:  "option,o",
			Usage: "extra -o option for the remote shell, repeatable",
		},
		cli.StringFlag{
			Name:  "ssh",
			Value: "ssh",
			Usage: "remote shell program to execute",
		},
		cli.StringFlag{
			Name:  "c",
			Value: "", // when the value is not empty, the config path must exists
			Usage: "config from json file, which will override the command from shell",
		},
	}
	myApp.Action = func(c *cli.Context) error {
		config := Config{}
		config.File = c.String("file")
		config.Jobs = c.Int("jobs")
		config.Mode = c.String("mode")
		config.Anonymous = c.Bool("anonymous")
		config.ExitCodes = c.Bool("exit-codes")
		config.Silent = c.Bool("silent")
		config.Trim = c.Bool("trim")
		config.MaxLineLength = c.Int("max-line-length")
		config.MaxOutputLength = c.Int("max-output-length")
		config.Color = c.String("color")
		config.Debug = c.Bool("debug")
		config.Login = c.String("login")
		config.Port = c.Int("port")
		config.Options = c.StringSlice("option")
		config.SSH = c.String("ssh")

		if c.String("c") != "" {
			if err := parseJSONConfig(&config, c.String("c")); err != nil {
				usageError(err)
			}
		}

		command := c.Args()
		if len(command) == 0 {
			usageError(errors.New("no command given"))
		}

		// stdout terminal-ness is queried once; it gates the join-mode
		// progress line and the color default.
		terminal := isatty.IsTerminal(os.Stdout.Fd())
		switch config.Color {
		case "on":
			color.NoColor = false
		case "off":
			color.NoColor = true
		default:
			color.NoColor = !terminal
		}

		opts, err := config.runnerOptions(terminal)
		if err != nil {
			usageError(err)
		}

		hosts, err := readHosts(config.File)
		if err != nil {
			usageError(err)
		}

		if config.Debug {
			log.Println("version:", VERSION)
			log.Println("hosts:", len(hosts))
			log.Println("jobs:", config.Jobs)
			log.Println("mode:", config.Mode)
			log.Println("anonymous:", config.Anonymous)
			log.Println("exit-codes:", config.ExitCodes)
			log.Println("silent:", config.Silent)
			log.Println("trim:", config.Trim)
			log.Println("max-line-length:", config.MaxLineLength)
			log.Println("max-output-length:", config.MaxOutputLength)
			log.Println("color:", config.Color)
			log.Println("login:", config.Login)
			log.Println("port:", config.Port)
			log.Println("options:", config.Options)
			log.Println("ssh:", config.SSH)
		}

		remote := &remoteCommand{
			ssh:     config.SSH,
			login:   config.Login,
			port:    config.Port,
			options: config.Options,
			command: command,
		}

		orch, err := runner.New(opts, hosts, remote.argv)
		if err != nil {
			fatalError(err)
		}
		if err := orch.Run(); err != nil {
			fatalError(err)
		}
		return nil
	}
	myApp.Run(os.Args)
}

// usageError reports a configuration problem and exits with status 2.
func usageError(err error) {
	log.Printf("%v\n", err)
	os.Exit(2)
}

// fatalError reports an unrecoverable system error and exits with status 3.
func fatalError(err error) {
	log.Printf("%+v\n", err)
	os.Exit(3)
}
