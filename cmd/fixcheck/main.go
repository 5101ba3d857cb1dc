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

// Package main is a command that checks FIX messages.
//
// Messages are read from stdin, framed, parsed, validated against a
// dictionary and reported one per line as JSON (or as YAML documents).
// A summary comes last.
//
//	fixcheck -d builtin:FIX.4.4 < messages.log
//	fixcheck -pipes -nochecksum -f yaml < readable.log
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Comcast/fixsession/dict"
	"github.com/Comcast/fixsession/field"
	"github.com/Comcast/fixsession/validate"
	"github.com/Comcast/fixsession/wire"

	"go.uber.org/zap"
)

func main() {
	var (
		dicts    = flag.String("d", "builtin:FIX.4.4", "comma-separated dictionary references (builtin:NAME or a file)")
		applVer  = flag.String("appl", "", "DefaultApplVerID for FIXT.1.1 messages")
		format   = flag.String("f", "json", "report format: json or yaml")
		pipes    = flag.Bool("pipes", false, "fields are separated by '|' instead of SOH")
		decimals = flag.Bool("decimal", false, "decode prices and quantities as decimals")
		noSum    = flag.Bool("nochecksum", false, "don't verify CheckSum")
		verbose  = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	var (
		logger *zap.Logger
		err    error
	)
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	mode := field.Float64Mode
	if *decimals {
		mode = field.DecimalMode
	}

	var ds []*dict.DataDictionary
	for _, ref := range strings.Split(*dicts, ",") {
		d, err := dict.Resolve(strings.TrimSpace(ref), dict.WithNumericMode(mode))
		if err != nil {
			logger.Fatal("loading dictionary", zap.String("ref", ref), zap.Error(err))
		}
		ds = append(ds, d)
	}
	reg, err := dict.NewRegistry(ds...)
	if err != nil {
		logger.Fatal("registry", zap.Error(err))
	}

	sep := wire.SOH
	if *pipes {
		sep = '|'
	}

	c := &Checker{
		Registry:         reg,
		Validator:        validate.New(validate.DefaultOptions()),
		DefaultApplVerID: *applVer,
		Separator:        sep,
		SkipChecksum:     *noSum,
		Format:           *format,
		Logger:           logger,
	}

	sum, err := c.Run(os.Stdin, os.Stdout)
	if err != nil {
		logger.Error("reading", zap.Error(err))
		os.Exit(1)
	}
	if 0 < sum.Invalid {
		os.Exit(2)
	}
}
