// SPDX-License-Identifier: MIT
//
// Package build exposes the metadata linked into the binary at compile time:
//
//	go build -ldflags "-X spectrallog/pkg/build.buildName=spectrallog \
//	    -X spectrallog/pkg/build.buildVersion=0.3.0 ..."
//
// The CLI prints it with --version and the tracer attaches it to every span.
// Development builds carry no flags and report the defaults below.
package build

import (
	"errors"
	"fmt"
)

const (
	DefaultName        = "spectrallog"
	DefaultDescription = "Sample an analog channel, average its spectrum per bin and log the result to non-volatile storage"
	DefaultVersion     = "dev"
	unknown            = "unknown"
)

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:        DefaultName,
		Description: DefaultDescription,
		Time:        unknown,
		Commit:      unknown,
		Version:     DefaultVersion,
	}
)

// Initialize copies the linker-provided values into the build information.
// Every value that was provided is applied; the returned error lists the ones
// that were missing so release builds can refuse to start while development
// builds just log it.
func Initialize() error {
	var errs []error
	apply := func(dst *string, v, name string) {
		if v == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
			return
		}
		*dst = v
	}

	apply(&buildFlags.Name, buildName, "BuildName")
	apply(&buildFlags.Time, buildTime, "BuildTime")
	apply(&buildFlags.Commit, buildCommit, "BuildCommit")
	apply(&buildFlags.Version, buildVersion, "BuildVersion")

	return errors.Join(errs...)
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
