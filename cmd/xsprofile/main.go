/*
Copyright © 2023 the xsprofile authors.
This file is part of xsprofile.

xsprofile is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

xsprofile is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with xsprofile.  If not, see <http://www.gnu.org/licenses/>.
*/

// Command xsprofile is a command-line interface for creating
// cross-sectional linear-referencing profiles.
package main

import (
	"fmt"
	"os"

	"github.com/spatialmodel/xsprofile/xsprofileutil"
)

func main() {
	xsprofileutil.Root.SetArgs(withDefaultCommand(os.Args[1:]))
	if err := xsprofileutil.Root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withDefaultCommand runs profile when args do not name a command, so
// that "xsprofile whiskers references snap_distance output" works. The
// profile command checks the number of arguments.
func withDefaultCommand(args []string) []string {
	if len(args) == 0 {
		return args
	}
	switch args[0] {
	case "help", "-h", "--help":
		return args
	}
	if c, _, err := xsprofileutil.Root.Find(args); err == nil && c != xsprofileutil.Root {
		return args
	}
	return append([]string{"profile"}, args...)
}
