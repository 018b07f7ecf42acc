// Command vcable inspects and exercises cable plugins.
//
// Usage:
//
//	vcable [flags] <command>
//
// Commands:
//
//	list   - scan the plugin directories and print what was registered
//	run    - drive a synthetic tone through a host instance
//	watch  - print plugins as they are installed, until interrupted
//
// Plugins are searched in VCABLE_PATH, the paths of the configuration file
// and the build-time default directory. The bundled loopback plugin is
// always registered first unless --builtin=false is given. A .env file in the
// working directory, or the one named by --env-file, may set VCABLE_*
// variables.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// Variables already present in the environment take precedence.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
