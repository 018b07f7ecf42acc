// Package loader discovers vcable plugin modules and keeps them in a bounded
// registry.
//
// A Scanner walks one or more directories, picks the files whose names start
// with the candidate prefix (DefaultPrefix, "vcable-"), loads each through an
// Opener, resolves the abi.RegisterSymbol entry point, validates the returned
// descriptor and stores it in the first free Registry slot:
//
//	reg := loader.NewRegistry()
//	scanner := loader.NewScanner(nil, "")
//	report := scanner.Scan(reg, []string{os.Getenv("VCABLE_PATH"), "/usr/lib/vcable"})
//	for _, res := range report.Skipped() {
//	    fmt.Println(res.Path, res.Outcome, res.Err)
//	}
//
// Every per-candidate failure (open error, missing symbol, version mismatch,
// full registry) is logged and recorded in the Report; the scan always
// continues with the next candidate. A rejected module is closed immediately,
// an accepted one stays resident until Registry.Release.
//
// # Openers
//
//   - GoPluginOpener loads shared objects built with -buildmode=plugin
//     (cgo builds on linux, darwin and freebsd). DefaultOpener selects it
//     where available.
//   - Builtin registers a module linked into the binary; it needs no file.
//   - OpenerFunc adapts any function, which is how tests supply fakes.
package loader
