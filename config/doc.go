// Package config holds vcable's runtime configuration: plugin search paths,
// the host session settings and the log level.
//
// Values are resolved in three layers. Defaults come first, then an optional
// YAML file, then environment variables:
//
//   - VCABLE_PATH: plugin directory searched before the build-time default
//   - VCABLE_PLUGIN: plugin index to activate (0 = off)
//   - VCABLE_LOG_LEVEL: logrus level name
//   - VCABLE_UNDERRUN: underrun policy ("skip", "zero-pad", "partial")
//
// A value that cannot be parsed or is out of range is logged and ignored.
//
// The build-time default directory is DefaultPluginsPath and can be set with
//
//	go build -ldflags "-X github.com/opd-ai/vcable/config.DefaultPluginsPath=/opt/vcable/lib"
package config
