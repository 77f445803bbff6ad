// Package internal contains the core implementation packages for cjsbundle.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - types: references, dependencies and tree nodes shared across packages
//   - scanner: chunked require() scanning, literal rewriting and the scan cache
//   - registry: the modules of one build, keyed by registry id
//   - build: dependency walk, bundle emission, resolver runtime and manifests
//   - config: configuration loading and validation with Viper
//   - errors: structured bundle errors and the error handler
//   - logging: structured logging on slog and charmbracelet/log
//   - watcher: debounced file system monitoring
//   - server: development server with websocket reload
//   - version: build information
//
// # Data Flow
//
// A build runs in one goroutine:
//
//   - the bundler registers the entry and hands it to the walker
//   - the walker scans each file, registers every referenced file and
//     stores the rewritten source
//   - the emitter renders the finished registry followed by the runtime
//
// The watch and serve commands repeat builds on a fresh registry after
// every debounced batch of changes, sharing one scan cache.
package internal
