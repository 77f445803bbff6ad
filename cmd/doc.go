// # Available Commands
//
//   - bundle: bundle an entry file to stdout or a file, as JS or HTML
//   - tree: print the dependency tree visited while bundling
//   - watch: rebuild the bundle on every source change
//   - serve: development server with live reload
//   - config show / config validate: inspect configuration
//   - version: build information
//
// # Command Examples
//
//	// Bundle to a file and write a manifest
//	cjsbundle bundle src/index.js -o dist/app.js --manifest dist/app.json
//
//	// Print the dependency tree as YAML
//	cjsbundle tree src/index.js --format yaml
//
//	// Serve with live reload on port 3000
//	cjsbundle serve src/index.js --port 3000
package cmd
