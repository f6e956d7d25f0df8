// Package internal contains the implementation packages of remixure.
//
// # Package Organization
//
// The packages are organized by the stage of a build they serve:
//
//   - config: the layered project configuration and its loader
//   - entry, tree: discovery of entry scripts below the source folder
//   - matrix, assemble, bundle: one bundler configuration per language target
//   - rules, plugins: loaders and plugin slots of a bundler configuration
//   - engine: the esbuild compiler, stylesheets and HTML pages
//   - report: the summary printed after every compilation
//   - watcher: file system monitoring with debouncing
//   - server: the development server with live reload and error overlay
//   - services: the build and dev workflows tying the stages together
//   - errors, logging, monitoring, validation, version: shared support
//
// # Flow
//
// A run loads the configuration, discovers the entries and expands the
// language matrix into targets. Production builds compile every target
// concurrently. The dev environment compiles a single target, then
// recompiles on every source change and notifies connected browsers.
package internal
