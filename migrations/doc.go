// Package migrations holds every migration unit of this deployment. Each
// unit lives in its own file named <version>_<description>.go and registers
// itself on import, so the binary embedding this package sees the full
// catalog without any extra wiring.
//
// Scaffold a new unit with `boyong new -name <short_name>`.
package migrations
