// Package ir defines the event vocabulary shared by every nsaga package.
//
// ir imports nothing internal; every other package imports ir. This keeps the
// event record, the side-effect handle types and the canonical encoding at the
// bottom of the dependency graph.
//
// Key design constraints:
//   - Events are values. Nothing in the module mutates an Event after it has
//     been dispatched; helpers such as Scoped return copies.
//   - Namespaces are plain strings; the empty string is the root namespace.
//   - Canonical JSON is the only encoding used for golden traces and journal
//     payloads, so identical event streams always produce identical bytes.
package ir
