// Package matcher implements the ordered predicate/reducer chain applied to
// every incoming event.
//
// A Chain is a list of cases. Each case pairs a Predicate, which either rejects
// an event or returns a Match describing how to relabel it, with a Reducer that
// folds the relabelled event into the accumulator. Reduce evaluates every case
// in registration order and threads the accumulator through each accepted one.
//
// # Wrap and unwrap
//
// A Match carries two label fragments. Unwrap is the type the reducer sees,
// with the matched prefix removed. Wrap is the prefix that was consumed; it is
// appended to the event's existing Wrap so a reducer nested under several
// prefixes can still rebuild the full label:
//
//	event {Type: "B.Inc", Wrap: "A."} matched by "B.*"
//	reducer sees {Type: "Inc", Wrap: "A.B."}
//
// # Patterns
//
// DefaultPredicate compiles the pattern language used by RegisterCase:
//
//	"Inc"        exact type match
//	"Child.*"    prefix match, strips "Child."
//	"*"          any event, type unchanged
package matcher
