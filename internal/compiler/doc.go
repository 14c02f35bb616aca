// Package compiler turns CUE reducer specs into matcher cases and saga
// definitions over ir.Model.
//
// A spec file has a reducer section and an optional saga section:
//
//	reducer: counter: {
//		cases: [
//			{match: "Inc", op: "add", field: "count", by: 1},
//			{match: "Set", op: "set", field: "label"},
//			{match: "Child.*", op: "append", field: "log"},
//		]
//	}
//	saga: {
//		start: ["Ready"]
//		react: {Inc: "Seen"}
//	}
//
// Reducers are registered in declaration order. A reducer with a scope field
// is nested: its cases match the unwrapped remainder of "<scope>.*" events.
//
// Compilation is two-phase. Compile parses the CUE value and reports errors
// with CUE positions (CompileError). Validate checks the parsed spec against
// semantic rules and returns every problem found (ValidationError).
// AnalyzeReactions reports saga reactions that can trigger themselves.
package compiler
