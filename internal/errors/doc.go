// Package errors provides structured, actionable error messages for the
// tracestream command.
//
// Library packages return plain Go errors. The command wraps the ones that
// reach the user in a TraceError, which adds:
//   - A stable code (e.g. "T003") and a category
//   - A plain language explanation
//   - A hint on how to fix the problem
//   - For configuration files, the offending line with context
//
// # Error Categories
//
//   - config: the tracestream.json file is unreadable or invalid
//   - network: ports, listeners and the status endpoint
//   - protocol: a probe received something it did not expect
//   - rom: the ROM given to the simulated host could not be loaded
//   - cli: bad command line usage
//
// # Usage
//
//	err := errors.New("T001").
//	    WithLocation("tracestream.json", 4, 17).
//	    Wrap(syntaxErr)
//
//	errors.PrintError(err)
//	// ERROR T001: Invalid configuration file
//	//
//	//   tracestream.json:4:17
//	//
//	//       3 │   "streamer": {
//	//   →   4 │     "portStart": "63783",
//	//         │                 ^
//	//       5 │   },
package errors
