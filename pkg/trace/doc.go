// Package trace tracks request-scoped trace identity and span nesting.
//
// A trace begins when a unit of work enters the system (usually an HTTP
// request) and ends when it leaves. Inside a trace, spans nest as a
// stack:
//
//	Begin ──┐
//	        │  BeginSpan("handler")
//	        │          BeginSpan("query")
//	        │          EndSpan
//	        │  EndSpan
//	End ────┘
//
// The trace ID and current span ID are stamped onto every event emitted
// while the trace is active, which is what lets a reader reconstruct
// one request's story from interleaved output.
//
// # Ownership
//
// A Context belongs to the goroutine that began it. Handing work to
// another goroutine goes through Fork, which opens a sibling context
// under the same trace ID with its own span stack. Contexts travel
// through call chains inside a context.Context via NewContext and
// FromContext.
//
// # Misuse
//
// Closing spans out of order is repaired by closing the intervening
// spans as abandoned, and End reports spans left open. With strict
// mode enabled the same conditions panic instead, which is the setting
// used in tests and development.
package trace
