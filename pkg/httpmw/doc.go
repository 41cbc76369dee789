// Package httpmw wires the logging pipeline into net/http.
//
// The middleware opens a trace per request, stamps X-Trace-ID and
// X-Response-Time on the response, brackets the handler with request
// events, turns panics into exceptions-log entries plus a 500, and
// reports requests that cross the slow-request threshold along with
// their accumulated query counts.
//
// End-of-request level follows the status code: 5xx logs at error,
// 4xx at warning, everything else at info.
package httpmw
