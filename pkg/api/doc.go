/*
Package api serves the snippet REST endpoints behind the logging
middleware.

The service itself is deliberately small; its purpose is to exercise
every part of the pipeline end to end:

	POST   /api/v1/snippets        create (X-API-Key when configured)
	GET    /api/v1/snippets        list
	GET    /api/v1/snippets/{id}   fetch
	DELETE /api/v1/snippets/{id}   delete (X-API-Key when configured)
	GET    /healthz                liveness
	GET    /metrics                Prometheus exposition

Requests produce request-log events, store calls produce database-log
events via dbtrack, rejected API keys land in the security log, and
slow paths show up in the performance log.
*/
package api
