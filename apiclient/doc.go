// Package apiclient is the shared HTTP client behind every dashboard service
// call. It layers, from the transport up:
//
// Credential injection
//   - Authorization: Bearer <token> when a session token is stored.
//   - X-CSRF-Token on POST, PUT, PATCH and DELETE when a token is available.
//   - A fresh X-Request-ID on every dispatched request.
//
// Retries
//   - Retries occur on transport errors, timeouts and HTTP 5xx responses.
//   - 4xx responses are never retried by this layer.
//   - Delay before retry n is BaseDelay * 2^(n-1) with no jitter (1s, 2s, 4s
//     by default), capped at MaxDelay.
//
// Recovery
//   - A 403 whose message mentions CSRF clears the token, fetches a new one
//     and resubmits once.
//   - A 401 refreshes the access token and resubmits once. When the refresh
//     fails the session is purged and the refresh error is returned.
//   - A resubmission re-enters the retry path.
//
// Offline queue
//   - While the connectivity monitor reports Offline, requests are queued
//     (bounded, oldest evicted first) and the call fails at once with an
//     error of kind KindOffline.
//   - On the transition back to Online the queue is drained and replayed.
//     Replay results are not reported to the original caller.
//
// Every call returns the server's {success, data, error} envelope. A 2xx
// response with success=false is returned as-is with a nil error; only
// transport-level failures return an *Error.
package apiclient
