// Package dispatch delivers inbound messages to matching subscriptions.
//
// The Dispatcher receives (topic, payload) pairs from the connection
// lifecycle on its own inbound goroutine, so subscriber code never runs on a
// transport I/O goroutine. For every active subscription matching the topic it
// decodes the payload with the route's codec, extracts wildcard captures and
// runs the handler according to the route's thread mode:
//
//	Mode        on the main loop      elsewhere
//	Main        invoke directly       post to the Loop
//	Background  schedule on the Pool  invoke directly
//	Async       schedule on the Pool  schedule on the Pool
//
// A failing subscriber never prevents delivery to the others. Decode and
// handler errors are logged and recorded; with PropagateErrors they are also
// returned from Dispatch (synchronous deliveries) or passed to OnError
// (scheduled deliveries).
package dispatch
