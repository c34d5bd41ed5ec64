// Package network performs HTTP requests that survive flaky networks and
// servers.
//
// Client.TimedRequest retries a request through short outages: a
// possibly-transient status (400, 409, 502, 503, 504) is retried once,
// transport failures are retried with a brief pause after each and a
// growing pause after every streak of consecutive failures. Client.Net
// turns the result into a response plus an optional classified *Error,
// pausing and retrying on 429. Client.Do returns the error alone.
// Client.Download streams a body to a file and polls while the server
// answers 202 Accepted.
//
// Basic usage:
//
//	client := network.NewBuilder(log).
//		WithInterrupter(token).
//		Build()
//
//	resp, err := client.Net(ctx, "get", "https://example.org/data", nil)
//	switch {
//	case network.IsKind(err, network.KindNoContent):
//		// absent
//	case err != nil:
//		return err
//	}
//
// Every pause can be cut short by the interrupt token or by cancelling ctx,
// in which case the call returns a KindInterrupted error.
package network
