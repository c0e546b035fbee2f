// Package xumm provides a client for the XUMM platform API.
//
// The platform lets an application ask a wallet user to sign a transaction:
// the application creates a payload, the user opens it in the wallet app and
// signs or rejects it, and the application follows the outcome either by
// polling, over a webhook, or over the payload status WebSocket.
//
// # Authentication
//
// Two flows are supported:
//   - FlowAPISecret: the API key and secret are sent in the x-api-key and
//     x-api-secret headers (backend use only)
//   - FlowJWT: a one-time token is exchanged with Authorize for a JWT, which
//     is sent as a bearer token on every later call
//
// # Basic Usage
//
//	client, err := xumm.NewClient(&xumm.ClientConfig{
//	    APIKey:    "aaaaaaaa-bbbb-cccc-dddd-1234567890ab",
//	    APISecret: "bbbbbbbb-cccc-dddd-eeee-1234567890ab",
//	})
//
//	// Create a sign request and wait for the user's decision
//	sub, err := client.Payload.CreateAndSubscribe(ctx, xumm.Transaction{
//	    "TransactionType": "Payment",
//	    "Destination":     "rPEPPER7kfTD9w2To4CQk6UCfuHM9c6GDY",
//	    "Amount":          "1000000",
//	}, func(ev *xumm.SubscriptionEvent) (any, error) {
//	    if _, ok := ev.Data["signed"]; ok {
//	        return ev.Data, nil
//	    }
//	    return nil, nil
//	})
//	outcome, err := sub.Wait(ctx)
//
// A subscription keeps its connection alive with a ping every
// SubscriptionConfig.KeepaliveInterval and reconnects after abnormal closes
// until the resolution is settled or MaxReconnectAttempts is reached, in
// which case Wait returns ErrReconnectExhausted.
//
// # Error Handling
//
// Calls return one of:
//   - *APIError: the platform answered with a structured error object
//   - ErrUnexpectedBody: the body is not an error but lacks the field the
//     call needs (for example a payload lookup without meta.uuid)
//   - *FatalError: the body carried a free-text message, usually bad credentials
//   - *TransportError: the platform could not be reached or answered non-JSON
//
// Use Lenient to map the first two to a nil result:
//
//	payload, err := xumm.Lenient(client.Payload.Get(ctx, xumm.PayloadUUID(id)))
//	if err != nil {
//	    // transport or credentials problem
//	}
//	if payload == nil {
//	    // payload does not exist
//	}
package xumm
