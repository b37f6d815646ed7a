/*
Package clients provides a Go client for the recovery HTTP API.

RecoveryClient wraps every route. Read-only calls (Status, Events, Keys) need
no key. Start, Cancel, Complete and the key management calls are signed with
the client's Ethereum key, which the server recovers as the caller address:

	key, _ := crypto.HexToECDSA(hexKey)
	c := clients.NewRecoveryClient("http://localhost:8080", key)
	status, err := c.Start(ctx, api.Payment{Amount: "1000000000000000000"})

Errors returned by the server are *APIError values carrying the HTTP status
and the machine readable error code.
*/
package clients
