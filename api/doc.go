// Package api defines the JSON types of the recovery HTTP API, the request
// signing scheme shared by server and clients, and the server configuration.
//
// Every state-changing request is signed by the caller's Ethereum key: the
// X-Recovery-Signature header holds a personal_sign signature over the
// method, path, X-Recovery-Timestamp, X-Recovery-Nonce and body (see
// SignedRequest.Digest). The server recovers the caller address from it and
// admits each signer's nonce once, so a captured request cannot be sent again.
package api
