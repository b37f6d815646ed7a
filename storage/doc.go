// Package storage provides content-addressed storage for recovery material.
//
// Two kinds of content are kept: sealed key inputs (the secret circuit inputs
// produced by keygen, encrypted by cryptoutils) and published verifying-key
// sets. Content is addressed by the SHA-256 hash of its bytes, and each
// content type lives in its own namespace.
//
// Backends are named by URI:
//
//	file:///var/lib/zkrecovery
//	s3://ACCESS_KEY:SECRET_KEY@bucket/prefix?region=eu-west-1
//	ipfs://localhost:5001/zkrecovery?timeout=30s
//	vault://TOKEN@vault.internal:8200/secret/zkrecovery
//
// StorageBackendFactory turns URIs into backends and MultiStorageBackend
// combines several of them: writes go to every available backend, reads come
// from the first one that has the content.
package storage
