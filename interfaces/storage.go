package interfaces

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/url"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	// ErrContentNotFound is returned when no backend holds the requested content.
	ErrContentNotFound = errors.New("content not found")

	// ErrBackendUnavailable is returned when a backend cannot be reached.
	ErrBackendUnavailable = errors.New("storage backend unavailable")

	// ErrInvalidLocationURI is returned for malformed or unsupported backend URIs.
	ErrInvalidLocationURI = errors.New("invalid storage location URI")
)

// ContentID addresses stored content by the SHA-256 hash of its bytes.
type ContentID [32]byte

// ComputeID returns the content id of data.
func ComputeID(data []byte) ContentID {
	return ContentID(sha256.Sum256(data))
}

// NewContentIDFromHex parses a content id with or without 0x prefix.
func NewContentIDFromHex(s string) (ContentID, error) {
	var id ContentID
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return ContentID{}, err
	}
	return id, nil
}

// String returns the id hex encoded without prefix, as used in storage paths.
func (id ContentID) String() string {
	return hexutil.Encode(id[:])[2:]
}

func (id ContentID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ContentID) UnmarshalText(text []byte) error {
	s := string(text)
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	raw, err := hexutil.Decode("0x" + s)
	if err != nil {
		return fmt.Errorf("invalid content id: %w", err)
	}
	if len(raw) != len(id) {
		return fmt.Errorf("invalid content id: %d bytes, want %d", len(raw), len(id))
	}
	copy(id[:], raw)
	return nil
}

// ContentType selects the namespace content is stored in.
type ContentType int

const (
	// KeyInputType holds sealed recovery identity inputs. Never published.
	KeyInputType ContentType = iota
	// VerifyingKeyType holds verifying-key documents, readable by anyone.
	VerifyingKeyType
)

func (ct ContentType) String() string {
	switch ct {
	case KeyInputType:
		return "key-inputs"
	case VerifyingKeyType:
		return "verifying-keys"
	default:
		return "unknown"
	}
}

// Public reports whether backends may expose content of this type without
// authentication.
func (ct ContentType) Public() bool {
	return ct == VerifyingKeyType
}

// StorageBackendLocation is a parsed backend URI of the form
// scheme://[auth@]host[:port][/path][?params].
type StorageBackendLocation struct {
	Raw    string
	Scheme string
	Host   string
	Path   string
	Query  url.Values

	// Auth is the userinfo part: access keys for s3, a token for vault.
	Auth string
}

// NewStorageBackendLocation parses uri and checks its scheme is one of file,
// s3, ipfs or vault.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	switch parsed.Scheme {
	case "file", "s3", "ipfs", "vault":
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, parsed.Scheme)
	}

	loc := StorageBackendLocation{
		Raw:    uri,
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
	}
	if parsed.User != nil {
		loc.Auth = parsed.User.String()
	}
	return loc, nil
}

func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

// GetParam returns the query parameter name, or "" when unset.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// StorageBackend stores content under its content id, one namespace per
// content type.
type StorageBackend interface {
	Fetch(ctx context.Context, id ContentID, contentType ContentType) ([]byte, error)

	// Store saves data and returns ComputeID(data).
	Store(ctx context.Context, data []byte, contentType ContentType) (ContentID, error)

	Available(ctx context.Context) bool

	// Name identifies the backend in logs.
	Name() string

	LocationURI() string
}

// StorageBackendFactory builds backends from parsed locations.
type StorageBackendFactory interface {
	StorageBackendFor(loc StorageBackendLocation) (StorageBackend, error)
	CreateMultiBackend(locs []StorageBackendLocation) (StorageBackend, error)
}
