package peoply

import "errors"

// Error kinds reported by the upstream client. Callers classify with
// errors.Is; every failure returned by this package wraps exactly one
// of these sentinels.
var (
	// ErrHTTP is returned when upstream responds with status >= 400.
	ErrHTTP = errors.New("upstream returned an HTTP error status")

	// ErrTransport is returned on network, DNS, timeout, or cancellation
	// failures before a response was read.
	ErrTransport = errors.New("upstream request failed in transport")

	// ErrJSON is returned when a response body cannot be decoded.
	ErrJSON = errors.New("upstream response is not valid JSON")

	// ErrMetadataNotFound is returned when the organization page lacks the
	// embedded __NEXT_DATA__ script or the script is empty.
	ErrMetadataNotFound = errors.New("organization page metadata not found")

	// ErrNotATag is returned when the matched metadata node is not an
	// element node.
	ErrNotATag = errors.New("organization metadata node has the wrong shape")

	// ErrSchema is returned when decoded metadata is missing the expected
	// JSON path or carries a malformed value.
	ErrSchema = errors.New("organization metadata is missing the expected fields")
)
