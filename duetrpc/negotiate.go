package duetrpc

import "net/http"

// Wire content types accepted on the Twirp surface. Comparison is an exact
// byte match: no media-type parameters, no charset negotiation.
const (
	contentTypeProtobuf = "application/protobuf"
	contentTypeJSON     = "application/json"
)

// wireFormat is the negotiated message encoding for one request. It is
// selected once from the request headers and reused for the response.
type wireFormat int

const (
	formatProtobuf wireFormat = iota
	formatJSON
)

// contentType returns the response Content-Type for the format.
func (f wireFormat) contentType() string {
	if f == formatJSON {
		return contentTypeJSON
	}
	return contentTypeProtobuf
}

// negotiateFormat derives the wire format from the request headers.
func negotiateFormat(h http.Header) (wireFormat, *Error) {
	values := h.Values("Content-Type")
	if len(values) == 0 {
		return 0, Malformed("No content-type header")
	}
	switch values[0] {
	case contentTypeProtobuf:
		return formatProtobuf, nil
	case contentTypeJSON:
		return formatJSON, nil
	default:
		return 0, Malformed("Unsupported content type: " + values[0])
	}
}
