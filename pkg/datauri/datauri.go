// Package datauri encodes and decodes RFC 2397 data URIs, the value type the
// crop widget exchanges with its host form.
package datauri

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	scheme       = "data:"
	base64Suffix = ";base64"
)

var ErrMalformed = errors.New("datauri: malformed data URI")

// Encode returns a base64 data URI for data of the given media type
func Encode(mime string, data []byte) string {
	var sb strings.Builder
	sb.Grow(len(scheme) + len(mime) + len(base64Suffix) + 1 + base64.StdEncoding.EncodedLen(len(data)))
	sb.WriteString(scheme)
	sb.WriteString(mime)
	sb.WriteString(base64Suffix)
	sb.WriteByte(',')
	sb.WriteString(base64.StdEncoding.EncodeToString(data))
	return sb.String()
}

// Decode parses a data URI and returns its media type and payload. A missing
// media type defaults to text/plain as the RFC requires.
func Decode(uri string) (string, []byte, error) {
	if len(uri) < len(scheme) || !strings.EqualFold(uri[:len(scheme)], scheme) {
		return "", nil, fmt.Errorf("%w: missing %q prefix", ErrMalformed, scheme)
	}

	header, payload, ok := strings.Cut(uri[len(scheme):], ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing ','", ErrMalformed)
	}

	isBase64 := false
	if strings.HasSuffix(strings.ToLower(header), base64Suffix) {
		isBase64 = true
		header = header[:len(header)-len(base64Suffix)]
	}

	mime := header
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	mime = strings.ToLower(strings.TrimSpace(mime))
	if mime == "" {
		mime = "text/plain"
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
		if err != nil {
			// some producers strip padding
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(payload), "="))
			if err != nil {
				return "", nil, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
		}
		return mime, data, nil
	}

	text, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return mime, []byte(text), nil
}

// MediaType returns the media type of a data URI without decoding the payload
func MediaType(uri string) (string, error) {
	if len(uri) < len(scheme) || !strings.EqualFold(uri[:len(scheme)], scheme) {
		return "", fmt.Errorf("%w: missing %q prefix", ErrMalformed, scheme)
	}
	header, _, ok := strings.Cut(uri[len(scheme):], ",")
	if !ok {
		return "", fmt.Errorf("%w: missing ','", ErrMalformed)
	}
	mime, _, _ := strings.Cut(header, ";")
	mime = strings.ToLower(strings.TrimSpace(mime))
	if mime == "" {
		mime = "text/plain"
	}
	return mime, nil
}
