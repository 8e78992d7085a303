package fuzzer

import (
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseBody caps how much of a probe response is read
const maxResponseBody = 10 * 1024 * 1024

// probeResponse is the part of a response kept for the request log
type probeResponse struct {
	StatusCode    int
	Status        string
	Headers       map[string]string
	Body          string
	ContentLength int64
	ResponseTime  time.Duration
}

// readResponse drains and closes the response
func readResponse(resp *http.Response) (*probeResponse, error) {
	defer resp.Body.Close()

	body, err := readBody(resp.Body, maxResponseBody)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string)
	for key, values := range resp.Header {
		headers[key] = strings.Join(values, ", ")
	}

	return &probeResponse{
		StatusCode:    resp.StatusCode,
		Status:        resp.Status,
		Headers:       headers,
		Body:          string(body),
		ContentLength: resp.ContentLength,
	}, nil
}

// readBody reads response body with a size limit
func readBody(reader io.Reader, limit int64) ([]byte, error) {
	limitedReader := io.LimitReader(reader, limit)
	return io.ReadAll(limitedReader)
}

// stringReader creates an io.Reader from a string
func stringReader(s string) io.Reader {
	return strings.NewReader(s)
}

// requote percent-encodes bytes that may not appear literally in a URL.
// Reserved characters and existing escapes are left alone, so injection
// strings keep their meaning once the server decodes them. '#' is encoded
// because descriptor URLs never carry a fragment.
func requote(raw string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if allowedInURL(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func allowedInURL(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-._~:/?[]@!$&'()*+,;=%", c) >= 0
}
