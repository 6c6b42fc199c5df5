package middleware

import (
	"encoding/json"
	"net/url"
	"strings"
)

const redacted = "***redacted***"

// sensitiveKeys covers credentials, buyer contact details and anything that
// carries a download token or a payment session handle.
var sensitiveKeys = map[string]struct{}{
	"password":         {},
	"authorization":    {},
	"token":            {},
	"secret":           {},
	"url":              {},
	"downloadurl":      {},
	"downloadref":      {},
	"phone":            {},
	"email":            {},
	"paymentsessionid": {},
}

func isSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// redactJSON masks sensitive fields at any depth. Non-JSON input is returned as is.
func redactJSON(raw []byte) []byte {
	if len(raw) == 0 {
		return raw
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return raw
	}
	b, err := json.Marshal(scrub(doc))
	if err != nil {
		return raw
	}
	return b
}

func scrub(x any) any {
	switch v := x.(type) {
	case map[string]any:
		for k, val := range v {
			if isSensitive(k) {
				v[k] = redacted
				continue
			}
			v[k] = scrub(val)
		}
	case []any:
		for i := range v {
			v[i] = scrub(v[i])
		}
	}
	return x
}

// redactQuery masks sensitive query parameters, such as the signed token on
// download links.
func redactQuery(raw string) string {
	if raw == "" {
		return ""
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		return redacted
	}
	for k := range q {
		if isSensitive(k) {
			q[k] = []string{redacted}
		}
	}
	return q.Encode()
}
