package log

import "strings"

const redacted = "[REDACTED]"

// sensitiveKeys never reach the log output in clear text.
var sensitiveKeys = []string{"secret", "private_key", "privatekey", "password"}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range sensitiveKeys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// redactKV masks the values of sensitive keys. The input is left untouched.
func redactKV(keysAndValues []any) []any {
	var out []any
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok || !isSensitive(key) {
			continue
		}
		if out == nil {
			out = append([]any(nil), keysAndValues...)
		}
		out[i+1] = redacted
	}
	if out == nil {
		return keysAndValues
	}
	return out
}
