package masking

import "strings"

const maskToken = "****"

var secretKeys = []string{"secret", "password", "token", "api_key", "apikey", "credential"}

// MaskSecret redacts a secret while keeping a minimal suffix for auditing.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	prefix, remainder := splitPrefix(trimmed)
	if len(remainder) <= 4 {
		return prefix + maskToken
	}
	return prefix + maskToken + remainder[len(remainder)-4:]
}

// MaskSecrets copies metadata, masking string values whose key looks sensitive.
func MaskSecrets(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	out := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			out[trimmedKey] = MaskSecrets(nested)
			continue
		}
		if str, ok := value.(string); ok && isSecretKey(trimmedKey) {
			out[trimmedKey] = MaskSecret(str)
			continue
		}
		out[trimmedKey] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isSecretKey(key string) bool {
	lower := strings.ToLower(key)
	for _, candidate := range secretKeys {
		if strings.Contains(lower, candidate) {
			return true
		}
	}
	return false
}

func splitPrefix(value string) (string, string) {
	lastUnderscore := strings.LastIndex(value, "_")
	if lastUnderscore == -1 || lastUnderscore == len(value)-1 {
		return "", value
	}
	return value[:lastUnderscore+1], value[lastUnderscore+1:]
}
