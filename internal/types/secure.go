package types

// SecretString wraps sensitive configuration values (API keys, signing
// secrets, connection strings) so they cannot leak through logging or
// fmt-style formatting. Call Reveal() at the single point of use.
type SecretString string

const redacted = "[REDACTED]"

// String implements fmt.Stringer and always returns the redaction marker.
func (s SecretString) String() string { return redacted }

// GoString prevents %#v from exposing the value.
func (s SecretString) GoString() string { return redacted }

// MarshalText redacts the value in any text-based serialization (JSON, logs).
func (s SecretString) MarshalText() ([]byte, error) { return []byte(redacted), nil }

// Reveal returns the underlying secret value.
func (s SecretString) Reveal() string { return string(s) }

// IsSet reports whether a non-empty secret was configured.
func (s SecretString) IsSet() bool { return len(s) > 0 }
