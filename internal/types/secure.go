package types

import "log/slog"

const redacted = "***REDACTED***"

// SecretString holds a credential (today only the database URL). It prints
// and marshals as a placeholder so a config dump or log line cannot leak it;
// Unmask returns the real value for the driver.
type SecretString string

func (s SecretString) String() string { return redacted }

// MarshalJSON always encodes the placeholder.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// LogValue keeps slog from printing the value through reflection.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// Unmask returns the plaintext. Call it only where the secret is consumed.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether a value is present without revealing it.
func (s SecretString) IsSet() bool {
	return s != ""
}
