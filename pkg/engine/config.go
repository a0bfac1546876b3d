package engine

// Default values applied by engines when the corresponding optional field is
// left nil.
const (
	DefaultSensitivity      float32 = 0.5
	DefaultEndpointDuration float32 = 1.0
	DefaultRequireEndpoint          = true
)

// Accepted ranges for the optional tuning fields.
const (
	MinSensitivity      float32 = 0
	MaxSensitivity      float32 = 1
	MinEndpointDuration float32 = 0.5
	MaxEndpointDuration float32 = 5
)

// WakeWordConfig selects and tunes a wake-word engine. Only one keyword is
// tracked per pipeline, so exactly one KeywordPath is configured.
type WakeWordConfig struct {
	// Name selects the registered engine implementation (e.g., "porcupine").
	Name string

	// AccessKey is the credential passed to engines that require one.
	AccessKey string

	// KeywordPath is the path to the keyword model file (e.g., a .ppn file).
	KeywordPath string

	// ModelPath overrides the engine's bundled acoustic model. Empty uses the default.
	ModelPath string

	// LibraryPath overrides the engine's bundled native library. Empty uses the default.
	LibraryPath string

	// Sensitivity in [0, 1]. Higher values reduce misses at the cost of more
	// false alarms. Nil means [DefaultSensitivity].
	Sensitivity *float32
}

// IntentConfig selects and tunes an intent engine.
type IntentConfig struct {
	// Name selects the registered engine implementation (e.g., "rhino").
	Name string

	// AccessKey is the credential passed to engines that require one.
	AccessKey string

	// ContextPath is the path to the intent context file (e.g., a .rhn file).
	ContextPath string

	// ModelPath overrides the engine's bundled acoustic model. Empty uses the default.
	ModelPath string

	// LibraryPath overrides the engine's bundled native library. Empty uses the default.
	LibraryPath string

	// Sensitivity in [0, 1]. Nil means [DefaultSensitivity].
	Sensitivity *float32

	// EndpointDuration is the trailing silence, in seconds, after which an
	// utterance is considered complete. Valid range [0.5, 5]. Nil means
	// [DefaultEndpointDuration].
	EndpointDuration *float32

	// RequireEndpoint makes the engine wait for the trailing silence before
	// finalizing. Nil means [DefaultRequireEndpoint].
	RequireEndpoint *bool
}

// SensitivityOrDefault returns the configured sensitivity or [DefaultSensitivity].
func (c WakeWordConfig) SensitivityOrDefault() float32 {
	if c.Sensitivity == nil {
		return DefaultSensitivity
	}
	return *c.Sensitivity
}

// SensitivityOrDefault returns the configured sensitivity or [DefaultSensitivity].
func (c IntentConfig) SensitivityOrDefault() float32 {
	if c.Sensitivity == nil {
		return DefaultSensitivity
	}
	return *c.Sensitivity
}

// EndpointDurationOrDefault returns the configured endpoint duration or
// [DefaultEndpointDuration].
func (c IntentConfig) EndpointDurationOrDefault() float32 {
	if c.EndpointDuration == nil {
		return DefaultEndpointDuration
	}
	return *c.EndpointDuration
}

// RequireEndpointOrDefault returns the configured flag or [DefaultRequireEndpoint].
func (c IntentConfig) RequireEndpointOrDefault() bool {
	if c.RequireEndpoint == nil {
		return DefaultRequireEndpoint
	}
	return *c.RequireEndpoint
}

// Ptr returns a pointer to v. Handy for filling optional config fields.
func Ptr[T any](v T) *T {
	return &v
}
