package ir

// Version constants for the envelope schema and engine.
const (
	// EnvelopeVersion is the event envelope schema version.
	EnvelopeVersion = "1"

	// EngineVersion is the cowork engine version.
	EngineVersion = "0.3.0"
)
