package hte

// Provider is the capability set a timestamping provider implements.
//
// Providers translate real-world events (GPIO edges, interrupt lines, bus
// transactions) into timestamps and hand them to the engine through
// Device.Push. All methods take the translated line id obtained from
// Translate (or the identity translation if the provider does not
// implement Translator).
//
// Request, Release, Enable and Disable are called with the channel's
// blocking-path lock held and the push-path lock released, so a provider
// may take its own hardware-serialisation locks inside them.
type Provider interface {
	// Name returns the provider identity used for registry lookups.
	Name() string

	// Lines returns the number of lines this provider can timestamp.
	Lines() uint32

	// Request reserves hardware resources for the line.
	Request(translatedID uint32) error

	// Release frees hardware resources for the line. A Release failure is
	// reported to the consumer but does not prevent the engine from
	// freeing its own per-channel state.
	Release(translatedID uint32) error

	// Enable resumes timestamping on the line.
	Enable(translatedID uint32) error

	// Disable pauses timestamping on the line.
	Disable(translatedID uint32) error

	// ClockInfo reports the clock the provider timestamps against.
	// Providers without a meaningful answer return ErrUnsupported.
	ClockInfo() (ClockInfo, error)
}

// Translator is an optional Provider capability mapping consumer-facing
// logical line ids to provider-local translated ids.
//
// Providers with no internal mapping need not implement it; the engine
// installs an identity translation bounded by the line count.
type Translator interface {
	Translate(logicalID uint32) (uint32, error)
}
