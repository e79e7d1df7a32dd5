package sim900

// PowerLine is the digital output wired to the modem's power button.
//
// The orchestrator drives it exclusively and never concurrently with
// itself: a toggle sequence always runs to completion before any
// dependent retry begins.
type PowerLine interface {
	// Set drives the line high (true) or low (false).
	Set(high bool) error
}
