package model

// Shared defaults used by the engine, the server and the CLI.
const (
	DefaultMinOccurrences = 3
	DefaultWindowMinutes  = 5

	// NoTimestampsMessage is the sentinel reported when frequency analysis finds no timestamps.
	NoTimestampsMessage = "No timestamps found"
)
