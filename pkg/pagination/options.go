package pagination

//go:generate go run github.com/ecordell/optgen -output zz_generated.options.go . SequenceOptions StreamOptions

// SequenceOptions are the options that affect how a sequence pulls pages.
type SequenceOptions struct {
	// Name labels the metrics, spans and log lines of the sequence.
	Name string `debugmap:"visible" default:"default"`

	// DefaultDemand is the demand used by All and by Pull calls with a demand below one.
	DefaultDemand int `debugmap:"visible" default:"1"`
}

// StreamOptions are the options of a channel based stream over a sequence.
type StreamOptions struct {
	// HighWatermark is both the demand of each pull and the capacity of the item channel.
	HighWatermark int `debugmap:"visible" default:"16"`
}
