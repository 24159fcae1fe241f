package chunker

// config holds the constructor-level settings shared by every strategy.
type config struct {
	chunkSize             int
	overlap               int
	minParagraphLength    int
	maxParagraphsPerChunk int
}

// Option configures a chunker.
type Option func(*config)

// WithChunkSize sets the window size in the strategy's unit
// (characters, tokens or sentences).
func WithChunkSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between consecutive chunks in the strategy's unit.
// An overlap at or above the chunk size is honoured; windows still advance.
func WithOverlap(overlap int) Option {
	return func(c *config) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// WithMinParagraphLength sets the length at which a paragraph starts a new chunk.
func WithMinParagraphLength(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.minParagraphLength = n
		}
	}
}

// WithMaxParagraphsPerChunk caps how many paragraphs one chunk may hold.
func WithMaxParagraphsPerChunk(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxParagraphsPerChunk = n
		}
	}
}

func newConfig(defaults config, opts []Option) config {
	c := defaults
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
