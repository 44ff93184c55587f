package reltable

import (
	"github.com/bsm/reltable/kvstore"
	"github.com/rs/zerolog"
)

// Options configure the Engine.
type Options struct {
	// Logger receives debug events for schema and row changes.
	// Default: disabled
	Logger *zerolog.Logger

	// Compression of row payloads. Snappy is only applied when it saves
	// at least 25%.
	// Default: kvstore.SnappyCompression
	Compression kvstore.Compression

	// BloomCapacity is the expected number of distinct values per indexed
	// column, used to size the in-memory lookup filters.
	// Default: 100000
	BloomCapacity uint

	// BloomFalsePositiveRate of the lookup filters.
	// Default: 0.01
	BloomFalsePositiveRate float64
}

func (o *Options) norm() *Options {
	var oo Options
	if o != nil {
		oo = *o
	}

	if oo.Logger == nil {
		nop := zerolog.Nop()
		oo.Logger = &nop
	}
	if oo.Compression != kvstore.NoCompression {
		oo.Compression = kvstore.SnappyCompression
	}
	if oo.BloomCapacity == 0 {
		oo.BloomCapacity = 100000
	}
	if oo.BloomFalsePositiveRate <= 0 || oo.BloomFalsePositiveRate >= 1 {
		oo.BloomFalsePositiveRate = 0.01
	}
	return &oo
}
