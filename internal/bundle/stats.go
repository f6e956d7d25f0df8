package bundle

import "time"

// OversizeLimit is the asset size in bytes above which an asset is flagged [big].
const OversizeLimit = 250000

// Stats is the result of one compilation of one target.
type Stats struct {
	Language string
	Hash     string
	Duration time.Duration
	Errors   []string
	Warnings []string
	Assets   []Asset
}

// Asset is one emitted output file.
type Asset struct {
	Name       string
	Size       int64
	Chunks     []int
	ChunkNames []string
	Emitted    bool
	Oversize   bool
}

// HasErrors reports whether the compilation produced errors.
func (s *Stats) HasErrors() bool {
	return s != nil && len(s.Errors) > 0
}
