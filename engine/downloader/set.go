package downloader

import "github.com/liuran001/TrackFetch-Go/engine"

// Set is the ordered, closed list of strategies: primary first, then fallback.
type Set struct {
	strategies []Strategy
}

// NewSet builds a set from the primary and fallback strategies. Either may be nil.
func NewSet(primary, fallback Strategy) *Set {
	s := &Set{}
	for _, strategy := range []Strategy{primary, fallback} {
		if strategy != nil {
			s.strategies = append(s.strategies, strategy)
		}
	}
	return s
}

// Select returns the first strategy supporting format, or the first strategy
// when none does.
func (s *Set) Select(format engine.Format) (Strategy, error) {
	if s == nil || len(s.strategies) == 0 {
		return nil, ErrNoDownloader
	}
	for _, strategy := range s.strategies {
		if strategy.SupportsFormat(format) {
			return strategy, nil
		}
	}
	return s.strategies[0], nil
}

// Names lists the strategies in priority order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.strategies))
	for _, strategy := range s.strategies {
		names = append(names, strategy.Name())
	}
	return names
}

