package trace

import (
	"github.com/google/gopacket/layers"
	"github.com/rs/zerolog"
)

// Registry opens sinks and dedupes them by destination: two layers
// configured with the same filename write interleaved records into one
// shared file instead of clobbering each other.
//
// Not safe for concurrent use. The stack opens traces during init and
// closes them during shutdown, both from one goroutine.
type Registry struct {
	log   zerolog.Logger
	async Async
	sinks map[string]*Sink
}

// NewRegistry builds a registry whose sinks offload writes through async.
func NewRegistry(log zerolog.Logger, async Async) *Registry {
	return &Registry{log: log, async: async, sinks: make(map[string]*Sink)}
}

// Open returns the sink for dest, creating it on first use. When the
// destination is already open the existing sink is returned and its
// original link type stands.
func (r *Registry) Open(dest string, lt layers.LinkType) (*Sink, error) {
	if s, ok := r.sinks[dest]; ok {
		r.log.Debug().Str("file", dest).Msg("sharing trace file")
		return s, nil
	}
	s, err := openSink(dest, lt, r.async, r.log)
	if err != nil {
		return nil, err
	}
	r.sinks[dest] = s
	return s, nil
}

// CloseAll closes every open sink. Safe to call more than once.
func (r *Registry) CloseAll() {
	for dest, s := range r.sinks {
		if err := s.Close(); err != nil {
			r.log.Warn().Str("file", dest).Err(err).Msg("trace close failed")
		}
	}
	r.sinks = make(map[string]*Sink)
}
