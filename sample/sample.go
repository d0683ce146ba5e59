// Package sample defines the SampleSource collaborator shared by the
// trainer and the serving pipeline, and the rewind-on-exhaustion adapter
// the trainer drives to turn a finite corpus into an effectively unbounded
// stream.
package sample

import (
	"errors"
	"io"
)

// Meta is the metadata envelope carried alongside a sample's text.
type Meta struct {
	PileSetName string
}

// Sample is one corpus record.
type Sample struct {
	Text string
	Meta Meta
}

// Source produces a lazy sequence of Samples. Next returns io.EOF (wrapped
// or bare) once the sequence is exhausted; any other error is an I/O or
// parse failure and must propagate to the caller without being retried.
type Source interface {
	Next() (Sample, error)
}

// Factory produces a fresh, independent Source each time it is called.
// Restartability is a property of the factory, not of any particular
// Source value or its caller.
type Factory func() (Source, error)

// Rewinder is a Source that, on exhaustion of its current inner Source,
// invokes its Factory to obtain a new one and continues, indefinitely. If
// the factory itself fails, that failure is surfaced as the next element
// instead of EOF. Rewind is implemented here rather than baked into the
// trainer. The serving pipeline does not use Rewinder: it runs its own
// loop over its input paths, which stops once a full pass yields no
// samples.
type Rewinder struct {
	factory Factory
	inner   Source
}

// NewRewinder builds a Rewinder around factory. The first call to Next
// invokes factory to obtain the initial inner Source.
func NewRewinder(factory Factory) *Rewinder {
	return &Rewinder{factory: factory}
}

// Next returns the next sample, rewinding via the factory as many times as
// necessary. It only returns io.EOF if the factory itself is exhausted by
// returning io.EOF (which would mean no restartable corpus exists at all);
// ordinary inner-source exhaustion triggers a rewind rather than
// propagating.
func (r *Rewinder) Next() (Sample, error) {
	for {
		if r.inner == nil {
			inner, err := r.factory()
			if err != nil {
				return Sample{}, err
			}
			r.inner = inner
		}

		s, err := r.inner.Next()
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, io.EOF) {
			return Sample{}, err
		}

		// Inner source exhausted: close it if possible, then rewind.
		if closer, ok := r.inner.(io.Closer); ok {
			_ = closer.Close()
		}
		r.inner = nil
	}
}
