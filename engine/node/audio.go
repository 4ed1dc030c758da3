package node

// AudioData is the sample buffer of an audio port, one row of samples per channel.
type AudioData struct {
	// Channels is the number of rows in Samples.
	Channels int
	// Samples holds Channels rows of equal length, flattened.
	Samples []float32
	// FixedSize truncates or zero-pads every row to this many samples when positive.
	FixedSize int
	// Version advances each time a block is stored.
	Version uint64
}

// SamplesPerChannel returns the row length.
func (a *AudioData) SamplesPerChannel() int {
	if a.Channels == 0 {
		return 0
	}
	return len(a.Samples) / a.Channels
}

// Set stores an audio block, one slice per channel.
// Rows shorter than the longest row are zero-padded.
func (a *AudioData) Set(block [][]float32) {
	n := a.FixedSize
	if n <= 0 {
		for _, ch := range block {
			n = max(n, len(ch))
		}
	}

	a.Channels = len(block)
	size := a.Channels * n
	if cap(a.Samples) >= size {
		a.Samples = a.Samples[:size]
		clear(a.Samples)
	} else {
		a.Samples = make([]float32, size)
	}
	for c, ch := range block {
		copy(a.Samples[c*n:(c+1)*n], ch)
	}
	a.Version++
}
