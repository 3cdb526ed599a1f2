package filters

import (
	"fmt"
	"runtime"

	"github.com/soypat/chanswap"
)

// Channel identifies a color channel by its byte offset within a pixel.
type Channel int

const (
	ChannelRed Channel = iota
	ChannelGreen
	ChannelBlue
)

func (c Channel) String() string {
	switch c {
	case ChannelRed:
		return "Red"
	case ChannelGreen:
		return "Green"
	case ChannelBlue:
		return "Blue"
	default:
		return "Unknown"
	}
}

func (c Channel) valid() bool { return c >= ChannelRed && c <= ChannelBlue }

// AlphaMode determines what happens to the alpha channel of sources that carry one.
type AlphaMode int

const (
	// AlphaKeep passes alpha through unchanged.
	AlphaKeep AlphaMode = iota
	// AlphaDiscard drops alpha and outputs RGB. Matches older tooling
	// that always wrote RGB images.
	AlphaDiscard
)

func (m AlphaMode) String() string {
	switch m {
	case AlphaKeep:
		return "Keep"
	case AlphaDiscard:
		return "Discard"
	default:
		return "Unknown"
	}
}

// Control names used by [NewChannelSwap].
const (
	ControlFirstChannel  = "First Channel"
	ControlSecondChannel = "Second Channel"
	ControlAlpha         = "Alpha"
	ControlWorkers       = "Workers"
)

// SwapFilter exchanges two color channels of every pixel.
type SwapFilter struct {
	PointFilter
	a, b  Channel
	alpha AlphaMode
}

// NewSwapRedGreen returns a filter exchanging red and green on RGBA8888 input
// with alpha passed through.
func NewSwapRedGreen() *SwapFilter {
	f, _ := NewChannelSwap(ChannelRed, ChannelGreen, AlphaKeep)
	return f
}

// NewChannelSwap creates a filter that exchanges channels a and b.
// The filter expects RGBA8888 input; call [SwapFilter.ForShape] for other inputs.
func NewChannelSwap(a, b Channel, alpha AlphaMode) (*SwapFilter, error) {
	if !a.valid() || !b.valid() {
		return nil, fmt.Errorf("invalid channel pair %v/%v", a, b)
	} else if alpha != AlphaKeep && alpha != AlphaDiscard {
		return nil, fmt.Errorf("invalid alpha mode %d", int(alpha))
	}
	f := &SwapFilter{a: a, b: b, alpha: alpha}
	f.Workers = 1
	f.In = chanswap.ShapeRGBA8888
	f.setShapes()
	f.Fn = f.swapRow
	channels := []Channel{ChannelRed, ChannelGreen, ChannelBlue}
	f.Ctrls = []chanswap.Control{
		&chanswap.ControlEnum[Channel]{
			Name:        ControlFirstChannel,
			Description: "First channel of the exchanged pair",
			Value:       a,
			ValidValues: channels,
			OnChange: func(c Channel) error {
				f.a = c
				return nil
			},
		},
		&chanswap.ControlEnum[Channel]{
			Name:        ControlSecondChannel,
			Description: "Second channel of the exchanged pair",
			Value:       b,
			ValidValues: channels,
			OnChange: func(c Channel) error {
				f.b = c
				return nil
			},
		},
		&chanswap.ControlEnum[AlphaMode]{
			Name:        ControlAlpha,
			Description: "Pass alpha through or drop it",
			Value:       alpha,
			ValidValues: []AlphaMode{AlphaKeep, AlphaDiscard},
			OnChange: func(m AlphaMode) error {
				f.alpha = m
				f.setShapes()
				return nil
			},
		},
		&chanswap.ControlOrdered[int]{
			Name:        ControlWorkers,
			Description: "Goroutines processing rows concurrently",
			Value:       1,
			Min:         1,
			Max:         4 * runtime.NumCPU(),
			Step:        1,
			OnChange: func(n int) error {
				f.Workers = n
				return nil
			},
		},
	}
	return f, nil
}

// ForShape sets the filter input shape to that of the image about to be processed.
func (f *SwapFilter) ForShape(in chanswap.Shape) error {
	if in != chanswap.ShapeRGB888 && in != chanswap.ShapeRGBA8888 {
		return errShapeMismatch
	}
	f.In = in
	f.setShapes()
	return nil
}

// Channels returns the exchanged pair.
func (f *SwapFilter) Channels() (a, b Channel) { return f.a, f.b }

// Alpha returns the alpha mode.
func (f *SwapFilter) Alpha() AlphaMode { return f.alpha }

func (f *SwapFilter) setShapes() {
	f.Out = f.In
	if f.alpha == AlphaDiscard {
		f.Out = chanswap.ShapeRGB888
	}
}

func (f *SwapFilter) swapRow(dst, src []byte) {
	inBpp := f.In.BytesPerPixel()
	outBpp := f.Out.BytesPerPixel()
	a, b := int(f.a), int(f.b)
	var px [4]byte
	for i, j := 0, 0; i < len(src); i, j = i+inBpp, j+outBpp {
		copy(px[:], src[i:i+inBpp])
		px[a], px[b] = px[b], px[a]
		copy(dst[j:j+outBpp], px[:outBpp])
	}
}
