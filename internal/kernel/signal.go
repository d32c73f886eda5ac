package kernel

// SignalBox is a bounded, latest-wins mailbox for Signal delivery (spec.md
// §4.3.1: "delivered on a bounded channel; the latest always wins if the
// kernel has not yet processed an earlier one"). Concrete runtimes embed
// one and drain it from their execute loop.
type SignalBox struct {
	ch chan Signal
}

// NewSignalBox creates an empty mailbox.
func NewSignalBox() *SignalBox {
	return &SignalBox{ch: make(chan Signal, 1)}
}

// Send delivers sig, discarding whatever signal was previously pending
// and not yet observed.
func (b *SignalBox) Send(sig Signal) {
	for {
		select {
		case b.ch <- sig:
			return
		default:
			select {
			case <-b.ch:
			default:
			}
		}
	}
}

// C exposes the receive side for a runtime's execute loop to select on.
func (b *SignalBox) C() <-chan Signal {
	return b.ch
}

// TryRecv drains one pending signal without blocking, if any.
func (b *SignalBox) TryRecv() (Signal, bool) {
	select {
	case sig := <-b.ch:
		return sig, true
	default:
		return Signal(0), false
	}
}
