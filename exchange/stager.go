package exchange

// HWHint selects the memory space staging buffers are allocated in.
// The effect is confined entirely to the stager capability below: the
// schedule, offsets, and permutation exchange applies are identical on
// both paths — the correctness invariant the accelerator suite checks.
type HWHint int

const (
	Host HWHint = iota
	Device
)

// stager is the capability a hardware hint selects: one small
// interface, one implementation per memory space, chosen once at
// construction.
type stager interface {
	alloc(n int) []byte
	// pack copies src[indices[k]*elemSize : ...] into dst[k*elemSize : ...]
	// for every k, the Exchanger.Go pack step.
	pack(dst, src []byte, indices []int, elemSize int)
	// unpack is pack's inverse: dst[indices[k]*elemSize:...] <- src[k*elemSize:...].
	unpack(dst, src []byte, indices []int, elemSize int)
}

func stagerFor(hint HWHint) stager {
	switch hint {
	case Device:
		return deviceStager{}
	default:
		return hostStager{}
	}
}

type hostStager struct{}

func (hostStager) alloc(n int) []byte { return make([]byte, n) }

func (hostStager) pack(dst, src []byte, indices []int, elemSize int) {
	for k, idx := range indices {
		copy(dst[k*elemSize:(k+1)*elemSize], src[idx*elemSize:(idx+1)*elemSize])
	}
}

func (hostStager) unpack(dst, src []byte, indices []int, elemSize int) {
	for k, idx := range indices {
		copy(dst[idx*elemSize:(idx+1)*elemSize], src[k*elemSize:(k+1)*elemSize])
	}
}

// deviceStager stands in for an accelerator-memory path: there is no
// real device in this environment, so it runs the identical byte-stride
// permutation as hostStager. Its purpose in the suite is to prove the
// schedule and permutation logic never depend on where the staging
// buffer lives; a real build would swap this for a CUDA/ROCm-backed
// implementation behind the same three methods.
type deviceStager struct{}

func (deviceStager) alloc(n int) []byte { return make([]byte, n) }

func (deviceStager) pack(dst, src []byte, indices []int, elemSize int) {
	hostStager{}.pack(dst, src, indices, elemSize)
}

func (deviceStager) unpack(dst, src []byte, indices []int, elemSize int) {
	hostStager{}.unpack(dst, src, indices, elemSize)
}
