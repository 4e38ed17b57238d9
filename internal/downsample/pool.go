package downsample

import "sync"

// u8Pools and u16Pools recycle the pairwise-mean scratch buffer keyed by
// pixel count. Unlike the final decimated output (which may escape into
// PyramidResult.Volume when retention is requested), the mean
// buffer is always fully consumed by decimate() within the same call and
// never kept — exactly the short-lived-temporary shape the teacher's
// rgbaPool (internal/tile/rgbapool.go) recycles for quadrant composition.
var u8Pools sync.Map
var u16Pools sync.Map

func getU8(n int) []uint8 {
	p, _ := u8Pools.LoadOrStore(n, &sync.Pool{})
	pool := p.(*sync.Pool)
	if v := pool.Get(); v != nil {
		return v.([]uint8)
	}
	return make([]uint8, n)
}

func putU8(b []uint8) {
	p, _ := u8Pools.LoadOrStore(len(b), &sync.Pool{})
	p.(*sync.Pool).Put(b)
}

func getU16(n int) []uint16 {
	p, _ := u16Pools.LoadOrStore(n, &sync.Pool{})
	pool := p.(*sync.Pool)
	if v := pool.Get(); v != nil {
		return v.([]uint16)
	}
	return make([]uint16, n)
}

func putU16(b []uint16) {
	p, _ := u16Pools.LoadOrStore(len(b), &sync.Pool{})
	p.(*sync.Pool).Put(b)
}
