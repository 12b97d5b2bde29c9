package runtime

import (
	"github.com/dchest/siphash"
)

// Fixed SipHash key for the intern table. Interning must be deterministic
// across runs so compiled chunks stay byte-identical for identical sources.
const (
	internKey0 = 0x736f6d6570736575
	internKey1 = 0x646f72616e646f6d
)

// interner hash-conses strings: equal strings share one heap handle, so
// string equality in the common path is handle equality.
type interner struct {
	buckets map[uint64][]Value
}

func newInterner() *interner {
	return &interner{buckets: make(map[uint64][]Value, 64)}
}

func (in *interner) intern(h *Heap, s string) Value {
	sum := siphash.Hash(internKey0, internKey1, []byte(s))
	for _, v := range in.buckets[sum] {
		if h.Get(v).(*ObjString).Value == s {
			return v
		}
	}
	v := h.Alloc(&ObjString{Value: s})
	in.buckets[sum] = append(in.buckets[sum], v)
	return v
}
