package digestcodec

import (
	"encoding/binary"
	"math"
)

func BoolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func WriteU64(w mapWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	w.Write(tmp[:])
}

func WriteI64(w mapWriter, tmp *[8]byte, v int64) { WriteU64(w, tmp, uint64(v)) }

// WriteF64 hashes the exact bit pattern; callers must not feed NaN.
func WriteF64(w mapWriter, tmp *[8]byte, v float64) { WriteU64(w, tmp, math.Float64bits(v)) }
