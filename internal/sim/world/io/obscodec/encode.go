package obscodec

import (
	"encoding/base64"
	"math"
)

// EncodeProgressU16LE packs belt progress values in [0,1] as little-endian uint16 fixed point.
func EncodeProgressU16LE(progress []float64) string {
	buf := make([]byte, len(progress)*2)
	for i, p := range progress {
		v := quantize(p)
		off := i * 2
		buf[off] = byte(v)
		buf[off+1] = byte(v >> 8)
	}
	return base64.StdEncoding.EncodeToString(buf)
}

func DecodeProgressU16LE(s string) ([]float64, error) {
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(buf)/2)
	for i := range out {
		v := uint16(buf[i*2]) | uint16(buf[i*2+1])<<8
		out[i] = float64(v) / math.MaxUint16
	}
	return out, nil
}

func quantize(p float64) uint16 {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return math.MaxUint16
	}
	return uint16(math.Round(p * math.MaxUint16))
}
