package digestcodec

import (
	"encoding/binary"
	"sort"
)

type mapWriter interface {
	Write(p []byte) (n int, err error)
}

// WriteSortedNonZeroIntMap emits a deterministic key-sorted map encoding,
// skipping zero values to keep digest payload stable and compact.
func WriteSortedNonZeroIntMap[K ~string](w mapWriter, tmp *[8]byte, m map[K]int) {
	keys := make([]K, 0, len(m))
	for k, v := range m {
		if v != 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		WriteString(w, tmp, string(k))
		binary.LittleEndian.PutUint64(tmp[:], uint64(m[k]))
		w.Write(tmp[:])
	}
}

// WriteString is length-prefixed so adjacent strings cannot alias.
func WriteString(w mapWriter, tmp *[8]byte, s string) {
	binary.LittleEndian.PutUint64(tmp[:], uint64(len(s)))
	w.Write(tmp[:])
	w.Write([]byte(s))
}
