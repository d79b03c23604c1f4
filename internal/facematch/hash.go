package facematch

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// FaceHash returns a short stable fingerprint of an embedding, used to tell
// saved face crops and sighting entries apart. It is not an identity.
func FaceHash(embedding []float32) string {
	buf := make([]byte, 0, 4*len(embedding))
	for _, f := range embedding {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	h := strconv.FormatUint(xxhash.Sum64(buf), 16)
	for len(h) < 16 {
		h = "0" + h
	}
	return h[:10]
}
