// Package digest produces a deterministic content hash for fetch payloads.
//
// The digest is a change-detection signal, not a security primitive: two
// payloads that differ only in map iteration order or in floating-point
// representation noise below a fixed epsilon hash identically, while any
// semantic difference hashes differently with overwhelming probability.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"math"
	"sort"
	"strconv"
	"time"
)

// floatPrecision is the number of fixed-point decimal digits retained when
// canonicalizing numbers. Representation noise below 1e-9 does not change
// the digest.
const floatPrecision = 9

// Digest computes the canonical SHA-256 hex digest of a payload
func Digest(payload map[string]interface{}) string {
	h := sha256.New()
	writeValue(h, payload)
	return hex.EncodeToString(h.Sum(nil))
}

// writeValue appends the canonical encoding of v to the running hash.
// Type tags separate categories so "1" (string) and 1 (number) differ.
func writeValue(h hash.Hash, v interface{}) {
	switch val := v.(type) {
	case nil:
		h.Write([]byte("z"))
	case bool:
		if val {
			h.Write([]byte("b1"))
		} else {
			h.Write([]byte("b0"))
		}
	case string:
		h.Write([]byte("s"))
		h.Write([]byte(val))
		h.Write([]byte{0})
	case time.Time:
		h.Write([]byte("t"))
		h.Write([]byte(val.UTC().Format(time.RFC3339Nano)))
		h.Write([]byte{0})
	case map[string]interface{}:
		h.Write([]byte("{"))
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			h.Write([]byte(k))
			h.Write([]byte{0})
			writeValue(h, val[k])
		}
		h.Write([]byte("}"))
	case []interface{}:
		h.Write([]byte("["))
		for _, item := range val {
			writeValue(h, item)
		}
		h.Write([]byte("]"))
	default:
		if f, ok := asFloat(v); ok {
			h.Write([]byte("n"))
			h.Write([]byte(canonicalNumber(f)))
			h.Write([]byte{0})
			return
		}
		// Unknown scalar types fall back to their printed form
		h.Write([]byte("?"))
		fmt.Fprintf(h, "%v", val)
		h.Write([]byte{0})
	}
}

// canonicalNumber renders a float truncated to fixed-point precision so that
// representation noise below the epsilon cannot churn the digest
func canonicalNumber(f float64) string {
	if math.IsNaN(f) {
		return "nan"
	}
	if math.IsInf(f, 1) {
		return "+inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}

	scale := math.Pow10(floatPrecision)
	truncated := math.Trunc(f*scale) / scale
	return strconv.FormatFloat(truncated, 'f', floatPrecision, 64)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
