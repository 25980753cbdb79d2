package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ppiankov/contractrag/internal/model"
)

const keyPrefix = "contractrag:v1:"

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key builds a cache key from its parts (e.g. provider, model, dimension, text)
func Key(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return keyPrefix + hex.EncodeToString(hash[:])
}

// New builds the cache described by cfg: memory only, or memory over disk
// when a directory is configured. A disabled cache returns nil.
func New(cfg model.CacheConfig) Cache {
	if !cfg.Enabled {
		return nil
	}
	ttl := time.Duration(cfg.TTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if cfg.Dir == "" {
		return NewMemoryCache(ttl, 10*time.Minute)
	}
	return NewLayeredCache(ttl, cfg.Dir, ttl)
}

// EncodeVector serializes a vector as little-endian float32 values
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector is the inverse of EncodeVector
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
