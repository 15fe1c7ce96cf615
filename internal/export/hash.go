package export

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
	"golang.org/x/crypto/argon2"
)

// HashType represents the different hashing algorithms available.
type HashType string

const (
	// HashTypeArgon2id uses the Argon2id algorithm for hashing.
	HashTypeArgon2id HashType = "argon2id"
	// HashTypeSHA256 uses the SHA256 algorithm for hashing.
	HashTypeSHA256 HashType = "sha256"
)

// HashID pseudonymizes a user ID using the specified algorithm with the provided salt.
func HashID(id int64, salt string, hashType HashType, iterations uint32, memory uint32) string {
	// Convert ID to bytes in little-endian format
	idBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(idBytes, uint64(id)) //nolint:gosec // ids are positive

	var hash []byte

	switch hashType {
	case HashTypeArgon2id:
		hash = argon2.IDKey(idBytes, []byte(salt), max(iterations, 1), max(memory, 1)*1024, 1, 32)
	case HashTypeSHA256:
		// Iterative SHA256 hashing with salt
		hash = []byte(salt)

		h := sha256.New()
		for range max(iterations, 1) {
			h.Reset()
			h.Write(idBytes)
			h.Write(hash)
			hash = h.Sum(nil)
		}
	}

	return hex.EncodeToString(hash)
}

// hasher pseudonymizes user IDs once each.
type hasher struct {
	config *Config
	cache  map[int64]string
}

func newHasher(config *Config) *hasher {
	return &hasher{config: config, cache: make(map[int64]string)}
}

// hashAll hashes every ID not seen before, concurrently, printing progress.
func (h *hasher) hashAll(ids []int64) {
	pending := make([]int64, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := h.cache[id]; ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		pending = append(pending, id)
	}

	if len(pending) == 0 {
		return
	}

	hashes := make([]string, len(pending))
	total := len(pending)
	start := time.Now()

	var processed atomic.Int64

	p := pool.New().WithMaxGoroutines(int(max(h.config.Concurrency, 1)))
	for i, id := range pending {
		p.Go(func() {
			hashes[i] = HashID(id, h.config.Salt, HashType(h.config.HashType), h.config.Iterations, h.config.Memory)

			done := processed.Add(1)
			fmt.Printf("\r  %d/%d (%d%%)        ", done, total, done*100/int64(total))
		})
	}
	p.Wait()

	fmt.Printf("\r  %d/%d (100%%) Time: %s        \n", total, total, formatDuration(time.Since(start)))

	for i, id := range pending {
		h.cache[id] = hashes[i]
	}
}

// get returns the hash of an ID passed to hashAll.
func (h *hasher) get(id int64) string {
	return h.cache[id]
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	hours := int64(d.Hours())
	minutes := int64(d.Minutes()) % 60
	seconds := int64(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
	}

	if minutes > 0 {
		return fmt.Sprintf("%dm%ds", minutes, seconds)
	}

	return fmt.Sprintf("%ds", seconds)
}
