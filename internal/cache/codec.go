package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/gzip"

	"github.com/Asdisarson/ss/internal/domain"
)

// KeyPrefix namespaces every search cache key. Bump the version when the
// envelope layout changes.
const KeyPrefix = "search:v1:"

// compressedSuffix tags keys holding gzip payloads.
const compressedSuffix = ":gz"

// Signature identifies one page of results for a normalized query.
type Signature string

// NewSignature derives the cache key for a normalized query and page.
func NewSignature(normalizedQuery string, page, pageSize int) Signature {
	sum := sha256.Sum256([]byte(normalizedQuery))
	return Signature(KeyPrefix + hex.EncodeToString(sum[:16]) + ":" +
		strconv.Itoa(page) + ":" + strconv.Itoa(pageSize))
}

func (s Signature) plainKey() string      { return string(s) }
func (s Signature) compressedKey() string { return string(s) + compressedSuffix }

// encodeEnvelope renders env as JSON, gzipped when it exceeds threshold bytes.
func encodeEnvelope(env *domain.Envelope, threshold int) (data []byte, compressed bool, err error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, false, fmt.Errorf("marshal envelope: %w", err)
	}
	if len(raw) <= threshold {
		return raw, false, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, false, fmt.Errorf("gzip envelope: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, false, fmt.Errorf("gzip envelope: %w", err)
	}
	return buf.Bytes(), true, nil
}

func decodeEnvelope(data []byte, compressed bool) (*domain.Envelope, error) {
	if compressed {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gunzip envelope: %w", err)
		}
		defer zr.Close()
		if data, err = io.ReadAll(zr); err != nil {
			return nil, fmt.Errorf("gunzip envelope: %w", err)
		}
	}

	var env domain.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	if env.Results == nil {
		env.Results = []domain.ScoredProduct{}
	}
	return &env, nil
}
