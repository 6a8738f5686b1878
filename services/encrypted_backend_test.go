package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

// fakeVectorIndex is an in-memory VectorIndex for tests. Matches score
// 0.9 unless a per-record score is set.
type fakeVectorIndex struct {
	mu      sync.Mutex
	records map[string]VectorRecord
	scores  map[string]float64
}

func newFakeVectorIndex() *fakeVectorIndex {
	return &fakeVectorIndex{
		records: make(map[string]VectorRecord),
		scores:  make(map[string]float64),
	}
}

var _ VectorIndex = (*fakeVectorIndex)(nil)

func (f *fakeVectorIndex) EnsureReady(context.Context) error { return nil }

func (f *fakeVectorIndex) Upsert(_ context.Context, records []VectorRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range records {
		f.records[r.ID] = r
	}
	return nil
}

func (f *fakeVectorIndex) Query(_ context.Context, _ []float32, topK int, namespace string) ([]VectorMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var matches []VectorMatch
	for _, r := range f.records {
		if namespace != "" && r.Namespace != namespace {
			continue
		}
		score := 0.9
		if s, ok := f.scores[r.ID]; ok {
			score = s
		}
		matches = append(matches, VectorMatch{Record: r, Score: score})
		if len(matches) >= topK {
			break
		}
	}
	return matches, nil
}

func (f *fakeVectorIndex) Delete(_ context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.records, id)
	}
	return nil
}

func (f *fakeVectorIndex) DeleteByDocument(_ context.Context, documentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, r := range f.records {
		if r.DocumentID == documentID {
			delete(f.records, id)
		}
	}
	return nil
}

func (f *fakeVectorIndex) Stats(context.Context) (*IndexStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	namespaces := make(map[string]int)
	for _, r := range f.records {
		namespaces[r.Namespace]++
	}
	return &IndexStats{TotalVectors: len(f.records), Namespaces: namespaces}, nil
}

func TestNewEncryptedVectorIndexKeyValidation(t *testing.T) {
	inner := newFakeVectorIndex()

	_, err := NewEncryptedVectorIndex(inner, "not-hex")
	assert.Error(t, err)

	_, err = NewEncryptedVectorIndex(inner, "abcd")
	assert.Error(t, err, "key too short")

	_, err = NewEncryptedVectorIndex(inner, testHexKey)
	assert.NoError(t, err)
}

func TestEncryptedVectorIndexRoundTrip(t *testing.T) {
	inner := newFakeVectorIndex()
	enc, err := NewEncryptedVectorIndex(inner, testHexKey)
	require.NoError(t, err)

	ctx := context.Background()
	err = enc.Upsert(ctx, []VectorRecord{{
		ID:         "doc-1-chunk-0",
		DocumentID: "doc-1",
		Namespace:  "default",
		Content:    "merchant processing rates are 2.9%",
	}})
	require.NoError(t, err)

	// Content at rest is ciphertext
	stored := inner.records["doc-1-chunk-0"]
	assert.True(t, strings.HasPrefix(stored.Content, "enc:v1:"))
	assert.NotContains(t, stored.Content, "merchant")

	// Queries see plaintext
	matches, err := enc.Query(ctx, []float32{0.1}, 10, "default")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "merchant processing rates are 2.9%", matches[0].Record.Content)
}

func TestEncryptedVectorIndexDropsCorruptedContent(t *testing.T) {
	inner := newFakeVectorIndex()
	enc, err := NewEncryptedVectorIndex(inner, testHexKey)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, enc.Upsert(ctx, []VectorRecord{{
		ID: "good", DocumentID: "doc-1", Namespace: "default", Content: "readable",
	}}))

	// Corrupt a row directly in the store
	inner.records["bad"] = VectorRecord{
		ID: "bad", DocumentID: "doc-1", Namespace: "default",
		Content: "enc:v1:AAAA",
	}

	matches, err := enc.Query(ctx, []float32{0.1}, 10, "default")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "good", matches[0].Record.ID)
}

func TestEncryptedVectorIndexPassesThroughPlaintext(t *testing.T) {
	inner := newFakeVectorIndex()
	enc, err := NewEncryptedVectorIndex(inner, testHexKey)
	require.NoError(t, err)

	// Row written before encryption was enabled
	inner.records["legacy"] = VectorRecord{
		ID: "legacy", DocumentID: "doc-1", Namespace: "default",
		Content: "plaintext row",
	}

	matches, err := enc.Query(context.Background(), []float32{0.1}, 10, "default")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "plaintext row", matches[0].Record.Content)
}
