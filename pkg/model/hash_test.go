package model

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasher(t *testing.T) {
	h1 := NewHasher().String("ab").String("c").Sum()
	h2 := NewHasher().String("a").String("bc").Sum()
	assert.NotEqual(t, h1, h2, "field boundaries must matter")

	a, b := HashBytes([]byte("a")), HashBytes([]byte("b"))
	assert.Equal(t,
		NewHasher().SortedHashes([]Hash{a, b}).Sum(),
		NewHasher().SortedHashes([]Hash{b, a}).Sum(),
	)
	assert.Equal(t,
		NewHasher().SortedStrings([]string{"x", "y"}).Sum(),
		NewHasher().SortedStrings([]string{"y", "x"}).Sum(),
	)
}

func TestHashText(t *testing.T) {
	h := HashBytes([]byte{0xff})
	assert.Len(t, h.String(), 2*HashSize)
	assert.Len(t, h.Short(), 12)
	assert.Equal(t, "", ZeroHash.String())

	parsed, err := ParseHash(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)

	_, err = ParseHash("abc")
	assert.Error(t, err)
	_, err = ParseHash("abcd")
	assert.Error(t, err)

	buf, err := jsoniter.Marshal(struct{ H Hash }{H: h})
	require.NoError(t, err)
	var target struct{ H Hash }
	require.NoError(t, jsoniter.Unmarshal(buf, &target))
	assert.Equal(t, h, target.H)
}

func TestVersionContentHash(t *testing.T) {
	payload := HashBytes([]byte{0xff})
	hunk := Hunk{Partition: 0, Representation: State, Completion: Complete, PayloadKey: payload}
	hunk.Hash = hunk.ContentHash()

	other := hunk
	other.ID = NewID()
	other.VersionID = NewID()
	assert.Equal(t, hunk.ContentHash(), other.ContentHash(), "hunk hash does not cover ids")

	c1 := VersionContent{Representation: State, Hunks: []Hunk{hunk}}
	c2 := VersionContent{Representation: State, Hunks: []Hunk{other}}
	assert.Equal(t, c1.Hash(), c2.Hash())

	c3 := VersionContent{Representation: Delta, Hunks: []Hunk{hunk}}
	assert.NotEqual(t, c1.Hash(), c3.Hash())

	c4 := VersionContent{Representation: State, Hunks: []Hunk{hunk}, Parents: []Hash{payload}}
	assert.NotEqual(t, c1.Hash(), c4.Hash())

	c5 := VersionContent{Representation: Delta, Hunks: []Hunk{hunk}, Precedences: map[uint64]Hash{3: payload}}
	assert.NotEqual(t, c3.Hash(), c5.Hash())
}
