package hashutil_test

import (
	"testing"

	"github.com/nrahal/wgor/pkg/hashutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashBytes_SHA256KnownVectors(t *testing.T) {
	got, err := hashutil.HashBytes(nil, hashutil.HashAlgoSHA256)
	require.NoError(t, err)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", got)

	got, err = hashutil.HashBytes([]byte("abc"), hashutil.HashAlgoSHA256)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", got)
}

func TestHashBytes_BLAKE3Properties(t *testing.T) {
	a, err := hashutil.HashBytes([]byte("http://h/a"), hashutil.HashAlgoBLAKE3)
	require.NoError(t, err)
	b, err := hashutil.HashBytes([]byte("http://h/b"), hashutil.HashAlgoBLAKE3)
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.Len(t, b, 64)
	assert.NotEqual(t, a, b)

	again, err := hashutil.HashBytes([]byte("http://h/a"), hashutil.HashAlgoBLAKE3)
	require.NoError(t, err)
	assert.Equal(t, a, again)
}

func TestHashBytes_AlgosDisagree(t *testing.T) {
	s, err := hashutil.HashBytes([]byte("x"), hashutil.HashAlgoSHA256)
	require.NoError(t, err)
	b, err := hashutil.HashBytes([]byte("x"), hashutil.HashAlgoBLAKE3)
	require.NoError(t, err)
	assert.NotEqual(t, s, b)
}

func TestHashBytes_UnknownAlgo(t *testing.T) {
	_, err := hashutil.HashBytes([]byte("x"), hashutil.HashAlgo("md5"))
	assert.Error(t, err)
}

func TestHashString_MatchesHashBytes(t *testing.T) {
	fromString, err := hashutil.HashString("http://h/a", hashutil.HashAlgoBLAKE3)
	require.NoError(t, err)
	fromBytes, err := hashutil.HashBytes([]byte("http://h/a"), hashutil.HashAlgoBLAKE3)
	require.NoError(t, err)
	assert.Equal(t, fromBytes, fromString)
}
