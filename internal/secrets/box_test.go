package secrets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundTrip(t *testing.T) {
	box, err := NewBox("correct horse battery staple")
	require.NoError(t, err)

	sealed, err := box.Seal("Administrator:hunter2")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "hunter2")

	plaintext, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "Administrator:hunter2", plaintext)
}

func TestSeal_NoncesDiffer(t *testing.T) {
	box, err := NewBox("passphrase")
	require.NoError(t, err)

	a, err := box.Seal("same input")
	require.NoError(t, err)
	b, err := box.Seal("same input")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestOpen_WrongKey(t *testing.T) {
	box1, err := NewBox("passphrase one")
	require.NoError(t, err)
	box2, err := NewBox("passphrase two")
	require.NoError(t, err)

	sealed, err := box1.Seal("secret")
	require.NoError(t, err)

	_, err = box2.Open(sealed)
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestOpen_Garbage(t *testing.T) {
	box, err := NewBox("passphrase")
	require.NoError(t, err)

	_, err = box.Open([]byte("short"))
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestNewBox_EmptyPassphrase(t *testing.T) {
	_, err := NewBox("")
	assert.Error(t, err)
}
