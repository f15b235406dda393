package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := New("test-secret", PurposePickLink)

	tok, err := codec.Encode(7, 3)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	participantID, roundID, err := codec.Decode(tok)
	require.NoError(t, err)
	require.Equal(t, uint(7), participantID)
	require.Equal(t, uint(3), roundID)
}

func TestDecodeRejectsTampering(t *testing.T) {
	codec := New("test-secret", PurposePickLink)

	tok, err := codec.Encode(42, 9)
	require.NoError(t, err)

	// Every possible single-character substitution must fail, including ones
	// that only touch the unused trailing bits of a segment's last character.
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_."
	for i := 0; i < len(tok); i++ {
		for j := 0; j < len(alphabet); j++ {
			if tok[i] == alphabet[j] {
				continue
			}
			mutated := []byte(tok)
			mutated[i] = alphabet[j]
			_, _, err := codec.Decode(string(mutated))
			require.ErrorIs(t, err, ErrInvalidToken,
				"substituting %q at position %d was accepted", alphabet[j], i)
		}
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	codec := New("test-secret", PurposePickLink)

	for _, input := range []string{"", "not-a-token", "a.b.c", "...."} {
		_, _, err := codec.Decode(input)
		require.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestDecodeRejectsWrongSecret(t *testing.T) {
	tok, err := New("secret-one", PurposePickLink).Encode(1, 2)
	require.NoError(t, err)

	_, _, err = New("secret-two", PurposePickLink).Decode(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestPurposesAreDistinctNamespaces(t *testing.T) {
	picks := New("shared-root-secret", PurposePickLink)
	views := New("shared-root-secret", PurposeViewPicks)

	tok, err := picks.Encode(5, 1)
	require.NoError(t, err)

	// Valid for its own purpose, replay under another purpose fails.
	_, _, err = picks.Decode(tok)
	require.NoError(t, err)
	_, _, err = views.Decode(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}
