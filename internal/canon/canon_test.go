package canon

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xchecker-dev/xchecker/internal/spec"
)

func TestCanonicalize_YAMLKeyOrderInvariant(t *testing.T) {
	a := []byte("b: 2\na: 1\n")
	b := []byte("a: 1\nb: 2\n")

	ha, err := Hash(a, spec.ArtifactYAML)
	require.NoError(t, err)
	hb, err := Hash(b, spec.ArtifactYAML)
	require.NoError(t, err)
	require.Equal(t, ha, hb)
}

func TestCanonicalize_JSONKeyOrderInvariant(t *testing.T) {
	a := []byte(`{"b":2,"a":1}`)
	b := []byte(`{"a":1,"b":2}`)

	ha, err := Hash(a, spec.ArtifactJSON)
	require.NoError(t, err)
	hb, err := Hash(b, spec.ArtifactJSON)
	require.NoError(t, err)
	require.Equal(t, ha, hb)
}

func TestCanonicalize_RoundTripIdempotent(t *testing.T) {
	for _, typ := range []spec.ArtifactType{spec.ArtifactYAML, spec.ArtifactJSON, spec.ArtifactMarkdown, spec.ArtifactText} {
		var body []byte
		switch typ {
		case spec.ArtifactYAML:
			body = []byte("z: 1\na:\n  - 1\n  - 2\n")
		case spec.ArtifactJSON:
			body = []byte(`{"z":1,"a":[1,2]}`)
		default:
			body = []byte("# Title  \r\n\r\n\r\nBody text.\n\n\n")
		}
		eq, err := RoundTripEqual(body, typ)
		require.NoError(t, err, "type=%s", typ)
		require.True(t, eq, "type=%s", typ)
	}
}

func TestCanonicalizeText_NormalizesLineEndingsAndBlankLines(t *testing.T) {
	body := []byte("Title  \r\nLine2\r\n\r\n\r\n\r\nLine3   \n")
	out := canonicalizeText(body)
	require.Equal(t, "Title\nLine2\n\nLine3\n", string(out))
}

func TestCanonicalizeText_AlwaysEndsWithNewline(t *testing.T) {
	out := canonicalizeText([]byte("no trailing newline"))
	require.Equal(t, "no trailing newline\n", string(out))
}

func TestHashRaw_StableForIdenticalBytes(t *testing.T) {
	require.Equal(t, HashRaw([]byte("same")), HashRaw([]byte("same")))
	require.NotEqual(t, HashRaw([]byte("same")), HashRaw([]byte("different")))
}
