// Package canon produces a stable byte form for a document so content
// hashes are invariant under benign formatting differences, and hashes
// that canonical form with BLAKE3 (spec §4.1).
package canon

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
	"github.com/xchecker-dev/xchecker/internal/spec"
	"gopkg.in/yaml.v3"
)

// Version is recorded in every receipt's versions.canonicalization_version.
const Version = "yaml-v1,md-v1"

// Backend is recorded in every receipt's versions.canonicalization_backend.
const Backend = "jcs-rfc8785"

// Canonicalize maps body to its canonical byte form per its artifact type.
// YAML and JSON both route through JCS (RFC 8785); Markdown and Text get
// line-ending/whitespace normalization. canonicalize(canonicalize(x)) must
// equal canonicalize(x) for every supported type.
func Canonicalize(body []byte, typ spec.ArtifactType) ([]byte, error) {
	switch typ {
	case spec.ArtifactJSON:
		v, err := decodeJSON(body)
		if err != nil {
			return nil, err
		}
		return jcsEncode(v)
	case spec.ArtifactYAML:
		var v interface{}
		if err := yaml.Unmarshal(body, &v); err != nil {
			return nil, fmt.Errorf("canon: decode YAML: %w", err)
		}
		return jcsEncode(normalizeYAMLValue(v))
	case spec.ArtifactMarkdown, spec.ArtifactText:
		return canonicalizeText(body), nil
	default:
		return nil, fmt.Errorf("canon: unknown artifact type %q", typ)
	}
}

// canonicalizeText normalizes line endings to LF, strips trailing spaces
// per line, collapses consecutive blank lines to one, and guarantees a
// final newline.
func canonicalizeText(body []byte) []byte {
	s := strings.ReplaceAll(string(body), "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}

	var out []string
	blank := false
	for _, l := range lines {
		if l == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, l)
	}

	result := strings.Join(out, "\n")
	result = strings.TrimRight(result, "\n")
	return []byte(result + "\n")
}

// normalizeYAMLValue converts yaml.v3's decoded representation
// (map[string]interface{}, []interface{}, string/bool/int/float64/nil)
// into the shape jcsWrite expects, recursing into nested maps/slices.
func normalizeYAMLValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			out[k] = normalizeYAMLValue(vv)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, vv := range val {
			out[fmt.Sprintf("%v", k)] = normalizeYAMLValue(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, vv := range val {
			out[i] = normalizeYAMLValue(vv)
		}
		return out
	default:
		return val
	}
}

// Hash returns the BLAKE3-256 hex digest of body's canonical form.
func Hash(body []byte, typ spec.ArtifactType) (string, error) {
	c, err := Canonicalize(body, typ)
	if err != nil {
		return "", err
	}
	return hashBytes(c), nil
}

// HashRaw returns the BLAKE3-256 hex digest of body with no
// canonicalization applied — used for blake3_pre_redaction, which is
// computed over the file's literal bytes.
func HashRaw(body []byte) string {
	return hashBytes(body)
}

func hashBytes(b []byte) string {
	h := blake3.New()
	_, _ = h.Write(b)
	sum := h.Sum(nil)
	return hex.EncodeToString(sum)
}

// RoundTripEqual reports whether canonicalizing twice is idempotent —
// the invariant exercised by the "round-trip canonicalization" property.
func RoundTripEqual(body []byte, typ spec.ArtifactType) (bool, error) {
	once, err := Canonicalize(body, typ)
	if err != nil {
		return false, err
	}
	twice, err := Canonicalize(once, typ)
	if err != nil {
		return false, err
	}
	return bytes.Equal(once, twice), nil
}
