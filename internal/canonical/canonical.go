// Package canonical implements the single most important contract of
// this module: a deterministic byte serialization of a signed envelope,
// used as the message every signer in a multi-signature envelope signs.
//
// The envelope is serialized by sorting its top-level keys
// lexicographically, omitting "signature", "signatures", "prefix", and
// any field whose value is explicitly null, then prepending the
// domain-separation prefix as raw bytes ahead of the serialized JSON.
package canonical

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// excludedFields never participate in the signed payload: they carry
// the signatures themselves or the domain-separation prefix, not the
// content being attested to.
var excludedFields = map[string]bool{
	"signature":  true,
	"signatures": true,
	"prefix":     true,
}

// Payload derives the canonical signed bytes for rawEnvelope (a JSON
// object) under the given domain-separation prefix.
func Payload(rawEnvelope []byte, prefix string) ([]byte, error) {
	parsed := gjson.ParseBytes(rawEnvelope)
	if !parsed.IsObject() {
		return nil, errors.New("canonical: envelope must be a JSON object")
	}

	keys := make([]string, 0, 8)
	values := map[string]gjson.Result{}
	parsed.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		if excludedFields[k] {
			return true
		}
		if value.Type == gjson.Null {
			return true
		}
		keys = append(keys, k)
		values[k] = value
		return true
	})
	sort.Strings(keys)

	canonicalJSON := "{}"
	var err error
	for _, k := range keys {
		var compact bytes.Buffer
		if err = json.Compact(&compact, []byte(values[k].Raw)); err != nil {
			return nil, errors.Wrapf(err, "canonical: invalid JSON in field %q", k)
		}
		canonicalJSON, err = sjson.SetRaw(canonicalJSON, k, compact.String())
		if err != nil {
			return nil, errors.Wrapf(err, "canonical: failed to set field %q", k)
		}
	}

	out := make([]byte, 0, len(prefix)+len(canonicalJSON))
	out = append(out, []byte(prefix)...)
	out = append(out, []byte(canonicalJSON)...)
	return out, nil
}
