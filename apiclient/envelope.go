package apiclient

import (
	"bytes"
	"encoding/json"

	apperrors "github.com/cagkantasci/smartop/internal/errors"
	"github.com/pkg/errors"
)

const envelopeDataKey = "data"

// DecodeList normalizes every list response shape the backend produces:
//
//	[ ... ]                      bare array
//	{"<key>": [ ... ]}           wrapped under a resource key (machines, submissions, ...)
//	{"data": [ ... ]}            generic envelope
//	{"data": {"<key>": [ ... ]}} paginated envelope
//
// keys are tried in order before "data". null or an empty body is an empty list.
func DecodeList[T any](raw []byte, keys ...string) ([]T, error) {
	return decodeList[T](raw, keys, 1)
}

func decodeList[T any](raw []byte, keys []string, depth int) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}

	switch trimmed[0] {
	case '[':
		items := []T{}
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, errors.Wrap(err, "decode list")
		}
		return items, nil
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil, errors.Wrap(err, "decode list envelope")
		}
		for _, key := range append(append([]string{}, keys...), envelopeDataKey) {
			inner, ok := obj[key]
			if !ok {
				continue
			}
			innerTrimmed := bytes.TrimSpace(inner)
			if len(innerTrimmed) > 0 && innerTrimmed[0] == '{' && depth == 0 {
				break
			}
			return decodeList[T](inner, keys, depth-1)
		}
	}
	return nil, errors.Wrap(apperrors.ErrInvalidInput, "unrecognised list envelope")
}
