package sstkeys

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// KeyEncoding defines how keys are rendered by EncodeKeys.
type KeyEncoding byte

// Supported key encodings.
const (
	// TextKeys emits valid UTF-8 keys verbatim and all other keys, as well
	// as keys starting with the Base64Marker, as Base64Marker followed by
	// their standard base64 encoding.
	TextKeys KeyEncoding = iota
	// Base64Keys emits every key as standard base64.
	Base64Keys
	// HexKeys emits every key as lower-case hex.
	HexKeys
	// StenoKeys renders typed stenographer index keys via FormatStenoKey
	// and all other keys as Base64Marker followed by their base64 encoding.
	StenoKeys
	unknownKeyEncoding
)

// Base64Marker prefixes base64-escaped keys in TextKeys output.
const Base64Marker = "b64:"

func (e KeyEncoding) isValid() bool { return e < unknownKeyEncoding }

func (e KeyEncoding) String() string {
	switch e {
	case TextKeys:
		return "text"
	case Base64Keys:
		return "base64"
	case HexKeys:
		return "hex"
	case StenoKeys:
		return "steno"
	}
	return "unknown"
}

// ParseKeyEncoding parses the String form of an encoding.
func ParseKeyEncoding(s string) (KeyEncoding, error) {
	for e := TextKeys; e < unknownKeyEncoding; e++ {
		if e.String() == s {
			return e, nil
		}
	}
	return unknownKeyEncoding, errors.Errorf("sstkeys: unknown key encoding %q", s)
}

func (e KeyEncoding) encode(key []byte) string {
	switch e {
	case Base64Keys:
		return base64.StdEncoding.EncodeToString(key)
	case HexKeys:
		return hex.EncodeToString(key)
	case StenoKeys:
		if s, ok := FormatStenoKey(key); ok {
			return s
		}
		return Base64Marker + base64.StdEncoding.EncodeToString(key)
	}
	if utf8.Valid(key) && !bytes.HasPrefix(key, []byte(Base64Marker)) {
		return string(key)
	}
	return Base64Marker + base64.StdEncoding.EncodeToString(key)
}

func (e KeyEncoding) decode(s string) ([]byte, error) {
	switch e {
	case Base64Keys:
		return base64.StdEncoding.DecodeString(s)
	case HexKeys:
		return hex.DecodeString(s)
	}
	if strings.HasPrefix(s, Base64Marker) {
		return base64.StdEncoding.DecodeString(s[len(Base64Marker):])
	}
	if e == StenoKeys {
		return ParseStenoKey(s)
	}
	return []byte(s), nil
}

// EncodeKeys renders keys as a JSON array of strings, in the given order.
// The output has no trailing newline and does not escape HTML characters.
func EncodeKeys(keys [][]byte, enc KeyEncoding) (string, error) {
	if !enc.isValid() {
		return "", errors.Errorf("sstkeys: unknown key encoding %d", enc)
	}

	strs := make([]string, len(keys))
	for i, key := range keys {
		strs[i] = enc.encode(key)
	}

	buf := new(bytes.Buffer)
	jenc := json.NewEncoder(buf)
	jenc.SetEscapeHTML(false)
	if err := jenc.Encode(strs); err != nil {
		return "", errors.Wrap(err, "sstkeys: encode keys")
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// DecodeKeys parses the output of EncodeKeys.
func DecodeKeys(s string, enc KeyEncoding) ([][]byte, error) {
	var strs []string
	if err := json.Unmarshal([]byte(s), &strs); err != nil {
		return nil, errors.Wrap(err, "sstkeys: decode keys")
	}

	keys := make([][]byte, len(strs))
	for i, str := range strs {
		key, err := enc.decode(str)
		if err != nil {
			return nil, errors.Wrapf(err, "sstkeys: decode key %d", i)
		}
		keys[i] = key
	}
	return keys, nil
}
