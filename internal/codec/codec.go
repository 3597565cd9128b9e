// Package codec converts between Go values and message payloads.
//
// The dispatcher decodes inbound payloads with the codec attached to a route,
// falling back to a default. Publishing encodes values the same way. Three
// codecs are built in: JSON (the default), YAML and Text.
package codec

import (
	"encoding"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/skyroute/internal/errkind"
)

// Codec encodes values to payload bytes and decodes them back.
type Codec interface {
	// Name identifies the codec in configuration, e.g. "json".
	Name() string

	// Encode converts v to bytes.
	Encode(v any) ([]byte, error)

	// Decode parses data into v, which must be a non-nil pointer.
	// Failures wrap ErrDecode.
	Decode(data []byte, v any) error
}

var (
	// ErrDecode wraps every decoding failure.
	ErrDecode = fmt.Errorf("%w: codec: payload cannot be decoded", errkind.ErrDecode)

	// ErrEncode wraps every encoding failure.
	ErrEncode = fmt.Errorf("%w: codec: value cannot be encoded", errkind.ErrConfiguration)

	// ErrUnknownCodec is returned by ByName for an unregistered name.
	ErrUnknownCodec = fmt.Errorf("%w: codec: unknown codec", errkind.ErrConfiguration)
)

// Built-in codecs.
var (
	JSON Codec = jsonCodec{}
	YAML Codec = yamlCodec{}
	Text Codec = textCodec{}
)

// Default is used when a route or publish call names no codec.
var Default = JSON

// ByName returns the built-in codec called name (case-insensitive).
// An empty name selects Default.
func ByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return Default, nil
	case "json":
		return JSON, nil
	case "yaml", "yml":
		return YAML, nil
	case "text", "plain":
		return Text, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: json: %w", ErrEncode, err)
	}
	return data, nil
}

func (jsonCodec) Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: json: %w", ErrDecode, err)
	}
	return nil
}

type yamlCodec struct{}

func (yamlCodec) Name() string { return "yaml" }

func (yamlCodec) Encode(v any) (data []byte, err error) {
	// yaml.v3 panics on some unsupported types (channels, funcs).
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: yaml: %v", ErrEncode, r)
		}
	}()
	data, err = yaml.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: yaml: %w", ErrEncode, err)
	}
	return data, nil
}

func (yamlCodec) Decode(data []byte, v any) error {
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: yaml: %w", ErrDecode, err)
	}
	return nil
}

// textCodec carries UTF-8 text. It encodes strings, byte slices,
// encoding.TextMarshaler and fmt.Stringer values, and decodes into *string,
// *[]byte or an encoding.TextUnmarshaler.
type textCodec struct{}

func (textCodec) Name() string { return "text" }

func (textCodec) Encode(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []byte(val), nil
	case []byte:
		return val, nil
	case encoding.TextMarshaler:
		data, err := val.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("%w: text: %w", ErrEncode, err)
		}
		return data, nil
	case fmt.Stringer:
		return []byte(val.String()), nil
	default:
		return []byte(fmt.Sprint(val)), nil
	}
}

func (textCodec) Decode(data []byte, v any) error {
	switch dst := v.(type) {
	case *string:
		*dst = string(data)
	case *[]byte:
		*dst = append((*dst)[:0], data...)
	case *any:
		*dst = string(data)
	case encoding.TextUnmarshaler:
		if err := dst.UnmarshalText(data); err != nil {
			return fmt.Errorf("%w: text: %w", ErrDecode, err)
		}
	default:
		return fmt.Errorf("%w: text: unsupported target %T", ErrDecode, v)
	}
	return nil
}
