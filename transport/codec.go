package transport

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// Numbers are decoded as json.Number so integral correlation keys survive the
// round trip without turning into float64.
var codec = jsoniter.Config{
	UseNumber:              true,
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// EncodeArgs serializes an argument tuple as a JSON array.
func EncodeArgs(args []interface{}) ([]byte, error) {
	if args == nil {
		args = []interface{}{}
	}
	payload, err := codec.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode args: %w", err)
	}
	return payload, nil
}

// DecodeArgs parses a payload produced by EncodeArgs. An empty payload is an
// empty tuple.
func DecodeArgs(payload []byte) ([]interface{}, error) {
	if len(payload) == 0 {
		return []interface{}{}, nil
	}
	var args []interface{}
	if err := codec.Unmarshal(payload, &args); err != nil {
		return nil, fmt.Errorf("decode args: %w", err)
	}
	if args == nil {
		args = []interface{}{}
	}
	return args, nil
}
