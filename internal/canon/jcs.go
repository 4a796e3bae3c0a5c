package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// jcsEncode renders a decoded JSON value (as produced by a
// json.Decoder with UseNumber) as RFC 8785 canonical JSON: object keys
// sorted, numbers in their shortest round-tripping decimal form, and no
// insignificant whitespace.
func jcsEncode(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := jcsWrite(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func jcsWrite(buf *bytes.Buffer, v interface{}) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		return jcsWriteNumber(buf, val)
	case float64:
		return jcsWriteNumber(buf, json.Number(strconv.FormatFloat(val, 'g', -1, 64)))
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
	case string:
		jcsWriteString(buf, val)
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := jcsWrite(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			jcsWriteString(buf, k)
			buf.WriteByte(':')
			if err := jcsWrite(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("canon: unsupported JCS value type %T", v)
	}
	return nil
}

func jcsWriteString(buf *bytes.Buffer, s string) {
	b, _ := json.Marshal(s) // stdlib already produces valid, escaped UTF-8 JSON strings
	buf.Write(b)
}

// jcsWriteNumber formats a JSON number per the ECMAScript Number-to-string
// algorithm RFC 8785 mandates: shortest round-tripping decimal, no
// trailing ".0", no leading "+" on exponents.
func jcsWriteNumber(buf *bytes.Buffer, n json.Number) error {
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("canon: invalid JSON number %q: %w", n, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("canon: JCS does not support NaN/Infinity")
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
		return nil
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}

// decodeJSON parses raw JSON preserving number precision via json.Number,
// the representation jcsWrite expects.
func decodeJSON(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("canon: decode JSON: %w", err)
	}
	return v, nil
}
