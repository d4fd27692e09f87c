// Package encoding provides JSON-serializable encoding types.
package encoding

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidDataURL is returned for malformed data URLs or base64 payloads.
var ErrInvalidDataURL = errors.New("encoding: invalid data url")

// DataURL is binary content carried in JSON either as an RFC 2397 data URL
// ("data:audio/webm;codecs=opus;base64,GkXf...") or as bare standard
// base64. Browsers' FileReader.readAsDataURL produces the first form.
type DataURL struct {
	// MIMEType is the media type without parameters. Empty for bare base64.
	MIMEType string
	Data     []byte
}

// ParseDataURL decodes s.
func ParseDataURL(s string) (DataURL, error) {
	s = strings.TrimSpace(s)
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		data, err := decodeBase64(s)
		if err != nil {
			return DataURL{}, err
		}
		return DataURL{Data: data}, nil
	}

	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return DataURL{}, fmt.Errorf("%w: missing ','", ErrInvalidDataURL)
	}
	params := strings.Split(meta, ";")
	if params[len(params)-1] != "base64" {
		return DataURL{}, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}
	data, err := decodeBase64(payload)
	if err != nil {
		return DataURL{}, err
	}
	return DataURL{MIMEType: strings.ToLower(strings.TrimSpace(params[0])), Data: data}, nil
}

// decodeBase64 accepts padded and unpadded standard base64.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	data, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return data, nil
}

// String returns the data URL form. Without a MIME type the result is bare
// base64.
func (d DataURL) String() string {
	enc := base64.StdEncoding.EncodeToString(d.Data)
	if d.MIMEType == "" {
		return enc
	}
	return "data:" + d.MIMEType + ";base64," + enc
}

// MarshalJSON implements json.Marshaler.
func (d DataURL) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DataURL) UnmarshalJSON(data []byte) error {
	if len(data) == 0 {
		return errors.New("unmarshal json data url: empty data")
	}
	switch data[0] {
	case 'n': // null
		return nil
	case '"':
		s, err := strconv.Unquote(string(data))
		if err != nil {
			return fmt.Errorf("unmarshal json data url: %w", err)
		}
		parsed, err := ParseDataURL(s)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("invalid data url: %s", string(data))
	}
}
