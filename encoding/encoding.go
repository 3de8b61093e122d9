// Package encoding converts byte payloads to and from the text-safe alphabets
// that travel inside wallet envelopes. Every encoded value is paired with an
// encoding tag so both sides agree on the format.
package encoding

import (
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/mark3labs/walletbridge-go"
)

// Encode writes data in the alphabet named by enc.
//
// Returns an error if enc is not a supported tag.
func Encode(data []byte, enc walletbridge.Encoding) (string, error) {
	switch enc {
	case walletbridge.EncodingBase64:
		return base64.StdEncoding.EncodeToString(data), nil
	case walletbridge.EncodingBase58:
		return base58.Encode(data), nil
	default:
		return "", fmt.Errorf("encoding: unsupported tag %q", enc)
	}
}

// Decode reads s written in the alphabet named by enc.
//
// Returns an error if enc is not a supported tag or s is not valid in it.
func Decode(s string, enc walletbridge.Encoding) ([]byte, error) {
	switch enc {
	case walletbridge.EncodingBase64:
		data, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64: %w", err)
		}
		return data, nil
	case walletbridge.EncodingBase58:
		if s == "" {
			return []byte{}, nil
		}
		data, err := base58.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base58: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("encoding: unsupported tag %q", enc)
	}
}
