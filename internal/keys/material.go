package keys

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Pair is one KID:KEY decryption credential.
type Pair struct {
	KID string
	Key string
}

func (p Pair) String() string {
	return p.KID + ":" + p.Key
}

// Material is the normalized key material for one manifest.
type Material []Pair

// Args renders the material as mp4decrypt arguments ("--key", "kid:key", ...).
func (m Material) Args() []string {
	args := make([]string, 0, len(m)*2)
	for _, pair := range m {
		args = append(args, "--key", pair.String())
	}
	return args
}

// String renders the material the way it is passed on an mp4decrypt command line.
func (m Material) String() string {
	return strings.Join(m.Args(), " ")
}

// ParseMaterial accepts the textual key forms providers return: a bare
// "kid:key", several of them separated by whitespace or commas, or a
// pre-rendered "--key kid:key --key kid:key" string.
func ParseMaterial(raw string) (Material, error) {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == ','
	})
	var out Material
	for _, field := range fields {
		if field == "--key" {
			continue
		}
		pair, err := parsePair(field)
		if err != nil {
			return nil, err
		}
		out = append(out, pair)
	}
	if len(out) == 0 {
		return nil, errors.New("key material is empty")
	}
	return out, nil
}

func parsePair(value string) (Pair, error) {
	kid, key, ok := strings.Cut(strings.TrimSpace(value), ":")
	kid, key = strings.TrimSpace(kid), strings.TrimSpace(key)
	if !ok || kid == "" || key == "" {
		return Pair{}, fmt.Errorf("invalid key pair %q: want kid:key", value)
	}
	return Pair{KID: kid, Key: key}, nil
}

// UnmarshalJSON accepts a string, an array of "kid:key" strings, or an array of
// {"kid": "...", "key": "..."} objects.
func (m *Material) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*m = nil
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			*m = nil
			return nil
		}
		parsed, err := ParseMaterial(text)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("key material: unsupported JSON shape")
	}
	var out Material
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			parsed, err := ParseMaterial(s)
			if err != nil {
				return err
			}
			out = append(out, parsed...)
			continue
		}
		var obj struct {
			KID string `json:"kid"`
			Key string `json:"key"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return fmt.Errorf("key material: unsupported entry %s", string(item))
		}
		pair, err := parsePair(obj.KID + ":" + obj.Key)
		if err != nil {
			return err
		}
		out = append(out, pair)
	}
	*m = out
	return nil
}
