package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

const (
	refSender    = "sender"
	refChainID   = "chain_id"
	refCodes     = "codes."
	refContracts = "contracts."
	refValues    = "values."
)

var placeholder = regexp.MustCompile(`\$\{([^}]*)\}`)

// Scope holds the values placeholders resolve against.
type Scope struct {
	Sender    string
	ChainID   string
	Codes     map[string]uint64
	Contracts map[string]string
	Values    map[string]string
}

// lookup returns the value for ref and whether it is a code ID.
func (s Scope) lookup(ref string) (string, bool, error) {
	switch {
	case ref == refSender && s.Sender != "":
		return s.Sender, false, nil
	case ref == refChainID && s.ChainID != "":
		return s.ChainID, false, nil
	case strings.HasPrefix(ref, refCodes):
		if id, ok := s.Codes[strings.TrimPrefix(ref, refCodes)]; ok {
			return strconv.FormatUint(id, 10), true, nil
		}
	case strings.HasPrefix(ref, refContracts):
		if addr, ok := s.Contracts[strings.TrimPrefix(ref, refContracts)]; ok {
			return addr, false, nil
		}
	case strings.HasPrefix(ref, refValues):
		if v, ok := s.Values[strings.TrimPrefix(ref, refValues)]; ok {
			return v, false, nil
		}
	}
	return "", false, fmt.Errorf("%w: ${%s}", ErrUnresolvedReference, ref)
}

// ResolveString substitutes every placeholder in s.
func ResolveString(s string, scope Scope) (string, error) {
	var firstErr error
	out := placeholder.ReplaceAllStringFunc(s, func(m string) string {
		v, _, err := scope.lookup(m[2 : len(m)-1])
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return m
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// Resolve substitutes placeholders in the string values of a JSON object.
// A string that is exactly one ${codes.x} placeholder becomes a JSON number.
// Numbers pass through unchanged.
func Resolve(msg []byte, scope Scope) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON object", ErrInvalidMessage)
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, ErrInvalidMessage
	}

	resolved, err := resolveValue(doc, scope)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resolved)
}

func resolveValue(v any, scope Scope) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			r, err := resolveValue(child, scope)
			if err != nil {
				return nil, err
			}
			t[k] = r
		}
		return t, nil
	case []any:
		for i, child := range t {
			r, err := resolveValue(child, scope)
			if err != nil {
				return nil, err
			}
			t[i] = r
		}
		return t, nil
	case string:
		if loc := placeholder.FindStringSubmatchIndex(t); loc != nil && loc[0] == 0 && loc[1] == len(t) {
			val, isCode, err := scope.lookup(t[loc[2]:loc[3]])
			if err != nil {
				return nil, err
			}
			if isCode {
				return json.Number(val), nil
			}
			return val, nil
		}
		return ResolveString(t, scope)
	default:
		return v, nil
	}
}

// References lists the placeholder names in s, in order of appearance.
func References(s string) []string {
	matches := placeholder.FindAllStringSubmatch(s, -1)
	refs := make([]string, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, m[1])
	}
	return refs
}
