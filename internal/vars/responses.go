package vars

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
)

// Responses stores decoded JSON bodies of earlier requests of one document
// and resolves #{rN.path} tokens against them.
type Responses struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewResponses returns an empty store.
func NewResponses() *Responses {
	return &Responses{data: map[string]any{}}
}

// Key returns the store key of request index.
func Key(index int) string {
	return "r" + strconv.Itoa(index)
}

// Set stores the decoded body of request index.
func (s *Responses) Set(index int, content any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[Key(index)] = content
}

// Get returns the decoded body of request index.
func (s *Responses) Get(index int) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[Key(index)]
	return v, ok
}

// Lookup walks a dot separated path such as r0.data.id.
func (s *Responses) Lookup(path string) (any, bool) {
	segments := strings.Split(path, ".")
	s.mu.RLock()
	cur, ok := s.data[segments[0]]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	for _, seg := range segments[1:] {
		obj, isObj := cur.(map[string]any)
		if !isObj {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Expand replaces #{...} tokens; unresolvable tokens are left unchanged.
func (s *Responses) Expand(in string) string {
	if s == nil || !strings.Contains(in, "#{") {
		return in
	}
	return ResponsePattern.ReplaceAllStringFunc(in, func(match string) string {
		v, ok := s.Lookup(strings.TrimSpace(match[2 : len(match)-1]))
		if !ok {
			return match
		}
		return render(v)
	})
}

func render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
