package requests

import (
	"net/url"
	"sort"
	"strings"
)

// Params is an insertion-ordered set of query parameters. A key may carry a
// single value or a list of values; list values repeat the key when encoded.
type Params struct {
	keys   []string
	values map[string][]string
}

// NewParams returns an empty Params.
func NewParams() *Params {
	return &Params{values: make(map[string][]string)}
}

// ParamsFromValues builds Params from url.Values. Keys are added in sorted
// order since url.Values has no ordering of its own.
func ParamsFromValues(v url.Values) *Params {
	p := NewParams()
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p.Set(k, v[k]...)
	}
	return p
}

// Set replaces the values of key, keeping its original position if present.
func (p *Params) Set(key string, values ...string) *Params {
	p.init()
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = append([]string(nil), values...)
	return p
}

// Add appends a value to key.
func (p *Params) Add(key, value string) *Params {
	p.init()
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = append(p.values[key], value)
	return p
}

// Del removes key.
func (p *Params) Del(key string) {
	if p == nil || p.values == nil {
		return
	}
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Get returns the first value of key, or "".
func (p *Params) Get(key string) string {
	vs := p.Values(key)
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// Values returns all values of key.
func (p *Params) Values(key string) []string {
	if p == nil || p.values == nil {
		return nil
	}
	return p.values[key]
}

// Keys returns the keys in insertion order.
func (p *Params) Keys() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.keys...)
}

// Len returns the number of keys.
func (p *Params) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Clone returns a deep copy.
func (p *Params) Clone() *Params {
	c := NewParams()
	if p == nil {
		return c
	}
	for _, k := range p.keys {
		c.Set(k, p.values[k]...)
	}
	return c
}

func (p *Params) init() {
	if p.values == nil {
		p.values = make(map[string][]string)
	}
}

// EncodeQuery renders params as a query string. Pairs appear in key insertion
// order and list values keep their order. Keys and values are both escaped. The result is prefixed with "?"
// only when at least one pair exists.
func EncodeQuery(p *Params) string {
	if p.Len() == 0 {
		return ""
	}

	pairs := make([]string, 0, len(p.keys))
	for _, k := range p.keys {
		for _, v := range p.values[k] {
			pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(v))
		}
	}

	if len(pairs) == 0 {
		return ""
	}
	return "?" + strings.Join(pairs, "&")
}
