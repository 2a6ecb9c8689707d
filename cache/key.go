package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// maxParamsLength is the longest params segment kept verbatim; longer
// segments are replaced by an xxhash fingerprint.
const maxParamsLength = 160

// Key addresses one cached query result: a resource name plus an ordered
// list of filter/pagination parameters.
type Key struct {
	Resource string
	Params   []any
}

// NewKey builds a Key.
func NewKey(resource string, params ...any) Key {
	return Key{Resource: resource, Params: params}
}

// String returns the canonical storage form of the key.
func (k Key) String() string {
	return defaultSerializer.SerializeKey(k.Resource, k.Params...)
}

// Equal reports whether both keys have the same resource and the same
// parameter sequence.
func (k Key) Equal(other Key) bool {
	if k.Resource != other.Resource || len(k.Params) != len(other.Params) {
		return false
	}
	for i := range k.Params {
		if !reflect.DeepEqual(k.Params[i], other.Params[i]) {
			return false
		}
	}
	return true
}

// Matcher selects keys, typically for invalidation.
type Matcher func(Key) bool

// ByResource matches keys whose resource is one of names.
func ByResource(names ...string) Matcher {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return func(k Key) bool {
		_, ok := set[k.Resource]
		return ok
	}
}

// KeySerializer builds a storage key from a resource name and params.
// It is responsible for producing stable keys across calls.
type KeySerializer interface {
	SerializeKey(resource string, params ...any) string
}

var defaultSerializer = NewDefaultKeySerializer()

// defaultKeySerializer implements KeySerializer using reflection-based
// serialization. Strings that could be mistaken for another kind of value
// are quoted so distinct parameter lists never share a storage key.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

// SerializeKey joins resource and serialized params with KeySeparator.
// The resource always stays verbatim as the first segment.
func (s *defaultKeySerializer) SerializeKey(resource string, params ...any) string {
	if len(params) == 0 {
		return resource
	}

	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = s.serializeValue(p)
	}

	joined := strings.Join(parts, KeySeparator)
	if len(joined) > maxParamsLength {
		joined = fmt.Sprintf("#%016x", xxhash.Sum64String(joined))
	}

	return resource + KeySeparator + joined
}

var (
	intType  = reflect.TypeOf(0)
	boolType = reflect.TypeOf(false)
)

// serializeValue handles individual param serialization based on type.
// Numbers other than int carry their type name so 1, 1.0 and int64(1) get
// distinct keys. Strings that could be read as one of those are quoted.
func (s *defaultKeySerializer) serializeValue(v any) string {
	if v == nil {
		return "nil"
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	switch rt.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return "nil"
		}
		return s.serializeValue(rv.Elem().Interface())
	case reflect.String:
		return quoteIfAmbiguous(rv.String())
	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		return s.serializeList("slice", rv)
	case reflect.Array:
		return s.serializeList("array", rv)
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return s.serializeMap(rv)
	case reflect.Struct:
		return s.serializeStruct(rv, rt)
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		if rt == intType || rt == boolType {
			return fmt.Sprintf("%v", v)
		}
		return fmt.Sprintf("%s:%v", rt, v)
	}

	return s.jsonFallback(v)
}

func (s *defaultKeySerializer) serializeList(kind string, rv reflect.Value) string {
	length := rv.Len()
	parts := make([]string, length)
	for i := 0; i < length; i++ {
		parts[i] = s.serializeValue(rv.Index(i).Interface())
	}
	return fmt.Sprintf("%s[%d]:{%s}", kind, length, strings.Join(parts, ","))
}

// serializeMap sorts pairs by serialized key for determinism.
func (s *defaultKeySerializer) serializeMap(rv reflect.Value) string {
	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, s.serializeValue(iter.Key().Interface())+"="+s.serializeValue(iter.Value().Interface()))
	}
	sort.Strings(pairs)
	return fmt.Sprintf("map[%d]:{%s}", len(pairs), strings.Join(pairs, ","))
}

func (s *defaultKeySerializer) serializeStruct(rv reflect.Value, rt reflect.Type) string {
	parts := make([]string, 0, rv.NumField())
	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		parts = append(parts, field.Name+":"+s.serializeValue(rv.Field(i).Interface()))
	}
	return fmt.Sprintf("struct:{%s}", strings.Join(parts, ","))
}

func (s *defaultKeySerializer) jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("fallback:%T", v)
	}
	return "json:" + string(data)
}

func quoteIfAmbiguous(v string) string {
	if v == "" || v == "nil" || strings.ContainsAny(v, "\":{},=") {
		return strconv.Quote(v)
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return strconv.Quote(v)
	}
	if _, err := strconv.ParseBool(v); err == nil {
		return strconv.Quote(v)
	}
	return v
}
