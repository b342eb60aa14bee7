package types

import (
	"encoding/json"

	"github.com/juju/errors"
	"github.com/spf13/cast"
)

type Data map[string]any

func (d *Data) Get(key string) (any, bool) {
	v, exists := (*d)[key]
	return v, exists
}

func (d *Data) GetString(key string) (string, bool) {
	v, exists := d.Get(key)
	return cast.ToString(v), exists
}

func (d *Data) GetInt(key string) (int, bool) {
	v, exists := d.Get(key)
	return cast.ToInt(v), exists
}

func (d *Data) GetInt64(key string) (int64, bool) {
	v, exists := d.Get(key)
	return cast.ToInt64(v), exists
}

func (d *Data) GetBool(key string) (bool, bool) {
	v, exists := d.Get(key)
	return cast.ToBool(v), exists
}

func (d *Data) GetFloat64(key string) (float64, bool) {
	v, exists := d.Get(key)
	return cast.ToFloat64(v), exists
}

/**
 * GetData returns a nested mapping, which is how namespace socket
 * values are stored. A plain value under the key comes back as false.
 */
func (d *Data) GetData(key string) (Data, bool) {
	v, exists := d.Get(key)
	if !exists {
		return nil, false
	}
	switch m := v.(type) {
	case Data:
		return m, true
	case map[string]any:
		return Data(m), true
	}
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return nil, false
	}
	return Data(m), true
}

func (d *Data) GetStruct(key string, s any) error {
	v, exists := d.Get(key)
	if !exists {
		return errors.NotFound
	}
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, errors.New("marshal failed"))
	}
	return json.Unmarshal(b, s)
}

func (d *Data) Set(key string, value any) {
	if *d == nil {
		*d = Data{}
	}
	(*d)[key] = value
}

// Clone deep-copies through a JSON round trip so a fan-out never shares
// mutable maps or slices with the source. Unmarshalable values fall
// back to a shallow copy.
func (d Data) Clone() Data {
	if d == nil {
		return nil
	}
	b, err := json.Marshal(d)
	if err == nil {
		c := Data{}
		if json.Unmarshal(b, &c) == nil {
			return c
		}
	}
	c := make(Data, len(d))
	for k, v := range d {
		c[k] = v
	}
	return c
}

func (d *Data) Merge(other Data) {
	for k, v := range other {
		d.Set(k, v)
	}
}
