package object

// Dict is an ordered dictionary: Name -> Object. Order is insertion
// order, and serialization writes keys in that order.
type Dict struct {
	keys []Name
	vals map[Name]Object
}

func (Dict) isObject() {}

func NewDict() Dict {
	return Dict{vals: make(map[Name]Object)}
}

// Get returns the value for name and whether it was present.
func (d Dict) Get(name Name) (Object, bool) {
	v, ok := d.vals[name]
	return v, ok
}

// Set inserts or overwrites name. A fresh key is appended to the end
// of the key order; an existing key keeps its position. Use SetReAdded
// to move a key to the end instead.
func (d *Dict) Set(name Name, v Object) {
	if d.vals == nil {
		d.vals = make(map[Name]Object)
	}
	if _, ok := d.vals[name]; !ok {
		d.keys = append(d.keys, name)
	}
	d.vals[name] = v
}

// SetReAdded removes name (if present) and re-appends it, moving it to
// the end of the serialization order.
func (d *Dict) SetReAdded(name Name, v Object) {
	d.Delete(name)
	d.Set(name, v)
}

func (d *Dict) Delete(name Name) {
	if _, ok := d.vals[name]; !ok {
		return
	}
	delete(d.vals, name)
	for i, k := range d.keys {
		if k == name {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the dictionary's keys in their current order. Callers
// must not mutate the returned slice.
func (d Dict) Keys() []Name {
	return d.keys
}

func (d Dict) Len() int {
	return len(d.keys)
}

// Clone makes a shallow copy: a new key/value structure, but the same
// Object values (deep-copying is Doc.Get's job, not Dict's).
func (d Dict) Clone() Dict {
	out := Dict{
		keys: append([]Name(nil), d.keys...),
		vals: make(map[Name]Object, len(d.vals)),
	}
	for k, v := range d.vals {
		out.vals[k] = v
	}
	return out
}

// GetName/GetInt/GetArray/GetDict/GetRef are narrow accessors used
// throughout pdfdoc for reading well-known entries; they return the
// zero value and false on a type mismatch rather than panicking, since
// dictionaries from untrusted input are never assumed well-formed.

func (d Dict) GetName(name Name) (Name, bool) {
	v, ok := d.Get(name)
	if !ok {
		return "", false
	}
	n, ok := v.(Name)
	return n, ok
}

func (d Dict) GetInt(name Name) (int64, bool) {
	v, ok := d.Get(name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case Int:
		return int64(n), true
	case Real:
		return int64(n), true
	default:
		return 0, false
	}
}

func (d Dict) GetArray(name Name) (Array, bool) {
	v, ok := d.Get(name)
	if !ok {
		return nil, false
	}
	a, ok := v.(Array)
	return a, ok
}

func (d Dict) GetDict(name Name) (Dict, bool) {
	v, ok := d.Get(name)
	if !ok {
		return Dict{}, false
	}
	sub, ok := v.(Dict)
	return sub, ok
}

func (d Dict) GetRef(name Name) (Ref, bool) {
	v, ok := d.Get(name)
	if !ok {
		return Ref{}, false
	}
	r, ok := v.(Ref)
	return r, ok
}
