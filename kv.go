package httpbody

// headerKV is a single stored header field. Names are always lowercased
// before they reach this slice.
type headerKV struct {
	name  string
	value string
}

func appendKV(kvs []headerKV, name, value string) []headerKV {
	return append(kvs, headerKV{name: name, value: value})
}

// setKV replaces the value of the first entry with the given name and
// removes the remaining ones, keeping the first entry's position. A new
// entry is appended if the name isn't present yet.
func setKV(kvs []headerKV, name, value string) []headerKV {
	for i := range kvs {
		if kvs[i].name == name {
			kvs[i].value = value
			return delKVFrom(kvs, name, i+1)
		}
	}
	return append(kvs, headerKV{name: name, value: value})
}

func delKV(kvs []headerKV, name string) []headerKV {
	return delKVFrom(kvs, name, 0)
}

// delKVFrom removes every entry with the given name starting at index
// from, preserving the order of the surviving entries.
func delKVFrom(kvs []headerKV, name string, from int) []headerKV {
	j := from
	for i := from; i < len(kvs); i++ {
		if kvs[i].name != name {
			kvs[j] = kvs[i]
			j++
		}
	}
	return kvs[:j]
}

func hasKV(kvs []headerKV, name string) bool {
	for i := range kvs {
		if kvs[i].name == name {
			return true
		}
	}
	return false
}

// peekAllKV returns a fresh slice with every value stored under name, in
// insertion order.
func peekAllKV(kvs []headerKV, name string) []string {
	var values []string
	for i := range kvs {
		if kvs[i].name == name {
			values = append(values, kvs[i].value)
		}
	}
	return values
}

func copyKVs(dst, src []headerKV) []headerKV {
	dst = dst[:0]
	return append(dst, src...)
}

func visitKVs(kvs []headerKV, f func(name, value string)) {
	for i := range kvs {
		f(kvs[i].name, kvs[i].value)
	}
}
