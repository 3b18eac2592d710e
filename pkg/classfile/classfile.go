// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package classfile reads just enough of a compiled class to tell whether it is
// a launchable main class.
package classfile

import (
	"encoding/binary"
	"strings"

	"gitlab.com/tozd/go/errors"
)

const (
	magic = 0xCAFEBABE

	accPublic = 0x0001
	accStatic = 0x0008

	mainName       = "main"
	mainDescriptor = "([Ljava/lang/String;)V"
	annotationsKey = "RuntimeVisibleAnnotations"
)

var ErrInvalidClass = errors.Base("invalid class file")

// Class is the subset of a class file needed for main class discovery.
type Class struct {
	// Name in dotted form.
	Name        string
	HasMain     bool
	Annotations []string
}

// HasAnnotation reports whether the class carries the annotation, given in dotted form.
func (c *Class) HasAnnotation(name string) bool {
	for _, a := range c.Annotations {
		if a == name {
			return true
		}
	}
	return false
}

// 🔬 Parse decodes data as a class file.
func Parse(data []byte) (*Class, error) {
	r := &reader{data: data}

	if r.u4() != magic {
		return nil, errors.Errorf("%w: bad magic", ErrInvalidClass)
	}
	r.skip(4) // minor, major

	utf8 := map[uint16]string{}
	classRefs := map[uint16]uint16{}

	count := r.u2()
	for i := uint16(1); i < count && r.err == nil; i++ {
		tag := r.u1()
		switch tag {
		case 1:
			n := r.u2()
			utf8[i] = string(r.bytes(int(n)))
		case 7:
			classRefs[i] = r.u2()
		case 8, 16, 19, 20:
			r.skip(2)
		case 15:
			r.skip(3)
		case 3, 4, 9, 10, 11, 12, 17, 18:
			r.skip(4)
		case 5, 6:
			r.skip(8)
			i++ // longs and doubles take two slots
		default:
			return nil, errors.Errorf("%w: unknown constant pool tag %d at index %d", ErrInvalidClass, tag, i)
		}
	}

	r.skip(2) // access flags
	this := r.u2()
	r.skip(2) // super
	r.skip(2 * int(r.u2()))

	// fields
	for n := r.u2(); n > 0 && r.err == nil; n-- {
		r.skip(6)
		r.skipAttributes()
	}

	c := &Class{}
	for n := r.u2(); n > 0 && r.err == nil; n-- {
		flags, name, desc := r.u2(), r.u2(), r.u2()
		if flags&(accPublic|accStatic) == accPublic|accStatic && utf8[name] == mainName && utf8[desc] == mainDescriptor {
			c.HasMain = true
		}
		r.skipAttributes()
	}

	for n := r.u2(); n > 0 && r.err == nil; n-- {
		name := r.u2()
		length := r.u4()
		if utf8[name] != annotationsKey {
			r.skip(int(length))
			continue
		}
		for k := r.u2(); k > 0 && r.err == nil; k-- {
			c.Annotations = append(c.Annotations, descriptorToName(utf8[r.u2()]))
			r.skipPairs()
		}
	}

	if r.err != nil {
		return nil, r.err
	}

	nameIdx, ok := classRefs[this]
	if !ok {
		return nil, errors.Errorf("%w: this_class %d is not a class constant", ErrInvalidClass, this)
	}
	c.Name = strings.ReplaceAll(utf8[nameIdx], "/", ".")
	return c, nil
}

// descriptorToName turns Lcom/example/Foo; into com.example.Foo.
func descriptorToName(desc string) string {
	desc = strings.TrimSuffix(strings.TrimPrefix(desc, "L"), ";")
	return strings.ReplaceAll(desc, "/", ".")
}

// reader is a big-endian cursor that remembers the first overrun.
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = errors.Errorf("%w: truncated at offset %d", ErrInvalidClass, r.pos)
		return false
	}
	return true
}

func (r *reader) u1() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *reader) u2() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) u4() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) bytes(n int) []byte {
	if !r.need(n) {
		return nil
	}
	v := r.data[r.pos : r.pos+n]
	r.pos += n
	return v
}

func (r *reader) skip(n int) {
	if r.need(n) {
		r.pos += n
	}
}

func (r *reader) skipAttributes() {
	for n := r.u2(); n > 0 && r.err == nil; n-- {
		r.skip(2)
		r.skip(int(r.u4()))
	}
}

func (r *reader) skipPairs() {
	for n := r.u2(); n > 0 && r.err == nil; n-- {
		r.skip(2)
		r.skipElementValue()
	}
}

func (r *reader) skipElementValue() {
	switch tag := r.u1(); tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's', 'c':
		r.skip(2)
	case 'e':
		r.skip(4)
	case '@':
		r.skip(2)
		r.skipPairs()
	case '[':
		for n := r.u2(); n > 0 && r.err == nil; n-- {
			r.skipElementValue()
		}
	default:
		if r.err == nil {
			r.err = errors.Errorf("%w: unknown element value tag %q", ErrInvalidClass, tag)
		}
	}
}
