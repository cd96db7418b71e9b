package selection

import (
	"math"
	"strings"
)

// callFunction applies a built-in function to an evaluated receiver.
// Receivers of the wrong type yield an invalid value.
func callFunction(name string, v Value) Value {
	switch name {
	case "hash":
		switch v.Kind {
		case ValInt, ValFloat, ValString:
			return IntValue(int64(int32(Hash([]byte(v.String())))))
		}
	case "abs":
		switch v.Kind {
		case ValInt:
			if v.Int < 0 {
				return IntValue(-v.Int)
			}
			return v
		case ValFloat:
			return FloatValue(math.Abs(v.Float))
		}
	case "lowercase":
		if v.Kind == ValString {
			return StringValue(strings.ToLower(v.Str))
		}
	}
	return InvalidValue()
}

// Hash is Bob Jenkins' lookup2 hash with a zero seed. The selection hash()
// function returns it as a signed 32-bit number.
func Hash(k []byte) uint32 {
	a, b := uint32(0x9e3779b9), uint32(0x9e3779b9)
	c := uint32(0)
	length := uint32(len(k))

	for len(k) >= 12 {
		a += le32(k[0:4])
		b += le32(k[4:8])
		c += le32(k[8:12])
		a, b, c = mix(a, b, c)
		k = k[12:]
	}

	c += length
	// The low byte of c is reserved for the length.
	switch len(k) {
	case 11:
		c += uint32(k[10]) << 24
		fallthrough
	case 10:
		c += uint32(k[9]) << 16
		fallthrough
	case 9:
		c += uint32(k[8]) << 8
		fallthrough
	case 8:
		b += uint32(k[7]) << 24
		fallthrough
	case 7:
		b += uint32(k[6]) << 16
		fallthrough
	case 6:
		b += uint32(k[5]) << 8
		fallthrough
	case 5:
		b += uint32(k[4])
		fallthrough
	case 4:
		a += uint32(k[3]) << 24
		fallthrough
	case 3:
		a += uint32(k[2]) << 16
		fallthrough
	case 2:
		a += uint32(k[1]) << 8
		fallthrough
	case 1:
		a += uint32(k[0])
	}
	_, _, c = mix(a, b, c)
	return c
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func mix(a, b, c uint32) (uint32, uint32, uint32) {
	a -= b
	a -= c
	a ^= c >> 13
	b -= c
	b -= a
	b ^= a << 8
	c -= a
	c -= b
	c ^= b >> 13
	a -= b
	a -= c
	a ^= c >> 12
	b -= c
	b -= a
	b ^= a << 16
	c -= a
	c -= b
	c ^= b >> 5
	a -= b
	a -= c
	a ^= c >> 3
	b -= c
	b -= a
	b ^= a << 10
	c -= a
	c -= b
	c ^= b >> 15
	return a, b, c
}
