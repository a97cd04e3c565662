package utils

import (
	"unsafe"
)

func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}

	return v
}

// ToBytes returns a copy of the in-memory representation of v. Only use it
// with fixed-size types that contain no pointers.
func ToBytes[T any](v T) []byte {
	size := unsafe.Sizeof(v)
	res := make([]byte, size)
	copy(res, unsafe.Slice((*byte)(unsafe.Pointer(&v)), size))
	return res
}

// FromBytes is the inverse of ToBytes. data must be at least
// unsafe.Sizeof(T) bytes long.
func FromBytes[T any](data []byte) T {
	var res T
	size := unsafe.Sizeof(res)
	if uintptr(len(data)) < size {
		panic("FromBytes: not enough data")
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(&res)), size), data)
	return res
}

// NextPowerOfTwo rounds v up to a power of two. Zero stays zero.
func NextPowerOfTwo(v uint64) uint64 {
	if v == 0 {
		return 0
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	return v + 1
}

func IsPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}
