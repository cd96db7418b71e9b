package bucket

import (
	"crypto/md5"
	"encoding/binary"

	"docselect/internal/document"
)

// Factory maps document ids to the bucket they are stored in.
type Factory interface {
	BucketID(id document.ID) ID
}

// GlobalIDSize is the length of a global document id in bytes.
const GlobalIDSize = 12

// GlobalID is the 96-bit hashed identity of a document. The first four bytes
// carry the location (user number, group hash or id hash).
type GlobalID [GlobalIDSize]byte

// NewGlobalID computes the global id of a document id.
func NewGlobalID(id document.ID) GlobalID {
	sum := md5.Sum([]byte(id.String()))
	var gid GlobalID
	copy(gid[:], sum[:GlobalIDSize])
	binary.LittleEndian.PutUint32(gid[0:4], Location(id))
	return gid
}

// Location returns the 32-bit location of a document id: the user number for
// n= ids, the group hash for g= ids, and a hash of the full id otherwise.
func Location(id document.ID) uint32 {
	switch {
	case id.HasNumber():
		return uint32(id.Number())
	case id.HasGroup():
		return GroupLocation(id.Group())
	default:
		sum := md5.Sum([]byte(id.String()))
		return binary.LittleEndian.Uint32(sum[0:4])
	}
}

// GroupLocation returns the location of a group name.
func GroupLocation(group string) uint32 {
	sum := md5.Sum([]byte(group))
	return binary.LittleEndian.Uint32(sum[0:4])
}

// DefaultFactory derives bucket ids from global ids, using all 58 location bits:
// the lower 32 bits are the document location and the upper 26 bits come from
// the remaining global id bytes.
type DefaultFactory struct{}

// NewFactory returns the default factory.
func NewFactory() DefaultFactory {
	return DefaultFactory{}
}

// BucketID implements Factory.
func (DefaultFactory) BucketID(id document.ID) ID {
	gid := NewGlobalID(id)
	loc := uint64(binary.LittleEndian.Uint32(gid[0:4]))
	hi := uint64(binary.LittleEndian.Uint32(gid[8:12]))
	return New(MaxUsedBits, loc|hi<<32)
}
