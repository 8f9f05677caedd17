package timelock

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/mr-tron/base58"
)

const (
	vecLengthSize = 4

	transactionAccountMetaSize = (32 + // pubkey
		1 + // is_signer
		1) // is_writable
)

func putDiscriminator(dst []byte, src []byte, offset *int) {
	copy(dst[*offset:], src)
	*offset += 8
}
func getDiscriminator(src []byte, dst *[]byte, offset *int) {
	*dst = make([]byte, 8)
	copy(*dst, src[*offset:])
	*offset += 8
}

func putKey(dst []byte, src []byte, offset *int) {
	copy(dst[*offset:], src)
	*offset += ed25519.PublicKeySize
}
func getKey(src []byte, dst *ed25519.PublicKey, offset *int) {
	*dst = make([]byte, ed25519.PublicKeySize)
	copy(*dst, src[*offset:])
	*offset += ed25519.PublicKeySize
}

func putBool(dst []byte, v bool, offset *int) {
	if v {
		dst[*offset] = 1
	} else {
		dst[*offset] = 0
	}
	*offset += 1
}
func getBool(src []byte, dst *bool, offset *int) {
	*dst = src[*offset] == 1
	*offset += 1
}

func putUint8(dst []byte, v uint8, offset *int) {
	dst[*offset] = v
	*offset += 1
}
func getUint8(src []byte, dst *uint8, offset *int) {
	*dst = src[*offset]
	*offset += 1
}

func putUint32(dst []byte, v uint32, offset *int) {
	binary.LittleEndian.PutUint32(dst[*offset:], v)
	*offset += 4
}
func getUint32(src []byte, dst *uint32, offset *int) {
	*dst = binary.LittleEndian.Uint32(src[*offset:])
	*offset += 4
}

func putInt64(dst []byte, v int64, offset *int) {
	binary.LittleEndian.PutUint64(dst[*offset:], uint64(v))
	*offset += 8
}
func getInt64(src []byte, dst *int64, offset *int) {
	*dst = int64(binary.LittleEndian.Uint64(src[*offset:]))
	*offset += 8
}

func putBytes(dst []byte, v []byte, offset *int) {
	putUint32(dst, uint32(len(v)), offset)
	copy(dst[*offset:], v)
	*offset += len(v)
}

// getBytes reads a length prefixed byte vector, returning false when the
// declared length runs past the end of src.
func getBytes(src []byte, dst *[]byte, offset *int) bool {
	if len(src) < *offset+vecLengthSize {
		return false
	}

	var length uint32
	getUint32(src, &length, offset)

	if uint64(len(src)) < uint64(*offset)+uint64(length) {
		return false
	}

	*dst = make([]byte, length)
	copy(*dst, src[*offset:])
	*offset += int(length)
	return true
}

func putTransactionAccountMetas(dst []byte, v []TransactionAccountMeta, offset *int) {
	putUint32(dst, uint32(len(v)), offset)
	for _, account := range v {
		putKey(dst, account.PublicKey, offset)
		putBool(dst, account.IsSigner, offset)
		putBool(dst, account.IsWritable, offset)
	}
}
func getTransactionAccountMetas(src []byte, dst *[]TransactionAccountMeta, offset *int) bool {
	if len(src) < *offset+vecLengthSize {
		return false
	}

	var length uint32
	getUint32(src, &length, offset)

	if uint64(len(src)) < uint64(*offset)+uint64(length)*transactionAccountMetaSize {
		return false
	}

	*dst = make([]TransactionAccountMeta, length)
	for i := 0; i < int(length); i++ {
		getKey(src, &(*dst)[i].PublicKey, offset)
		getBool(src, &(*dst)[i].IsSigner, offset)
		getBool(src, &(*dst)[i].IsWritable, offset)
	}
	return true
}

func transactionAccountMetasSize(v []TransactionAccountMeta) int {
	return vecLengthSize + len(v)*transactionAccountMetaSize
}

func mustBase58Decode(value string) []byte {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}
