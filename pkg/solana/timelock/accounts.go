package timelock

import (
	"bytes"
	"crypto/ed25519"
	"strconv"
	"time"

	"github.com/mr-tron/base58/base58"
)

const TimelockAccountSize = (8 + // discriminator
	8 + // delay
	1 + // nonce
	1) // bump

// Space allocated on chain for a queued transaction
const TransactionAccountAllocatedSize = 1000

var (
	timelockAccountDiscriminator    = []byte{189, 33, 78, 75, 205, 31, 4, 177}
	transactionAccountDiscriminator = []byte{11, 24, 174, 129, 203, 117, 242, 23}
)

type TimelockAccount struct {
	Delay int64 // seconds
	Nonce uint8
	Bump  uint8
}

func (obj *TimelockAccount) Clone() *TimelockAccount {
	return &TimelockAccount{
		Delay: obj.Delay,
		Nonce: obj.Nonce,
		Bump:  obj.Bump,
	}
}

func (obj *TimelockAccount) ToString() string {
	return "TimelockAccount{" +
		"delay='" + strconv.FormatInt(obj.Delay, 10) + "'" +
		", nonce='" + strconv.Itoa(int(obj.Nonce)) + "'" +
		"}"
}

func (obj *TimelockAccount) Marshal() []byte {
	data := make([]byte, TimelockAccountSize)

	var offset int

	putDiscriminator(data, timelockAccountDiscriminator, &offset)
	putInt64(data, obj.Delay, &offset)
	putUint8(data, obj.Nonce, &offset)
	putUint8(data, obj.Bump, &offset)

	return data
}

// Unmarshal accepts trailing bytes, since accounts are allocated with more
// space than the serialized state needs.
func (obj *TimelockAccount) Unmarshal(data []byte) error {
	if len(data) < TimelockAccountSize {
		return ErrInvalidAccountData
	}

	var offset int
	var discriminator []byte

	getDiscriminator(data, &discriminator, &offset)
	if !bytes.Equal(discriminator, timelockAccountDiscriminator) {
		return ErrInvalidAccountData
	}

	getInt64(data, &obj.Delay, &offset)
	getUint8(data, &obj.Nonce, &offset)
	getUint8(data, &obj.Bump, &offset)

	return nil
}

type TransactionAccount struct {
	ProgramId    ed25519.PublicKey
	Accounts     []TransactionAccountMeta
	Data         []byte
	ExecutableAt int64 // unix seconds
	DidExecute   bool
}

func (obj *TransactionAccount) Clone() *TransactionAccount {
	accounts := make([]TransactionAccountMeta, len(obj.Accounts))
	for i, account := range obj.Accounts {
		accounts[i] = TransactionAccountMeta{
			PublicKey:  append(ed25519.PublicKey{}, account.PublicKey...),
			IsSigner:   account.IsSigner,
			IsWritable: account.IsWritable,
		}
	}

	return &TransactionAccount{
		ProgramId:    append(ed25519.PublicKey{}, obj.ProgramId...),
		Accounts:     accounts,
		Data:         append([]byte{}, obj.Data...),
		ExecutableAt: obj.ExecutableAt,
		DidExecute:   obj.DidExecute,
	}
}

func (obj *TransactionAccount) ToString() string {
	var programId string
	if obj.ProgramId != nil {
		programId = base58.Encode(obj.ProgramId)
	}

	return "TransactionAccount{" +
		"program_id='" + programId + "'" +
		", accounts='" + strconv.Itoa(len(obj.Accounts)) + "'" +
		", data_len='" + strconv.Itoa(len(obj.Data)) + "'" +
		", executable_at='" + time.Unix(obj.ExecutableAt, 0).UTC().String() + "'" +
		", did_execute='" + strconv.FormatBool(obj.DidExecute) + "'" +
		"}"
}

func (obj *TransactionAccount) Size() int {
	return 8 + // discriminator
		32 + // program_id
		transactionAccountMetasSize(obj.Accounts) + // accounts
		vecLengthSize + len(obj.Data) + // data
		8 + // executable_at
		1 // did_execute
}

func (obj *TransactionAccount) Marshal() []byte {
	data := make([]byte, obj.Size())

	var offset int

	putDiscriminator(data, transactionAccountDiscriminator, &offset)
	putKey(data, obj.ProgramId, &offset)
	putTransactionAccountMetas(data, obj.Accounts, &offset)
	putBytes(data, obj.Data, &offset)
	putInt64(data, obj.ExecutableAt, &offset)
	putBool(data, obj.DidExecute, &offset)

	return data
}

func (obj *TransactionAccount) Unmarshal(data []byte) error {
	if len(data) < 8+32 {
		return ErrInvalidAccountData
	}

	var offset int
	var discriminator []byte

	getDiscriminator(data, &discriminator, &offset)
	if !bytes.Equal(discriminator, transactionAccountDiscriminator) {
		return ErrInvalidAccountData
	}

	getKey(data, &obj.ProgramId, &offset)

	if !getTransactionAccountMetas(data, &obj.Accounts, &offset) {
		return ErrInvalidAccountData
	}

	if !getBytes(data, &obj.Data, &offset) {
		return ErrInvalidAccountData
	}

	if len(data) < offset+8+1 {
		return ErrInvalidAccountData
	}

	getInt64(data, &obj.ExecutableAt, &offset)
	getBool(data, &obj.DidExecute, &offset)

	return nil
}

// MarshalTransactionAccountMetas encodes an account list using the on-chain
// vector layout
func MarshalTransactionAccountMetas(accounts []TransactionAccountMeta) []byte {
	data := make([]byte, transactionAccountMetasSize(accounts))

	var offset int
	putTransactionAccountMetas(data, accounts, &offset)

	return data
}

// UnmarshalTransactionAccountMetas decodes an account list encoded with
// MarshalTransactionAccountMetas
func UnmarshalTransactionAccountMetas(data []byte) ([]TransactionAccountMeta, error) {
	var offset int
	var accounts []TransactionAccountMeta

	if !getTransactionAccountMetas(data, &accounts, &offset) || offset != len(data) {
		return nil, ErrInvalidAccountData
	}

	return accounts, nil
}
