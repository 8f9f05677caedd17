package webhook

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/code-timelock-server/pkg/solana"
	timelock_program "github.com/code-payments/code-timelock-server/pkg/solana/timelock"
)

var (
	ErrInvalidToken = errors.New("invalid invocation token")
)

type AccountClaim struct {
	PublicKey  string `json:"pubkey"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

// Claims is the body of an invocation token. It's a capability for a single
// execution of a queued transaction by a timelock signer.
type Claims struct {
	jwt.RegisteredClaims

	Transaction string         `json:"transaction"`
	Program     string         `json:"program"`
	Accounts    []AccountClaim `json:"accounts"`
	Data        string         `json:"data"`
	Timelock    string         `json:"timelock"`
	Nonce       uint8          `json:"nonce"`
	Signer      string         `json:"signer"`
}

// Request is a verified invocation
type Request struct {
	Id          string
	Transaction string
	Instruction solana.Instruction
	Timelock    ed25519.PublicKey
	Nonce       uint8
	Signer      ed25519.PublicKey
}

// Verify parses and verifies an invocation token signed by issuer. Beyond the
// token signature, the signer must derive from the timelock and nonce, and be
// the only account the instruction marks as a signer.
func Verify(token string, issuer ed25519.PublicKey) (*Request, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(_ *jwt.Token) (interface{}, error) {
			return issuer, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(base58.Encode(issuer)),
	)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, err.Error())
	}

	if claims.ExpiresAt == nil {
		return nil, errors.Wrap(ErrInvalidToken, "token has no expiry")
	}

	return claims.toRequest()
}

func (c *Claims) toRequest() (*Request, error) {
	program, err := decodeKey(c.Program)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, "invalid program")
	}

	timelock, err := decodeKey(c.Timelock)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, "invalid timelock")
	}

	signer, err := decodeKey(c.Signer)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, "invalid signer")
	}

	data, err := base64.StdEncoding.DecodeString(c.Data)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidToken, "invalid data")
	}

	derived, err := timelock_program.GetSignerAddressWithNonce(timelock, c.Nonce)
	if err != nil || !bytes.Equal(derived, signer) {
		return nil, errors.Wrap(ErrInvalidToken, "signer is not derived from timelock")
	}

	accounts := make([]solana.AccountMeta, len(c.Accounts))
	for i, account := range c.Accounts {
		publicKey, err := decodeKey(account.PublicKey)
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidToken, "invalid account at index %d", i)
		}

		if account.IsSigner && !bytes.Equal(publicKey, signer) {
			return nil, errors.Wrapf(ErrInvalidToken, "unprovable signer at index %d", i)
		}

		accounts[i] = solana.AccountMeta{
			PublicKey:  publicKey,
			IsSigner:   account.IsSigner,
			IsWritable: account.IsWritable,
		}
	}

	return &Request{
		Id:          c.ID,
		Transaction: c.Transaction,
		Instruction: solana.NewInstruction(program, data, accounts...),
		Timelock:    timelock,
		Nonce:       c.Nonce,
		Signer:      signer,
	}, nil
}

func decodeKey(value string) (ed25519.PublicKey, error) {
	decoded, err := base58.Decode(value)
	if err != nil {
		return nil, err
	}
	if len(decoded) != ed25519.PublicKeySize {
		return nil, errors.Errorf("invalid key length: %d", len(decoded))
	}
	return decoded, nil
}
