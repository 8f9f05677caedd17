package webhook

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-timelock-server/pkg/code/timelock"
	"github.com/code-payments/code-timelock-server/pkg/metrics"
	"github.com/code-payments/code-timelock-server/pkg/netutil"
	"github.com/code-payments/code-timelock-server/pkg/solana"
)

const (
	metricsStructName = "invoke.webhook.invoker"

	contentTypeHeaderName  = "Content-Type"
	contentTypeHeaderValue = "application/jwt"
)

var (
	ErrNoEndpoint = errors.New("no endpoint configured for program")
)

// Invoker is a timelock.Invoker that delivers instructions to off-chain
// program endpoints. Each invocation is an HTTP POST whose body is a JWT signed
// by the invoker's key, which receivers check with Verify.
type Invoker struct {
	log    *logrus.Entry
	conf   *conf
	signer ed25519.PrivateKey
	client *http.Client

	endpoints map[string]string
}

// New returns a new webhook Invoker. Endpoints are keyed by base58 program ID.
func New(signer ed25519.PrivateKey, endpoints map[string]string, configProvider ConfigProvider) (*Invoker, error) {
	conf := configProvider()

	if len(signer) != ed25519.PrivateKeySize {
		return nil, errors.New("invalid signer")
	}

	requireSecure := conf.requireSecureEndpoints.Get(context.Background())

	copied := make(map[string]string)
	for program, endpoint := range endpoints {
		if _, err := decodeKey(program); err != nil {
			return nil, errors.Wrapf(err, "invalid program %s", program)
		}

		if err := netutil.ValidateHttpUrl(endpoint, requireSecure); err != nil {
			return nil, errors.Wrapf(err, "invalid endpoint for program %s", program)
		}

		copied[program] = endpoint
	}

	return &Invoker{
		log:       logrus.StandardLogger().WithField("type", "invoke/webhook/invoker"),
		conf:      conf,
		signer:    signer,
		client:    http.DefaultClient,
		endpoints: copied,
	}, nil
}

// Issuer is the public key receivers verify tokens against
func (i *Invoker) Issuer() ed25519.PublicKey {
	return i.signer.Public().(ed25519.PublicKey)
}

// Invoke implements timelock.Invoker.Invoke
func (i *Invoker) Invoke(ctx context.Context, invocation *timelock.Invocation) error {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "Invoke")
	defer tracer.End()

	program := base58.Encode(invocation.Instruction.Program)

	log := i.log.WithFields(logrus.Fields{
		"method":      "Invoke",
		"program":     program,
		"transaction": invocation.Transaction,
	})

	err := func() error {
		if !invocation.Signer.VerifyInstruction(invocation.Instruction) {
			return solana.NewInstructionError(0, solana.InstructionErrorMissingRequiredSignature)
		}

		endpoint, ok := i.endpoints[program]
		if !ok {
			endpoint = i.conf.defaultEndpoint.Get(ctx)
		}
		if len(endpoint) == 0 {
			return ErrNoEndpoint
		}

		log = log.WithField("endpoint", endpoint)

		claims, err := i.newClaims(ctx, invocation)
		if err != nil {
			return err
		}

		token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
		requestBody, err := token.SignedString(i.signer)
		if err != nil {
			return errors.Wrap(err, "error signing jwt")
		}

		req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(requestBody))
		if err != nil {
			return errors.Wrap(err, "error creating http request")
		}
		req.Header.Set(contentTypeHeaderName, contentTypeHeaderValue)

		requestCtx, cancel := context.WithTimeout(ctx, i.conf.requestTimeout.Get(ctx))
		defer cancel()
		req = req.WithContext(requestCtx)

		resp, err := i.client.Do(req)
		if err != nil {
			return errors.Wrap(err, "error executing http post request")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("%d status code returned", resp.StatusCode)
		}
		return nil
	}()

	if err != nil {
		log.WithError(err).Info("webhook invocation failed")
	}

	tracer.OnError(err)
	return err
}

func (i *Invoker) newClaims(ctx context.Context, invocation *timelock.Invocation) (*Claims, error) {
	signer, err := invocation.Signer.Address()
	if err != nil {
		return nil, errors.Wrap(err, "invalid signer proof")
	}

	ixn := invocation.Instruction

	accounts := make([]AccountClaim, len(ixn.Accounts))
	for idx, account := range ixn.Accounts {
		accounts[idx] = AccountClaim{
			PublicKey:  base58.Encode(account.PublicKey),
			IsSigner:   account.IsSigner,
			IsWritable: account.IsWritable,
		}
	}

	now := time.Now()
	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    base58.Encode(i.Issuer()),
			Subject:   invocation.Transaction,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.conf.tokenTTL.Get(ctx))),
		},

		Transaction: invocation.Transaction,
		Program:     base58.Encode(ixn.Program),
		Accounts:    accounts,
		Data:        base64.StdEncoding.EncodeToString(ixn.Data),
		Timelock:    base58.Encode(invocation.Signer.Timelock()),
		Nonce:       invocation.Signer.Nonce(),
		Signer:      base58.Encode(signer),
	}, nil
}
