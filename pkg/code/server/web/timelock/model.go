package timelock

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	timelock_data "github.com/code-payments/code-timelock-server/pkg/code/data/timelock"
	timelocktx_data "github.com/code-payments/code-timelock-server/pkg/code/data/timelocktx"
	"github.com/code-payments/code-timelock-server/pkg/database/query"
	"github.com/code-payments/code-timelock-server/pkg/solana"
	timelock_program "github.com/code-payments/code-timelock-server/pkg/solana/timelock"
)

const (
	maxRequestBodySize = 16 * 1024

	// Largest delay that fits in a time.Duration. Must match the lte tag on
	// createTimelockRequest.DelaySeconds.
	maxDelaySeconds = math.MaxInt64 / int64(time.Second)
)

type createTimelockRequest struct {
	Address      string `json:"address" validate:"required,address"`
	DelaySeconds *int64 `json:"delay_seconds" validate:"required,gte=0,lte=9223372036"`

	// Defaults to the canonical nonce when not provided
	Nonce *uint8 `json:"nonce"`
}

type accountModel struct {
	PublicKey  string `json:"pubkey" validate:"required,address"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

// queueTransactionRequest carries the instruction either as separate fields,
// or as the timelock program's queue_transaction instruction data.
type queueTransactionRequest struct {
	Timelock string `json:"timelock" validate:"required,address"`
	Address  string `json:"address" validate:"required,address"`

	Program  string         `json:"program" validate:"omitempty,address"`
	Accounts []accountModel `json:"accounts" validate:"omitempty,dive"`
	Data     string         `json:"data" validate:"omitempty,base64"`

	Instruction string `json:"instruction" validate:"omitempty,base64"`
}

type executeTransactionRequest struct {
	Address string `json:"address" validate:"required,address"`
}

type timelockView struct {
	Address      string    `json:"address"`
	Signer       string    `json:"signer"`
	Nonce        uint8     `json:"nonce"`
	DelaySeconds int64     `json:"delay_seconds"`
	AccountData  string    `json:"account_data"`
	CreatedAt    time.Time `json:"created_at"`
}

type transactionView struct {
	Cursor       string         `json:"cursor"`
	Address      string         `json:"address"`
	Timelock     string         `json:"timelock"`
	Program      string         `json:"program"`
	Accounts     []accountModel `json:"accounts"`
	Data         string         `json:"data"`
	State        string         `json:"state"`
	ExecutableAt time.Time      `json:"executable_at"`
	ExecutedAt   *time.Time     `json:"executed_at,omitempty"`
	AccountData  string         `json:"account_data"`
	CreatedAt    time.Time      `json:"created_at"`
}

func newValidator() *validator.Validate {
	validate := validator.New()

	// Report fields by their JSON names
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	validate.RegisterValidation("address", func(fl validator.FieldLevel) bool {
		decoded, err := base58.Decode(fl.Field().String())
		return err == nil && len(decoded) == ed25519.PublicKeySize
	})

	return validate
}

func decodeJsonBody(r *http.Request, validate *validator.Validate, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		return err
	}

	err = json.Unmarshal(body, dst)
	if err != nil {
		return errors.New("request body is not valid json")
	}

	return validate.Struct(dst)
}

func newCreateTimelockRequestFromHttpContext(r *http.Request, validate *validator.Validate) (*createTimelockRequest, error) {
	var req createTimelockRequest
	if err := decodeJsonBody(r, validate, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *createTimelockRequest) GetDelay() time.Duration {
	return time.Duration(*r.DelaySeconds) * time.Second
}

// GetNonce returns the provided nonce, or the canonical one for the address
func (r *createTimelockRequest) GetNonce() (uint8, error) {
	if r.Nonce != nil {
		return *r.Nonce, nil
	}

	decoded, err := base58.Decode(r.Address)
	if err != nil {
		return 0, err
	}

	_, nonce, err := timelock_program.GetSignerAddress(decoded)
	if err != nil {
		return 0, errors.Wrap(err, "no nonce derives a signer")
	}
	return nonce, nil
}

func newQueueTransactionRequestFromHttpContext(r *http.Request, validate *validator.Validate) (*queueTransactionRequest, error) {
	var req queueTransactionRequest
	if err := decodeJsonBody(r, validate, &req); err != nil {
		return nil, err
	}

	hasProgram := len(req.Program) > 0
	hasInstruction := len(req.Instruction) > 0
	if hasProgram == hasInstruction {
		return nil, errors.New("exactly one of program or instruction is required")
	}

	if hasInstruction && (len(req.Accounts) > 0 || len(req.Data) > 0) {
		return nil, errors.New("accounts and data cannot be provided with instruction")
	}

	return &req, nil
}

// ToInstruction returns the instruction to queue
func (r *queueTransactionRequest) ToInstruction() (solana.Instruction, error) {
	if len(r.Instruction) > 0 {
		encoded, err := base64.StdEncoding.DecodeString(r.Instruction)
		if err != nil {
			return solana.Instruction{}, errors.New("instruction not valid base64")
		}

		args, err := timelock_program.QueueTransactionInstructionFromBinary(encoded)
		if err != nil {
			return solana.Instruction{}, errors.Wrap(err, "instruction is not a queue_transaction instruction")
		}

		accounts := make([]solana.AccountMeta, len(args.Accounts))
		for i, account := range args.Accounts {
			accounts[i] = account.ToAccountMeta()
		}
		return solana.NewInstruction(args.ProgramId, args.Data, accounts...), nil
	}

	program, err := base58.Decode(r.Program)
	if err != nil {
		return solana.Instruction{}, errors.New("program is not a public key")
	}

	data, err := base64.StdEncoding.DecodeString(r.Data)
	if err != nil {
		return solana.Instruction{}, errors.New("data not valid base64")
	}

	accounts := make([]solana.AccountMeta, len(r.Accounts))
	for i, account := range r.Accounts {
		publicKey, err := base58.Decode(account.PublicKey)
		if err != nil {
			return solana.Instruction{}, errors.Errorf("account at index %d is not a public key", i)
		}

		accounts[i] = solana.AccountMeta{
			PublicKey:  publicKey,
			IsSigner:   account.IsSigner,
			IsWritable: account.IsWritable,
		}
	}

	return solana.NewInstruction(program, data, accounts...), nil
}

func newExecuteTransactionRequestFromHttpContext(r *http.Request, validate *validator.Validate) (*executeTransactionRequest, error) {
	var req executeTransactionRequest
	if err := decodeJsonBody(r, validate, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func getQueryOptionsFromHttpContext(r *http.Request, maxPageSize uint64) ([]query.Option, error) {
	var opts []query.Option

	values := r.URL.Query()

	if cursor := values.Get("cursor"); len(cursor) > 0 {
		decoded, err := query.CursorFromBase58(cursor)
		if err != nil {
			return nil, errors.New("cursor is invalid")
		}
		opts = append(opts, query.WithCursor(decoded))
	}

	if limit := values.Get("limit"); len(limit) > 0 {
		parsed, err := strconv.ParseUint(limit, 10, 64)
		if err != nil || parsed == 0 {
			return nil, errors.New("limit must be a positive integer")
		}
		if parsed > maxPageSize {
			return nil, errors.Errorf("limit cannot exceed %d", maxPageSize)
		}
		opts = append(opts, query.WithLimit(parsed))
	}

	if direction := values.Get("direction"); len(direction) > 0 {
		ordering, err := query.ToOrdering(direction)
		if err != nil {
			return nil, errors.New("direction must be asc or desc")
		}
		opts = append(opts, query.WithDirection(ordering))
	}

	return opts, nil
}

func toTimelockView(record *timelock_data.Record) *timelockView {
	return &timelockView{
		Address:      record.Address,
		Signer:       record.SignerAddress,
		Nonce:        record.Nonce,
		DelaySeconds: int64(record.Delay / time.Second),
		AccountData:  base64.StdEncoding.EncodeToString(record.ToProgramAccount().Marshal()),
		CreatedAt:    record.CreatedAt,
	}
}

func toTransactionView(record *timelocktx_data.Record) (*transactionView, error) {
	programAccount, err := record.ToProgramAccount()
	if err != nil {
		return nil, err
	}

	accounts := make([]accountModel, len(record.Accounts))
	for i, account := range record.Accounts {
		accounts[i] = accountModel{
			PublicKey:  account.PublicKey,
			IsSigner:   account.IsSigner,
			IsWritable: account.IsWritable,
		}
	}

	return &transactionView{
		Cursor:       query.ToCursor(record.Id).ToBase58(),
		Address:      record.Address,
		Timelock:     record.Timelock,
		Program:      record.Program,
		Accounts:     accounts,
		Data:         base64.StdEncoding.EncodeToString(record.Data),
		State:        record.State().String(),
		ExecutableAt: record.ExecutableAt,
		ExecutedAt:   record.ExecutedAt,
		AccountData:  base64.StdEncoding.EncodeToString(programAccount.Marshal()),
		CreatedAt:    record.CreatedAt,
	}, nil
}
