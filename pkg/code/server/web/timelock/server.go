package timelock

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	timelocktx_data "github.com/code-payments/code-timelock-server/pkg/code/data/timelocktx"
	"github.com/code-payments/code-timelock-server/pkg/code/timelock"
	"github.com/code-payments/code-timelock-server/pkg/metrics"
)

const (
	v1PathPrefix             = "/v1"
	v1CreateTimelockPath     = v1PathPrefix + "/createTimelock"
	v1QueueTransactionPath   = v1PathPrefix + "/queueTransaction"
	v1ExecuteTransactionPath = v1PathPrefix + "/executeTransaction"
	v1GetTimelockPath        = v1PathPrefix + "/getTimelock"
	v1GetTransactionPath     = v1PathPrefix + "/getTransaction"
	v1GetTransactionsPath    = v1PathPrefix + "/getTransactions"

	contentTypeHeaderName      = "content-type"
	jsonContentTypeHeaderValue = "application/json"
)

type Server struct {
	log      *logrus.Entry
	conf     *conf
	executor *timelock.Executor
	validate *validator.Validate
	limiter  *limiter
}

func NewTimelockServer(executor *timelock.Executor, configProvider ConfigProvider) *Server {
	conf := configProvider()
	return &Server{
		log:      logrus.StandardLogger().WithField("type", "timelock/server"),
		conf:     conf,
		executor: executor,
		validate: newValidator(),
		limiter:  newLocalLimiter(conf.queueRateLimit.Get(context.Background())),
	}
}

type handlerFunc func(log *logrus.Entry, r *http.Request) (int, GenericApiResponseBody)

// wrap runs a handler within a traced transaction and writes its JSON body
func (s *Server) wrap(path, method string, handler handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)

		ctx, end := metrics.StartTransaction(r.Context(), path)
		r = r.WithContext(ctx)

		statusCode, body := func() (int, GenericApiResponseBody) {
			if r.Method != method {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(errors.Errorf("http %s expected", strings.ToLower(method)))
			}
			return handler(log, r)
		}()

		if statusCode >= http.StatusInternalServerError {
			end(errors.Errorf("%d status code returned", statusCode))
		} else {
			end(nil)
		}

		w.Header().Set(contentTypeHeaderName, jsonContentTypeHeaderValue)
		w.WriteHeader(statusCode)
		if _, err := w.Write([]byte(body.ToString())); err != nil {
			log.WithError(err).Warn("failed to write body")
		}
	}
}

func (s *Server) createTimelockHandler(log *logrus.Entry, r *http.Request) (int, GenericApiResponseBody) {
	req, err := newCreateTimelockRequestFromHttpContext(r, s.validate)
	if err != nil {
		return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
	}

	log = log.WithField("timelock", req.Address)

	nonce, err := req.GetNonce()
	if err != nil {
		return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
	}

	record, err := s.executor.CreateTimelock(r.Context(), req.Address, req.GetDelay(), nonce)
	if err != nil {
		statusCode, err := HandleExecutorErrorInWebContext(err)
		if statusCode >= http.StatusInternalServerError {
			log.WithError(err).Warn("failure creating timelock")
		}
		return statusCode, NewGenericApiFailureResponseBody(err)
	}

	respBody := NewGenericApiSuccessResponseBody()
	respBody["timelock"] = toTimelockView(record)
	return http.StatusOK, respBody
}

func (s *Server) queueTransactionHandler(log *logrus.Entry, r *http.Request) (int, GenericApiResponseBody) {
	if !s.limiter.allowRequest(r) {
		return http.StatusTooManyRequests, NewGenericApiFailureResponseBody(errRateLimited)
	}

	req, err := newQueueTransactionRequestFromHttpContext(r, s.validate)
	if err != nil {
		return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
	}

	log = log.WithFields(logrus.Fields{
		"timelock":    req.Timelock,
		"transaction": req.Address,
	})

	ixn, err := req.ToInstruction()
	if err != nil {
		return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
	}

	record, err := s.executor.QueueTransaction(r.Context(), req.Timelock, req.Address, ixn)
	if err != nil {
		statusCode, err := HandleExecutorErrorInWebContext(err)
		if statusCode >= http.StatusInternalServerError {
			log.WithError(err).Warn("failure queueing transaction")
		}
		return statusCode, NewGenericApiFailureResponseBody(err)
	}

	return s.transactionResponse(log, record)
}

func (s *Server) executeTransactionHandler(log *logrus.Entry, r *http.Request) (int, GenericApiResponseBody) {
	req, err := newExecuteTransactionRequestFromHttpContext(r, s.validate)
	if err != nil {
		return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
	}

	log = log.WithField("transaction", req.Address)

	record, err := s.executor.ExecuteTransaction(r.Context(), req.Address)
	if err != nil {
		statusCode, err := HandleExecutorErrorInWebContext(err)
		if statusCode >= http.StatusInternalServerError {
			log.WithError(err).Warn("failure executing transaction")
		}
		return statusCode, NewGenericApiFailureResponseBody(err)
	}

	return s.transactionResponse(log, record)
}

func (s *Server) getTimelockHandler(log *logrus.Entry, r *http.Request) (int, GenericApiResponseBody) {
	address, err := getAddressQueryParam(r, "address")
	if err != nil {
		return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
	}

	record, err := s.executor.GetTimelock(r.Context(), address)
	if err != nil {
		statusCode, err := HandleExecutorErrorInWebContext(err)
		if statusCode >= http.StatusInternalServerError {
			log.WithError(err).WithField("timelock", address).Warn("failure getting timelock")
		}
		return statusCode, NewGenericApiFailureResponseBody(err)
	}

	respBody := NewGenericApiSuccessResponseBody()
	respBody["timelock"] = toTimelockView(record)
	return http.StatusOK, respBody
}

func (s *Server) getTransactionHandler(log *logrus.Entry, r *http.Request) (int, GenericApiResponseBody) {
	address, err := getAddressQueryParam(r, "address")
	if err != nil {
		return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
	}

	log = log.WithField("transaction", address)

	record, err := s.executor.GetTransaction(r.Context(), address)
	if err != nil {
		statusCode, err := HandleExecutorErrorInWebContext(err)
		if statusCode >= http.StatusInternalServerError {
			log.WithError(err).Warn("failure getting transaction")
		}
		return statusCode, NewGenericApiFailureResponseBody(err)
	}

	return s.transactionResponse(log, record)
}

func (s *Server) getTransactionsHandler(log *logrus.Entry, r *http.Request) (int, GenericApiResponseBody) {
	address, err := getAddressQueryParam(r, "timelock")
	if err != nil {
		return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
	}

	log = log.WithField("timelock", address)

	opts, err := getQueryOptionsFromHttpContext(r, s.conf.maxPageSize.Get(r.Context()))
	if err != nil {
		return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
	}

	records, err := s.executor.GetTransactionsByTimelock(r.Context(), address, opts...)
	if err != nil {
		statusCode, err := HandleExecutorErrorInWebContext(err)
		if statusCode >= http.StatusInternalServerError {
			log.WithError(err).Warn("failure getting transactions")
		}
		return statusCode, NewGenericApiFailureResponseBody(err)
	}

	views := make([]*transactionView, len(records))
	for i, record := range records {
		views[i], err = toTransactionView(record)
		if err != nil {
			log.WithError(err).WithField("transaction", record.Address).Warn("failure building transaction view")
			return http.StatusInternalServerError, NewGenericApiFailureResponseBody(errors.New("internal server error"))
		}
	}

	respBody := NewGenericApiSuccessResponseBody()
	respBody["transactions"] = views
	return http.StatusOK, respBody
}

func (s *Server) transactionResponse(log *logrus.Entry, record *timelocktx_data.Record) (int, GenericApiResponseBody) {
	view, err := toTransactionView(record)
	if err != nil {
		log.WithError(err).Warn("failure building transaction view")
		return http.StatusInternalServerError, NewGenericApiFailureResponseBody(errors.New("internal server error"))
	}

	respBody := NewGenericApiSuccessResponseBody()
	respBody["transaction"] = view
	return http.StatusOK, respBody
}

func (s *Server) GetHandlers() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		v1CreateTimelockPath:     s.wrap(v1CreateTimelockPath, http.MethodPost, s.createTimelockHandler),
		v1QueueTransactionPath:   s.wrap(v1QueueTransactionPath, http.MethodPost, s.queueTransactionHandler),
		v1ExecuteTransactionPath: s.wrap(v1ExecuteTransactionPath, http.MethodPost, s.executeTransactionHandler),
		v1GetTimelockPath:        s.wrap(v1GetTimelockPath, http.MethodGet, s.getTimelockHandler),
		v1GetTransactionPath:     s.wrap(v1GetTransactionPath, http.MethodGet, s.getTransactionHandler),
		v1GetTransactionsPath:    s.wrap(v1GetTransactionsPath, http.MethodGet, s.getTransactionsHandler),
	}
}

func getAddressQueryParam(r *http.Request, name string) (string, error) {
	value := r.URL.Query().Get(name)
	if len(value) == 0 {
		return "", errors.Errorf("%s query parameter missing", name)
	}

	decoded, err := base58.Decode(value)
	if err != nil || len(decoded) != 32 {
		return "", errors.Errorf("%s is not a public key", name)
	}
	return value, nil
}
