/*
Package relay implements the relay service executing gasless transfers. It
accepts signed transfer requests over HTTP, checks them (fields, addresses,
deadline, signature and nonce) and only then submits them to the chain paying
for gas from the relayer account. The response is sent after the transaction
is included into a block.
*/
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ecotrack/eco-go/pkg/config"
	"github.com/ecotrack/eco-go/pkg/encoding/address"
	"github.com/ecotrack/eco-go/pkg/metatx"
	"github.com/ecotrack/eco-go/pkg/rpcclient/actor"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Path is the path of the relay transfer endpoint.
const Path = "/api/relay-transfer"

// Executor checks nonces and executes signed transfers (like
// metatransfer.Executor).
type Executor interface {
	Nonce(owner common.Address) (*big.Int, error)
	Execute(req metatx.TransferRequest, sig []byte) (common.Hash, error)
}

// Server is the relay HTTP service.
type Server struct {
	http     []*http.Server
	config   config.Relay
	domain   metatx.Domain
	executor Executor
	log      *zap.Logger
	now      func() time.Time
	started  *atomic.Bool
	errChan  chan error
}

// Option is a Server option.
type Option func(*Server)

// WithClock sets the function returning the current time used for deadline
// checks.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New creates a relay server for the given signing domain. Errors occurring
// after Start are sent to errChan.
func New(cfg config.Relay, domain metatx.Domain, executor Executor, log *zap.Logger, errChan chan error, opts ...Option) *Server {
	if cfg.MaxRequestBodyBytes <= 0 {
		cfg.MaxRequestBodyBytes = config.DefaultMaxRequestBodyBytes
		log.Info("MaxRequestBodyBytes is not set or wrong, setting default value", zap.Int("MaxRequestBodyBytes", cfg.MaxRequestBodyBytes))
	}
	s := &Server{
		config:   cfg,
		domain:   domain,
		executor: executor,
		log:      log.With(zap.String("service", "relay")),
		now:      time.Now,
		started:  atomic.NewBool(false),
		errChan:  errChan,
	}
	for _, o := range opts {
		o(s)
	}
	mux := http.NewServeMux()
	mux.HandleFunc(Path, s.handleRelay)
	for _, addr := range cfg.GetAddresses() {
		s.http = append(s.http, &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: cfg.ReadTimeout,
			ReadTimeout:       cfg.ReadTimeout,
		})
	}
	return s
}

// Name returns the service name.
func (s *Server) Name() string {
	return "relay"
}

// Start starts listening on the configured addresses. The Server only starts
// once, subsequent calls to Start are no-op.
func (s *Server) Start() {
	if !s.config.Enabled {
		s.log.Info("relay service is not enabled")
		return
	}
	if !s.started.CompareAndSwap(false, true) {
		s.log.Info("relay service already started")
		return
	}
	for _, srv := range s.http {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			s.errChan <- err
			return
		}
		srv.Addr = ln.Addr().String() // set Addr to the actual address
		s.log.Info("starting relay service", zap.String("endpoint", srv.Addr))
		go func(srv *http.Server) {
			err := srv.Serve(ln)
			if !errors.Is(err, http.ErrServerClosed) {
				s.log.Error("failed to start relay service", zap.String("endpoint", srv.Addr), zap.Error(err))
				s.errChan <- err
			}
		}(srv)
	}
}

// Shutdown stops the service. Requests being processed are waited for.
func (s *Server) Shutdown() {
	if !s.started.CompareAndSwap(true, false) {
		return
	}
	for _, srv := range s.http {
		s.log.Info("shutting down relay service", zap.String("endpoint", srv.Addr))
		err := srv.Shutdown(context.Background())
		if err != nil {
			s.log.Warn("error during relay service shutdown", zap.String("endpoint", srv.Addr), zap.Error(err))
		}
	}
}

// Addresses returns the addresses the service listens on (actual ones after
// Start).
func (s *Server) Addresses() []string {
	res := make([]string, 0, len(s.http))
	for _, srv := range s.http {
		res = append(res, srv.Addr)
	}
	return res
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != Path {
		http.NotFound(w, r)
		return
	}
	s.handleRelay(w, r)
}

func (s *Server) handleRelay(w http.ResponseWriter, httpRequest *http.Request) {
	start := time.Now()
	reqID := uuid.New()
	log := s.log.With(zap.Stringer("request", reqID))
	w.Header().Set("X-Request-ID", reqID.String())

	if httpRequest.Method == http.MethodOptions && s.config.EnableCORSWorkaround { // Preflight CORS.
		setCORSOriginHeaders(w.Header())
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Max-Age", "21600") // 6 hours.
		return
	}
	if httpRequest.Method != http.MethodPost {
		s.writeError(w, log, NewError(http.StatusMethodNotAllowed, MsgMethodNotAllowed,
			fmt.Sprintf("invalid method '%s', please retry with 'POST'", httpRequest.Method)), nil)
		addRequestMetric(MsgMethodNotAllowed, time.Since(start))
		return
	}

	var req metatx.RelayRequest
	body := http.MaxBytesReader(w, httpRequest.Body, int64(s.config.MaxRequestBodyBytes))
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		var (
			maxErr *http.MaxBytesError
			rerr   = NewBadRequestError(MsgMalformedRequest, err.Error())
		)
		if errors.As(err, &maxErr) {
			rerr = NewError(http.StatusRequestEntityTooLarge, MsgRequestTooLarge, err.Error())
		}
		s.writeError(w, log, rerr, nil)
		addRequestMetric(rerr.Message, time.Since(start))
		return
	}

	h, rerr := s.relay(req, log)
	if rerr != nil {
		s.writeError(w, log, rerr, h)
		addRequestMetric(rerr.Message, time.Since(start))
		return
	}
	log.Info("transfer relayed",
		zap.String("from", req.From),
		zap.String("to", req.To),
		zap.Stringer("tx", h),
		zap.Duration("took", time.Since(start)))
	s.writeResponse(w, log, http.StatusOK, metatx.RelayResponse{Success: true, TxHash: h})
	addRequestMetric(resultSuccess, time.Since(start))
}

// Verify performs all request checks that don't require a transaction:
// fields presence, addresses, deadline (at now), signature and nonce.
func (s *Server) Verify(req metatx.RelayRequest, now time.Time) (metatx.TransferRequest, []byte, *Error) {
	if missing := req.Missing(); len(missing) != 0 {
		return metatx.TransferRequest{}, nil, NewBadRequestError(MsgMissingFields, strings.Join(missing, ", "))
	}
	from, err := address.StringToAddress(req.From)
	if err != nil {
		return metatx.TransferRequest{}, nil, NewBadRequestError(MsgInvalidAddress, "from: "+err.Error())
	}
	to, err := address.StringToAddress(req.To)
	if err != nil {
		return metatx.TransferRequest{}, nil, NewBadRequestError(MsgInvalidAddress, "to: "+err.Error())
	}
	tr, err := req.Request(from, to)
	if err != nil {
		return metatx.TransferRequest{}, nil, NewBadRequestError(MsgInvalidValue, err.Error())
	}
	if tr.Expired(now) {
		return metatx.TransferRequest{}, nil, NewBadRequestError(MsgDeadlinePassed,
			fmt.Sprintf("deadline %d, now %d", tr.Deadline, now.Unix()))
	}
	sig, err := req.DecodeSignature()
	if err != nil {
		return metatx.TransferRequest{}, nil, NewBadRequestError(MsgInvalidSignature, err.Error())
	}
	if err := s.domain.Verify(tr, sig); err != nil {
		return metatx.TransferRequest{}, nil, NewBadRequestError(MsgInvalidSignature, err.Error())
	}
	nonce, err := s.executor.Nonce(from)
	if err != nil {
		return metatx.TransferRequest{}, nil, NewError(http.StatusBadGateway, MsgChainUnavailable, err.Error())
	}
	if nonce.Cmp(tr.Nonce) != 0 {
		return metatx.TransferRequest{}, nil, NewError(http.StatusConflict, MsgInvalidNonce,
			fmt.Sprintf("expected %s, got %s", nonce, tr.Nonce))
	}
	return tr, sig, nil
}

// relay verifies and executes the request. The transaction hash is returned
// for sent transactions even if they failed.
func (s *Server) relay(req metatx.RelayRequest, log *zap.Logger) (*common.Hash, *Error) {
	tr, sig, rerr := s.Verify(req, s.now())
	if rerr != nil {
		return nil, rerr
	}
	log.Debug("request verified, submitting",
		zap.Stringer("from", tr.From),
		zap.Stringer("nonce", tr.Nonce))
	h, err := s.executor.Execute(tr, sig)
	var hp *common.Hash
	if h != (common.Hash{}) {
		hp = &h
	}
	if err != nil {
		return hp, executionError(err)
	}
	return hp, nil
}

func executionError(err error) *Error {
	switch {
	case errors.Is(err, actor.ErrInsufficientFunds):
		return NewError(http.StatusServiceUnavailable, MsgInsufficientFunds, err.Error())
	case errors.Is(err, actor.ErrPredictedRevert):
		return NewError(http.StatusUnprocessableEntity, MsgPredictedRevert, err.Error())
	case errors.Is(err, actor.ErrExecutionReverted):
		return NewError(http.StatusUnprocessableEntity, MsgExecutionReverted, err.Error())
	case errors.Is(err, actor.ErrTxNotAccepted), errors.Is(err, actor.ErrContextDone):
		return NewError(http.StatusGatewayTimeout, MsgNotIncluded, err.Error())
	default:
		return NewInternalServerError(err.Error())
	}
}

func setCORSOriginHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Access-Control-Allow-Headers, Authorization, X-Requested-With")
}

func (s *Server) writeError(w http.ResponseWriter, log *zap.Logger, rerr *Error, h *common.Hash) {
	fields := []zap.Field{zap.String("error", rerr.Message), zap.String("details", rerr.Data)}
	if h != nil {
		fields = append(fields, zap.Stringer("tx", h))
	}
	if rerr.HTTPCode >= http.StatusInternalServerError {
		log.Error("relay request failed", fields...)
	} else {
		log.Info("relay request rejected", fields...)
	}
	s.writeResponse(w, log, rerr.HTTPCode, metatx.RelayResponse{Error: rerr.Message, TxHash: h})
}

func (s *Server) writeResponse(w http.ResponseWriter, log *zap.Logger, code int, resp metatx.RelayResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if s.config.EnableCORSWorkaround {
		setCORSOriginHeaders(w.Header())
	}
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error("error encountered while encoding response", zap.Error(err))
	}
}
