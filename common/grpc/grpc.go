// Package grpc implements common gRPC related services and utilities.
package grpc

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/grpclog"
	"google.golang.org/grpc/keepalive"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/logging"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/service"
)

const (
	// CfgLogDebug enables verbose gRPC debug output.
	CfgLogDebug = "grpc.log.debug"

	maxRecvMsgSize = 16777216 // 16 MiB
	maxSendMsgSize = 16777216 // 16 MiB
)

var (
	// Flags has the flags used by the gRPC server.
	Flags = flag.NewFlagSet("", flag.ContinueOnError)

	grpcMetricsOnce      sync.Once
	grpcGlobalLoggerOnce sync.Once

	grpcServerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nest_pool_grpc_server_calls",
			Help: "Number of gRPC calls.",
		},
		[]string{"call"},
	)
	grpcServerLatency = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "nest_pool_grpc_server_latency",
			Help: "gRPC call latency (seconds).",
		},
		[]string{"call"},
	)
	grpcClientCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nest_pool_grpc_client_calls",
			Help: "Number of gRPC calls.",
		},
		[]string{"call"},
	)

	grpcCollectors = []prometheus.Collector{
		grpcClientCalls,
		grpcServerCalls,
		grpcServerLatency,
	}

	serverKeepAliveParams = keepalive.ServerParameters{
		MaxConnectionIdle: 600 * time.Second,
	}

	_ grpclog.LoggerV2          = (*grpcLogAdapter)(nil)
	_ service.BackgroundService = (*Server)(nil)
)

type grpcLogAdapter struct {
	logger    *logging.Logger
	reqLogger *logging.Logger

	verbosity int
	reqSeq    uint64
	isDebug   bool
}

func (l *grpcLogAdapter) Info(args ...interface{}) {
	l.logger.Info(fmt.Sprint(args...))
}

func (l *grpcLogAdapter) Infoln(args ...interface{}) {
	l.logger.Info(fmt.Sprintln(args...))
}

func (l *grpcLogAdapter) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *grpcLogAdapter) Warning(args ...interface{}) {
	l.logger.Warn(fmt.Sprint(args...))
}

func (l *grpcLogAdapter) Warningln(args ...interface{}) {
	l.logger.Warn(fmt.Sprintln(args...))
}

func (l *grpcLogAdapter) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *grpcLogAdapter) Error(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...))
}

func (l *grpcLogAdapter) Errorln(args ...interface{}) {
	l.logger.Error(fmt.Sprintln(args...))
}

func (l *grpcLogAdapter) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *grpcLogAdapter) Fatal(args ...interface{}) {
	l.logger.Error(fmt.Sprint(args...), "fatal", true)
}

func (l *grpcLogAdapter) Fatalln(args ...interface{}) {
	l.logger.Error(fmt.Sprintln(args...), "fatal", true)
}

func (l *grpcLogAdapter) Fatalf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...), "fatal", true)
}

func (l *grpcLogAdapter) V(level int) bool {
	return l.verbosity >= level
}

func (l *grpcLogAdapter) unaryLogger(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (resp interface{}, err error) {
	seq := atomic.AddUint64(&l.reqSeq, 1)
	if l.isDebug {
		l.reqLogger.Debug("request",
			"method", info.FullMethod,
			"req_seq", seq,
			"req", req,
		)
	}

	grpcServerCalls.With(prometheus.Labels{"call": info.FullMethod}).Inc()

	start := time.Now()
	resp, err = handler(ctx, req)
	grpcServerLatency.With(prometheus.Labels{"call": info.FullMethod}).Observe(time.Since(start).Seconds())
	if err != nil {
		l.reqLogger.Error("request failed",
			"method", info.FullMethod,
			"req_seq", seq,
			"err", err,
		)
	}

	return
}

func (l *grpcLogAdapter) streamLogger(
	srv interface{},
	ss grpc.ServerStream,
	info *grpc.StreamServerInfo,
	handler grpc.StreamHandler,
) error {
	grpcServerCalls.With(prometheus.Labels{"call": info.FullMethod}).Inc()

	err := handler(srv, ss)
	if err != nil && l.isDebug {
		l.reqLogger.Debug("stream closed (failure)",
			"method", info.FullMethod,
			"err", err,
		)
	}
	return err
}

func (l *grpcLogAdapter) unaryClientLogger(
	ctx context.Context,
	method string,
	req, rsp interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	grpcClientCalls.With(prometheus.Labels{"call": method}).Inc()

	err := invoker(ctx, method, req, rsp, cc, opts...)
	if err != nil && l.isDebug {
		l.reqLogger.Debug("request failed",
			"method", method,
			"err", err,
		)
	}
	return err
}

func newGrpcLogAdapter(baseLogger *logging.Logger) *grpcLogAdapter {
	return &grpcLogAdapter{
		logger:    logging.GetLogger("grpc"),
		reqLogger: baseLogger,
		verbosity: 2,
		isDebug:   logging.GetLevel() == logging.LevelDebug && viper.GetBool(CfgLogDebug),
	}
}

// Server is a gRPC server service.
type Server struct {
	sync.Mutex
	service.BaseBackgroundService

	network  string
	address  string
	listener net.Listener
	server   *grpc.Server
	errCh    chan error
}

// ServerConfig holds the configuration used for creating a server.
type ServerConfig struct {
	// Name of the server being constructed.
	Name string
	// Address is the TCP listen address, used when Path is empty.
	Address string
	// Path is the path for a local UNIX socket server.
	Path string
	// CustomOptions is an array of extra options for the grpc server.
	CustomOptions []grpc.ServerOption
}

// Start starts the Server.
func (s *Server) Start() error {
	s.Lock()
	defer s.Unlock()

	if s.server == nil {
		return fmt.Errorf("gRPC server has already been stopped")
	}
	server := s.server

	ln, err := net.Listen(s.network, s.address)
	if err != nil {
		s.Logger.Error("error starting gRPC server",
			"err", err,
		)
		return err
	}
	s.listener = ln
	s.Logger.Info("gRPC server started", "network", s.network, "address", ln.Addr().String())

	go func() {
		if err := server.Serve(ln); err != nil {
			s.BaseBackgroundService.Stop()
			s.errCh <- err
		}
	}()

	return nil
}

// Stop stops the Server.
func (s *Server) Stop() {
	s.Lock()
	defer s.Unlock()

	if s.server != nil {
		select {
		case err := <-s.errCh:
			if err != nil {
				s.Logger.Error("gRPC Server terminated uncleanly",
					"err", err,
				)
			}
		default:
		}
		s.server.GracefulStop()
		s.server = nil
	}
}

// Cleanup cleans up after the Server.
func (s *Server) Cleanup() {
	s.Lock()
	defer s.Unlock()

	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
	if s.network == "unix" {
		_ = os.Remove(s.address)
	}
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.Lock()
	defer s.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Server returns the underlying gRPC server instance.
func (s *Server) Server() *grpc.Server {
	return s.server
}

// NewServer constructs a new gRPC server service listening on
// a TCP address or local socket path.
func NewServer(config *ServerConfig) (*Server, error) {
	network, address := "tcp", config.Address
	if config.Path != "" {
		// Remove any stale socket file first.
		_ = os.Remove(config.Path)
		network, address = "unix", config.Path
	}
	if address == "" {
		return nil, fmt.Errorf("grpc: no listen address configured")
	}

	grpcMetricsOnce.Do(func() {
		prometheus.MustRegister(grpcCollectors...)
	})

	grpcGlobalLoggerOnce.Do(func() {
		grpclog.SetLoggerV2(newGrpcLogAdapter(logging.GetLogger("grpc")))
	})

	svc := *service.NewBaseBackgroundService(fmt.Sprintf("grpc/%s", config.Name))
	logAdapter := newGrpcLogAdapter(svc.Logger)

	sOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(logAdapter.unaryLogger, serverUnaryErrorMapper),
		grpc.ChainStreamInterceptor(logAdapter.streamLogger, serverStreamErrorMapper),
		grpc.MaxRecvMsgSize(maxRecvMsgSize),
		grpc.MaxSendMsgSize(maxSendMsgSize),
		grpc.KeepaliveParams(serverKeepAliveParams),
		grpc.ForceServerCodec(&CBORCodec{}),
	}
	sOpts = append(sOpts, config.CustomOptions...)

	return &Server{
		BaseBackgroundService: svc,
		network:               network,
		address:               address,
		server:                grpc.NewServer(sOpts...),
		errCh:                 make(chan error, 1),
	}, nil
}

// Dial creates a plaintext client connection to the given target.
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	grpcMetricsOnce.Do(func() {
		prometheus.MustRegister(grpcCollectors...)
	})

	logAdapter := newGrpcLogAdapter(logging.GetLogger("grpc/client"))
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(&CBORCodec{})),
		grpc.WithChainUnaryInterceptor(logAdapter.unaryClientLogger, clientUnaryErrorMapper),
		grpc.WithChainStreamInterceptor(clientStreamErrorMapper),
	}
	dialOpts = append(dialOpts, opts...)
	return grpc.Dial(target, dialOpts...)
}

func init() {
	Flags.Bool(CfgLogDebug, false, "gRPC request/responses in debug logs (very verbose)")
	_ = Flags.MarkHidden(CfgLogDebug)

	_ = viper.BindPFlags(Flags)
}
