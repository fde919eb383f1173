package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"github.com/yehx1/video-translate/internal/cancel"
	"github.com/yehx1/video-translate/internal/logging"
	"github.com/yehx1/video-translate/internal/queue"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ServerParams wires the service to the daemon's collaborators.
type ServerParams struct {
	SocketPath string
	Store      *queue.Store
	Registry   *cancel.Registry
	WorkerID   string
	StartedAt  time.Time
	Logger     *slog.Logger
}

// NewServer binds the socket and registers the RPC service.
func NewServer(ctx context.Context, params ServerParams) (*Server, error) {
	if params.Store == nil || params.Registry == nil {
		return nil, errors.New("ipc server requires store and registry")
	}
	logger := params.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(params.SocketPath); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", params.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	svc := &service{
		store:     params.Store,
		registry:  params.Registry,
		workerID:  params.WorkerID,
		startedAt: params.StartedAt,
	}
	if err := rpcServer.RegisterName("Daemon", svc); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancelFn := context.WithCancel(ctx)
	return &Server{
		path:      params.SocketPath,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancelFn,
	}, nil
}

// Serve accepts RPC connections until the context is cancelled.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed", logging.Error(err))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err))
	}
}

// service implements the RPC methods. Methods must satisfy net/rpc's
// signature rules: exported, two args, error return.
type service struct {
	store     *queue.Store
	registry  *cancel.Registry
	workerID  string
	startedAt time.Time
}

const rpcTimeout = 10 * time.Second

// Status reports daemon identity and aggregate queue counts.
func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	ctx, cancelFn := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancelFn()

	health, err := s.store.Health(ctx)
	if err != nil {
		return err
	}
	*resp = StatusResponse{
		Running:    true,
		WorkerID:   s.workerID,
		StartedAt:  s.startedAt,
		Total:      health.Total,
		Queued:     health.Queued,
		Processing: health.Processing,
		Review:     health.Review,
		Success:    health.Success,
		Failed:     health.Failed,
	}
	return nil
}

// StopTask flags the cancel registry, then settles the row. Flagging first
// means any subprocess dies before the transition is observed.
func (s *service) StopTask(req StopTaskRequest, resp *StopTaskResponse) error {
	ctx, cancelFn := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancelFn()

	s.registry.RequestStop(req.ID)
	task, err := s.store.StopTask(ctx, req.ID)
	if err != nil {
		return err
	}
	*resp = StopTaskResponse{ID: task.ID, Status: string(task.Status), Msg: task.Msg}
	return nil
}

// QueuePosition reports where a task sits in the admission order.
func (s *service) QueuePosition(req QueuePositionRequest, resp *QueuePositionResponse) error {
	ctx, cancelFn := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancelFn()

	position, total, err := s.store.QueuePosition(ctx, req.ID)
	if err != nil {
		return err
	}
	*resp = QueuePositionResponse{Position: position, Total: total}
	return nil
}
