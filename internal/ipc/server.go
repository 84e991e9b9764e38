package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"forgesync/internal/backend"
	"forgesync/internal/daemon"
	"forgesync/internal/logging"
	"forgesync/internal/submit"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("ForgeSync", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
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
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
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
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun forgesync stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.PID = status.PID
	resp.Mode = string(status.Mode.Mode)
	resp.AutoOffline = status.Mode.AutoOffline
	resp.Reachable = status.Reachable
	resp.ChannelState = string(status.Channel.State)
	resp.ChannelRetryAttempt = status.Channel.RetryAttempt
	resp.ChannelLastError = status.Channel.LastError
	resp.QueueCount = status.QueueCount
	resp.QueueDBPath = status.QueueDBPath
	resp.LockPath = status.LockFilePath
	resp.StorageAvailable = status.StorageAvailable
	resp.StorageDetail = status.StorageDetail
	resp.LinkMonitor = status.LinkMonitor
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) SetMode(req SetModeRequest, resp *SetModeResponse) error {
	state, err := s.daemon.SetMode(req.Mode)
	if err != nil {
		return err
	}
	resp.Mode = string(state.Mode)
	resp.AutoOffline = state.AutoOffline
	s.log().Info("mode set via IPC",
		logging.String(logging.FieldEventType, "mode_set"),
		logging.String(logging.FieldMode, resp.Mode))
	return nil
}

func (s *service) QueueList(_ QueueListRequest, resp *QueueListResponse) error {
	records, err := s.daemon.ListQueue(s.ctx)
	if err != nil {
		return err
	}
	resp.Records = make([]QueuedRecord, 0, len(records))
	for _, record := range records {
		dto := QueuedRecord{
			ID:        record.ID,
			CreatedAt: record.CreatedAt.Format(time.RFC3339),
		}
		for _, target := range record.Targets {
			dto.TargetNames = append(dto.TargetNames, target.Name)
			dto.TotalBytes += target.Size
		}
		if record.Carrier != nil {
			dto.CarrierName = record.Carrier.Name
			dto.TotalBytes += record.Carrier.Size
		}
		resp.Records = append(resp.Records, dto)
	}
	return nil
}

func (s *service) QueueRemove(req QueueRemoveRequest, resp *QueueRemoveResponse) error {
	if req.ID == "" {
		return errors.New("queue remove requires an id")
	}
	removed, err := s.daemon.RemoveQueued(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("queued record removed via IPC",
		logging.String(logging.FieldEventType, "queue_remove"),
		logging.String(logging.FieldRecordID, req.ID))
	return nil
}

func (s *service) QueueClear(_ QueueClearRequest, resp *QueueClearResponse) error {
	s.log().Debug("queue clear requested")
	removed, err := s.daemon.ClearQueue(s.ctx)
	if err != nil {
		return err
	}
	resp.Removed = removed
	s.log().Info("queue cleared",
		logging.String(logging.FieldEventType, "queue_clear"),
		logging.Int("removed_count", removed))
	return nil
}

func (s *service) SyncNow(_ SyncNowRequest, resp *SyncNowResponse) error {
	s.log().Debug("sync requested")
	synced, err := s.daemon.SyncNow(s.ctx)
	if err != nil {
		return err
	}
	resp.Synced = synced
	s.log().Info("sync pass completed via IPC",
		logging.String(logging.FieldEventType, "sync_now"),
		logging.Int("synced_count", synced))
	return nil
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	options, err := backend.ParseOptions(json.RawMessage(req.OptionsJSON))
	if err != nil {
		return fmt.Errorf("parse options: %w", err)
	}

	submission := submit.Request{
		Targets: make([]backend.File, len(req.Targets)),
		Carrier: backend.File{Name: req.Carrier.Name, MIME: req.Carrier.MIME, Data: req.Carrier.Data},
		Options: options,
	}
	for i, target := range req.Targets {
		submission.Targets[i] = backend.File{Name: target.Name, MIME: target.MIME, Data: target.Data}
	}

	result, err := s.daemon.Submit(s.ctx, submission)
	if err != nil {
		return err
	}
	resp.JobID = result.JobID
	resp.Queued = result.Queued
	return nil
}

func (s *service) Jobs(req JobsRequest, resp *JobsResponse) error {
	jobs, err := s.daemon.Jobs(s.ctx, req.Limit, req.Status)
	if err != nil {
		return err
	}
	resp.Jobs = make([]JobSummary, 0, len(jobs))
	for _, job := range jobs {
		resp.Jobs = append(resp.Jobs, JobSummary{
			JobID:     job.JobID,
			Type:      job.Type,
			Status:    job.Status,
			Error:     job.Error,
			CreatedAt: job.CreatedAt,
			UpdatedAt: job.UpdatedAt,
		})
	}
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.DatabaseReadable = health.DatabaseReadable
	resp.TableExists = health.TableExists
	resp.IntegrityCheck = health.IntegrityCheck
	resp.TotalRecords = health.TotalRecords
	resp.Error = health.Error
	return err
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}
