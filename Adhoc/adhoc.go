package Adhoc

import (
	"PostureServer/logger"
	"PostureServer/posture"
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DmlInstance    = 0x2001
	CpuInstance    = 0x2002
	CudaInstance   = 0x2003
	RocmInstance   = 0x2004
	TimeOutSeconds = 5
)

// InstanceClass maps the config name to its class code. Unknown names are Cpu.
func InstanceClass(name string) (int, bool) {
	switch name {
	case "Dml":
		return DmlInstance, true
	case "Cuda":
		return CudaInstance, true
	case "Rocm":
		return RocmInstance, true
	case "Cpu":
		return CpuInstance, true
	default:
		return CpuInstance, false
	}
}

type RegisterRequest struct {
	Id            string `json:"id"`
	IP            string `json:"ip"`
	Port          int    `json:"port"`
	InstanceClass int    `json:"instanceClass"`
	TimeStamp     int64  `json:"timestamp"`
	Posture       string `json:"posture"`
}

type RegisterResponse struct {
	Id      string `json:"id"`
	Success bool   `json:"success"`
}

// LabelReader is the read side of the posture state.
type LabelReader interface {
	Get() posture.Label
}

type RegServerConfig struct {
	Port int
	Addr string
}

func (reg *RegServerConfig) SetAddress(addr string, port int) {
	reg.Addr = addr
	reg.Port = port
}

// Heartbeat registers this instance with the registration server and keeps
// re-registering it with the current posture label.
type Heartbeat struct {
	Id            string
	url           string
	ip            string
	port          int
	instanceClass int
	interval      time.Duration
	labels        LabelReader
	client        *resty.Client
	log           *zap.Logger
}

// NewHeartbeat announces ip:port (the status publisher) to reg every interval.
func NewHeartbeat(reg RegServerConfig, ip string, port, instanceClass int, interval time.Duration, labels LabelReader, log *zap.Logger) *Heartbeat {
	if interval <= 0 {
		interval = TimeOutSeconds * time.Second
	}
	return &Heartbeat{
		Id:            uuid.NewString(),
		url:           fmt.Sprintf("http://%s:%d/api/register", reg.Addr, reg.Port),
		ip:            ip,
		port:          port,
		instanceClass: instanceClass,
		interval:      interval,
		labels:        labels,
		client:        resty.New().SetTimeout(TimeOutSeconds * time.Second), // 总超时
		log:           logger.OrNop(log),
	}
}

// Run sends one registration right away and then one per interval until ctx
// ends. Failed requests are logged and retried on the next tick.
func (h *Heartbeat) Run(ctx context.Context) error {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	h.safeDoRequest(ctx)
	for {
		select {
		case <-ctx.Done():
			h.log.Info("heartbeat context cancelled, exiting")
			return ctx.Err()
		case <-ticker.C:
			h.safeDoRequest(ctx)
		}
	}
}

func (h *Heartbeat) safeDoRequest(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("heartbeat panic recovered", zap.Any("panic", r))
		}
	}()
	var respBody RegisterResponse
	reqBody := RegisterRequest{
		Id:            h.Id,
		IP:            h.ip,
		Port:          h.port,
		InstanceClass: h.instanceClass,
		TimeStamp:     time.Now().Unix(),
		Posture:       h.labels.Get().Name(),
	}
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).
		SetResult(&respBody). // 2xx 自动反序列化到 respBody
		Post(h.url)
	if err != nil {
		if ctx.Err() == nil {
			h.log.Warn("heartbeat request failed", zap.String("url", h.url), zap.Error(err))
		}
		return
	}
	if resp.IsError() {
		h.log.Warn("registration server returned error",
			zap.String("status", resp.Status()), zap.String("body", resp.String()))
		return
	}
	h.log.Debug("heartbeat sent", zap.String("id", h.Id), zap.Bool("success", respBody.Success))
}
