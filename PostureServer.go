package main

import (
	adhoc "PostureServer/Adhoc"
	"PostureServer/api"
	"PostureServer/camera"
	"PostureServer/config"
	"PostureServer/engine"
	"PostureServer/health"
	iface "PostureServer/interface"
	"PostureServer/logger"
	"PostureServer/monitor"
	"PostureServer/pipeline"
	"PostureServer/publisher"
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func GetOutboundIP() (string, error) {
	// 只是为了通过路由表得到本地出口 IP，不会真正发包
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	fmt.Println(strings.Repeat("#", 64))
	ip, err := GetOutboundIP()
	if err != nil {
		fmt.Println("Failed to get outbound IP, using loopback:", err)
		ip = "127.0.0.1"
	} else {
		fmt.Println("Outbound IP:", ip)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Println("Failed to load config file:", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.LogLevel, cfg.Development); err != nil {
		fmt.Println("Failed to init logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()
	CPUNum := runtime.NumCPU()
	runtime.GOMAXPROCS(CPUNum)
	fmt.Printf("CPU Cores: %d\n", CPUNum)
	fmt.Println(" Camera        :", cfg.Camera.Device)
	fmt.Println(" Model         :", cfg.Engine.ModelPath)
	fmt.Println(" Status Publish:", cfg.Publisher.Addr)
	fmt.Println(" gRPC  Port    :", cfg.Health.RPCPort)
	fmt.Println(" API   Port    :", cfg.API.Port)
	fmt.Println(strings.Repeat("#", 64))
	if !cfg.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	log := logger.Log()

	detector := &engine.Detector{}
	ecfg := engine.DefaultConfig()
	ecfg.ModelPath = cfg.Engine.ModelPath
	ecfg.LibraryPath = cfg.Engine.LibraryPath
	ecfg.InputName = cfg.Engine.InputName
	ecfg.LandmarksOutput = cfg.Engine.LandmarksOutput
	ecfg.PresenceOutput = cfg.Engine.PresenceOutput
	ecfg.InputSize = cfg.Engine.InputSize
	ecfg.MinPresence = cfg.Engine.MinPresence
	if err := detector.LoadModel(ecfg); err != nil {
		log.Error("failed to load pose model", zap.String("model", ecfg.ModelPath), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	log.Info("pose model loaded", zap.String("model", ecfg.ModelPath), zap.Int("inputSize", ecfg.InputSize))

	frames := pipeline.NewFrameSlot()
	state := pipeline.NewPostureState()
	table := pipeline.NewTaskTable()
	observers := []iface.TaskObserver{monitor.TaskGauge{}}

	var healthSrv *health.Server
	if cfg.Health.RPCPort > 0 {
		healthSrv = health.NewServer(pipeline.TaskClassify, pipeline.TaskNames(), logger.Named("health"))
		if err := healthSrv.Start(fmt.Sprintf(":%d", cfg.Health.RPCPort)); err != nil {
			log.Error("health server disabled", zap.Error(err))
			healthSrv = nil
		} else {
			observers = append(observers, healthSrv)
		}
	}

	pub := publisher.New(cfg.Publisher.Addr, cfg.Publisher.Interval(), state, logger.Named(pipeline.TaskPublish))
	sup := pipeline.NewSupervisor(table, logger.Named("supervisor"), observers...)
	sup.Add(pipeline.TaskCapture, pipeline.NewCapture(camera.NewDevice(cfg.Camera.Device), frames, cfg.Camera.Yield(), logger.Named(pipeline.TaskCapture)))
	sup.Add(pipeline.TaskClassify, pipeline.NewClassifier(frames, state, detector, logger.Named(pipeline.TaskClassify)))
	sup.Add(pipeline.TaskPublish, pub)
	// The pipeline runs until the shutdown signal.
	ctx, cancel := context.WithCancel(context.Background())
	sup.Start(ctx)

	var apiSrv *api.Server
	if cfg.API.Port > 0 {
		apiSrv = api.New(state, table, logger.Named("api"))
		if _, err := apiSrv.Start(fmt.Sprintf(":%d", cfg.API.Port)); err != nil {
			log.Error("api server disabled", zap.Error(err))
			apiSrv = nil
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.StartMon(ctx)
	}()
	if cfg.Registry.UseRegServer {
		class, known := adhoc.InstanceClass(cfg.Registry.InstanceClass)
		if !known {
			log.Warn("invalid instanceClass in config, defaulting to Cpu", zap.String("instanceClass", cfg.Registry.InstanceClass))
		}
		reg := adhoc.RegServerConfig{}
		reg.SetAddress(cfg.Registry.RegServerHost, cfg.Registry.RegServerPort)
		hb := adhoc.NewHeartbeat(reg, ip, publishPort(cfg.Publisher.Addr), class, cfg.Registry.Interval(), state, logger.Named("adhoc"))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = hb.Run(ctx)
		}()
	} else {
		log.Info("UseRegServer is set to false, skipping registration")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	if apiSrv != nil {
		_ = apiSrv.Shutdown(shutdownCtx)
	}
	if healthSrv != nil {
		healthSrv.Stop()
	}
	if releaseDetector(cancel, func() {
		sup.Wait()
		wg.Wait()
	}, 3*time.Second, detector, engine.Shutdown, log) {
		log.Info("safely exited")
	}
}

// releaseDetector stops every goroutine and then frees the detector and the
// inference runtime. If the goroutines do not stop within timeout the
// detector may still be in use, so it is left for the process exit to reclaim.
func releaseDetector(cancel context.CancelFunc, wait func(), timeout time.Duration,
	detector iface.Detector, releaseRuntime func() error, log *zap.Logger) bool {
	cancel()
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
	case <-t.C:
		log.Warn("tasks did not stop in time, detector not released", zap.Duration("timeout", timeout))
		return false
	}
	detector.Destroy()
	if err := releaseRuntime(); err != nil {
		log.Warn("failed to release inference runtime", zap.Error(err))
	}
	return true
}

// publishPort is the port status clients connect to, announced in the
// registration heartbeat.
func publishPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, _ := strconv.Atoi(portStr)
	return port
}
