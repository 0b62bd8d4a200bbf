package main

import (
	"flag"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/zeromicro/go-zero/core/conf"
	zerosvc "github.com/zeromicro/go-zero/core/service"
	"github.com/zeromicro/go-zero/rest"

	"grant-settlement-sol/internal/config"
	"grant-settlement-sol/internal/handler"
	"grant-settlement-sol/internal/pkg/logger"
	"grant-settlement-sol/internal/pkg/monitor"
	"grant-settlement-sol/internal/service"
	"grant-settlement-sol/internal/svc"
)

var configFile = flag.String("f", "etc/settle.yaml", "the config file")

func main() {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("panic: %+v\nstack: %s", r, debug.Stack())
			logger.Sync()
			os.Exit(1)
		}
	}()

	flag.Parse()

	// .env 不存在时忽略，环境变量以进程环境为准
	_ = godotenv.Load()

	var c config.Config
	conf.MustLoad(*configFile, &c)

	if err := logger.InitLogger(c.Logger.ToLogOption()); err != nil {
		panic(err)
	}
	defer logger.Sync()

	admin, err := config.ParseAdminKey(os.Getenv(config.AdminKeyEnv))
	if err != nil {
		panic(err)
	}

	serviceContext, err := svc.NewServiceContext(c, admin)
	if err != nil {
		panic(err)
	}
	defer serviceContext.Close()

	server := rest.MustNewServer(c.RestConf)
	handler.RegisterHandlers(server, serviceContext)

	sg := zerosvc.NewServiceGroup()
	sg.Add(server)
	sg.Add(service.NewReconcileService(c.Reconcile, serviceContext.Grant))
	if c.Monitor.Port > 0 {
		sg.Add(monitor.NewMonitorServer(c.Monitor.Port))
	}

	logger.Infof("[main] starting settle api at %s:%d, admin=%s", c.Host, c.Port, serviceContext.Grant.AdminOwner())

	go sg.Start()

	// 等待退出信号
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Infof("[main] shutting down services...")
	sg.Stop()
}
