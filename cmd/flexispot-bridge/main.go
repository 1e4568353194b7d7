package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/taoyao-code/flexispot-bridge/internal/app/bootstrap"
	cfgpkg "github.com/taoyao-code/flexispot-bridge/internal/config"
	"github.com/taoyao-code/flexispot-bridge/internal/logging"
	"github.com/taoyao-code/flexispot-bridge/internal/serialport"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "配置文件路径（默认读取 DESK_CONFIG 或 ./configs/example.yaml）")
	printConfig := pflag.Bool("print-config", false, "打印生效配置后退出")
	listPorts := pflag.Bool("list-ports", false, "列出可用串口后退出")
	pflag.Parse()

	// 1) 加载配置
	cfg, err := cfgpkg.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}

	if *printConfig {
		if err := dumpConfig(os.Stdout, cfg); err != nil {
			fmt.Fprintln(os.Stderr, "print config:", err)
			os.Exit(1)
		}
		return
	}
	if *listPorts {
		ports, err := serialport.ListPorts()
		if err != nil {
			fmt.Fprintln(os.Stderr, "list ports:", err)
			os.Exit(1)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)

	// 3) 启动；串口错误等致命错误以非零码退出，由进程管理器重启
	if err := bootstrap.Run(cfg, zap.L()); err != nil {
		zap.L().Error("bridge exited", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// dumpConfig 以 YAML 输出配置，密码脱敏
func dumpConfig(w io.Writer, cfg *cfgpkg.Config) error {
	masked := *cfg
	if masked.MQTT.Password != "" {
		masked.MQTT.Password = "****"
	}
	if masked.Redis.Password != "" {
		masked.Redis.Password = "****"
	}
	if len(masked.API.Keys) > 0 {
		keys := make([]string, len(masked.API.Keys))
		for i := range keys {
			keys[i] = "****"
		}
		masked.API.Keys = keys
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(masked); err != nil {
		return err
	}
	return enc.Close()
}
