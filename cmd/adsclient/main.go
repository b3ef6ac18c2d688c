// adsclient is a minimal command-line Secure ADS client: it connects to a
// single PLC using the auth mode described by a config file, reads back
// its device info and run state, and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"secureads/ads"
	"secureads/config"
	"secureads/logging"
)

var (
	configPath  = flag.String("config", config.DefaultPath(), "Path to connection config file")
	logDebug    = flag.String("log-debug", "", "Enable debug logging to debug.log. Use without value for all, or a comma-separated protocol list (ads,tls,pskengine,handshake,session)")
	activityLog = flag.String("activity-log", "", "Path to an activity log file recording connect/read lifecycle events")
	timeout     = flag.Duration("timeout", 10*time.Second, "Overall connect+request timeout")
)

func main() {
	flag.Parse()

	if *logDebug != "" {
		debugLogger, err := logging.NewDebugLogger("debug.log")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to open debug log: %v\n", err)
		} else {
			filter := *logDebug
			if filter == "all" || filter == "true" || filter == "1" {
				filter = ""
			}
			debugLogger.SetFilter(filter)
			logging.SetGlobalDebugLogger(debugLogger)
			defer debugLogger.Close()
		}
	}

	var activity *logging.FileLogger
	if *activityLog != "" {
		var err error
		activity, err = logging.NewFileLogger(*activityLog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to open activity log: %v\n", err)
		} else {
			defer activity.Close()
		}
	}
	logActivity := func(format string, args ...interface{}) {
		if activity != nil {
			activity.Log(format, args...)
		}
	}

	fileCfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	cfg, err := fileCfg.ClientConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building client config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logActivity("connecting to %s:%d", cfg.Host, cfg.Port)
	client, err := ads.Connect(ctx, cfg)
	if err != nil {
		logActivity("connect failed: %v", err)
		fmt.Fprintf(os.Stderr, "Connect failed: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()
	logActivity("connected to %s:%d", cfg.Host, cfg.Port)

	info, err := client.ReadDeviceInfo()
	if err != nil {
		logActivity("ReadDeviceInfo failed: %v", err)
		fmt.Fprintf(os.Stderr, "ReadDeviceInfo failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Device: %s\n", info)

	state, err := client.ReadState()
	if err != nil {
		logActivity("ReadState failed: %v", err)
		fmt.Fprintf(os.Stderr, "ReadState failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("ADS state: %s (device state %d)\n", state.AdsState, state.DeviceState)
	logActivity("read state %s (device state %d)", state.AdsState, state.DeviceState)
}
