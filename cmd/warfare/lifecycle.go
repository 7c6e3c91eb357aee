package main

import (
	"context"
	"time"

	"github.com/warfare-dev/extension/internal/dispatcher"
)

// registerLifecycleHandlers registers system/lifecycle command handlers with the dispatcher
func registerLifecycleHandlers(d *dispatcher.Dispatcher) {
	d.Register(":INIT:", func(e dispatcher.Event) (any, error) {
		go initExtension()
		return "ok", nil
	})

	d.Register(":GETDIR:LOG:", func(e dispatcher.Event) (any, error) {
		return LogFilePath, nil
	})

	d.Register(":SERVER:STATUS:", func(e dispatcher.Event) (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return monitorService.Snapshot(ctx)
	})

	d.Register(":SAVE:", func(e dispatcher.Event) (any, error) {
		Logger.Info("Received :SAVE: command, flushing telemetry")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if OTelProvider != nil {
			if err := OTelProvider.Flush(ctx); err != nil {
				Logger.Warn("Failed to flush OTel data", "error", err)
			}
		}
		if err := SlogManager.Flush(ctx); err != nil {
			Logger.Warn("Failed to flush logs", "error", err)
		}
		return "ok", nil
	}, dispatcher.Logged())
}

func initExtension() {
	if err := bridge.Callback(callbackReady); err != nil {
		Logger.Warn("Failed to send ready callback", "error", err)
	}
	if err := bridge.Callback(callbackVersion, CurrentExtensionVersion, BuildDate); err != nil {
		Logger.Warn("Failed to send version callback", "error", err)
	}
}
