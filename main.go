// SPDX-License-Identifier: MIT
package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"thdscope/cmd"
	"thdscope/internal/audio"
	"thdscope/internal/config"
	applog "thdscope/internal/log"
	"thdscope/internal/telemetry"
	"thdscope/internal/transport"
	"thdscope/internal/transport/udp"
	"thdscope/internal/tui"
	"thdscope/pkg/build"
)

// snapshotInterval paces the WebSocket snapshot publisher.
const snapshotInterval = 100 * time.Millisecond

// receiverQueueDepth bounds telemetry buffering between the network
// and the audio callback in master mode.
const receiverQueueDepth = 256

// main is the entry point for the analyzer.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//   - Parse command line arguments
//   - Execute one-off commands if requested
//   - Initialize PortAudio and the telemetry transports
//
// 2. Concurrent Phase (Hot Path):
//   - Start the analyzer engine and input stream
//   - Start recording and snapshot publishing if enabled
//   - Run the channel meter TUI
//
// 3. Shutdown Phase (Cold Path):
//   - Stop publishing and recording
//   - Clean up engine and transport resources
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	build.Initialize()

	// Limit OS threads to optimize for real-time audio processing:
	// - One thread dedicated to the audio callback (time-critical)
	// - One thread for UI, telemetry and I/O
	runtime.GOMAXPROCS(2)

	cfg, err := cmd.ParseArgs()
	if err != nil {
		applog.Fatalf("%v", err)
	}

	if cfg.Verbose {
		applog.SetLevel(applog.LevelDebug)
	}

	// One-off commands run without the engine.
	if cfg.Command == "list" {
		if err := listDevices(); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	}

	if !cfg.Run {
		return
	}

	if err := audio.Initialize(); err != nil {
		applog.Fatalf("%v", err)
	}
	defer audio.Terminate()

	// Telemetry wiring depends on the role: a channel strip sends
	// frames to the master's address, the master listens for them.
	var (
		sink     transport.Transport
		inbound  <-chan telemetry.Frame
		receiver *udp.Receiver
	)
	if cfg.Mode == config.ModeChannel && cfg.TargetAddress != "" {
		sender, err := udp.NewSender(cfg.TargetAddress)
		if err != nil {
			applog.Fatalf("telemetry sender: %v", err)
		}
		sink = sender
	}
	if cfg.Mode == config.ModeMaster && cfg.ListenAddress != "" {
		receiver, err = udp.NewReceiver(cfg.ListenAddress, receiverQueueDepth)
		if err != nil {
			applog.Fatalf("telemetry receiver: %v", err)
		}
		inbound = receiver.Frames()
	}

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	engine, err := audio.NewEngine(cfg, sink, inbound)
	if err != nil {
		applog.Fatalf("%v", err)
	}

	// The first input stream callback marks the start of the hot path.
	if err := engine.StartInputStream(); err != nil {
		applog.Fatalf("%v", err)
	}

	if cfg.Record {
		if err := engine.StartRecording(cfg.OutputFile); err != nil {
			applog.Fatalf("%v", err)
		}
	}

	// Snapshot publishing feeds browser UIs over WebSocket.
	var publisher *transport.SnapshotPublisher
	if cfg.WebSocketPort != "" {
		ws := transport.NewWebSocketTransport(cfg.WebSocketPort)
		publisher, err = transport.NewSnapshotPublisher(snapshotInterval, engine.Registry(), ws)
		if err != nil {
			applog.Fatalf("snapshot publisher: %v", err)
		}
		publisher.Start()
	}

	// The TUI owns the terminal until the user quits; a signal also
	// ends the session.
	uiDone := make(chan error, 1)
	go func() {
		uiDone <- tui.StartMeterUI(engine.Registry())
	}()

	select {
	case <-done:
	case err := <-uiDone:
		if err != nil {
			applog.Errorf("UI error: %v", err)
		}
	}

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			applog.Errorf("Error closing snapshot publisher: %v", err)
		}
	}

	if cfg.Record {
		if err := engine.StopRecording(); err != nil {
			applog.Errorf("Error stopping recording: %v", err)
		} else {
			fmt.Printf("\nRecording saved to: %s\n", cfg.OutputFile)
		}
	}

	if receiver != nil {
		if err := receiver.Close(); err != nil {
			applog.Errorf("Error closing telemetry receiver: %v", err)
		}
	}

	if err := engine.Close(); err != nil {
		applog.Errorf("Error closing analyzer engine: %v", err)
	}
}

// listDevices prints the available audio devices for the 'list'
// command.
func listDevices() error {
	devices, err := audio.GetDevices()
	if err != nil {
		return err
	}

	for _, device := range devices {
		deviceType := ""
		switch {
		case device.MaxInputChannels > 0 && device.MaxOutputChannels > 0:
			deviceType = "Input/Output"
		case device.MaxInputChannels > 0:
			deviceType = "Input"
		case device.MaxOutputChannels > 0:
			deviceType = "Output"
		}
		fmt.Printf("[%d] %s (%s)\n", device.ID, device.Name, deviceType)
		fmt.Printf("    Input channels: %d, Output channels: %d\n",
			device.MaxInputChannels, device.MaxOutputChannels)
		fmt.Printf("    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)
	}
	return nil
}
