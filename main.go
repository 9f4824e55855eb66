package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"sync"
	"syscall"
	"time"

	"isle/audio"
	"isle/config"
	"isle/landmark"
	"isle/log"
	"isle/transcriber"
)

var version = "dev"

var shutdownOnce sync.Once

func gracefulShutdown(ctrl *controller) {
	shutdownOnce.Do(func() {
		if ctrl != nil && ctrl.Recordings() > 0 {
			log.SessionEnd(ctrl.Recordings())
		}
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix + " (ctrl+g)"
}

func modeLineText(trans transcriber.Transcriber, geminiModel string) string {
	speechLabel := trans.Name()
	if lang := trans.GetLanguage(); lang != "" {
		speechLabel += " (" + lang + ")"
	}
	return fmt.Sprintf("[%s | %s]", speechLabel, geminiModel)
}

func main() {
	run()
}

func run() {
	configFlag := flag.String("config", "", "Path to yaml config file")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	langFlag := flag.String("lang", "", "Language code for transcription (e.g., en, es, fr)")
	saveFlag := flag.Bool("save", false, "Save each narration as a FLAC file")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("isle %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *langFlag != "" {
		cfg.Speech.Language = *langFlag
	}
	if *saveFlag {
		cfg.Archive.Enabled = true
	}

	logDir := *logPathFlag
	if logDir == "" {
		logDir = cfg.Log.Dir
	}
	logPath, err := log.ResolveDir(logDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	trans := transcriber.New(transcriber.Config{
		APIKey:   cfg.Speech.APIKey,
		Model:    cfg.Speech.Model,
		Language: cfg.Speech.Language,
	})
	extractor := landmark.NewGemini(cfg.Gemini.APIKey, cfg.Gemini.Model)
	log.SessionStart(trans.Name(), cfg.Gemini.Model)

	audioCtx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		os.Exit(1)
	}
	defer audioCtx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		if devices, err := audioCtx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					selectedDevice = &devices[i]
					break
				}
			}
		}
	} else if *setupFlag {
		selectedDevice, err = audio.SelectDevice(audioCtx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: device selection failed: %v\n", err)
			fmt.Fprintln(os.Stderr, "Falling back to default device")
			selectedDevice = nil
		}
	}

	toggleCh := make(chan struct{}, 1)
	deviceCh := make(chan struct{}, 1)

	ctrl := newController(audioCtx, selectedDevice, trans, extractor, tuiSend)
	ctrl.archiving = cfg.Archive.Enabled
	ctrl.archiveDir = cfg.Archive.Dir

	tuiMu.Lock()
	tuiProgram = NewTUIProgram(ctrl, toggleCh, deviceCh)
	tuiMu.Unlock()

	go func() {
		if _, err := tuiProgram.Run(); err != nil {
			log.Errorf("TUI error: %v", err)
			os.Exit(1)
		}
		gracefulShutdown(ctrl)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		gracefulShutdown(ctrl)
	}()

	tuiSend(ModeLineMsg{Text: modeLineText(trans, cfg.Gemini.Model)})
	tuiSend(DeviceLineMsg{Text: deviceLineText(selectedDevice)})
	if cfg.Gemini.APIKey == "" {
		log.Warn("no gemini api key configured")
		tuiSend(StatusMsg{Text: "GEMINI_API_KEY not set — landmark extraction will fail"})
	}

	for {
		select {
		case <-toggleCh:
			switch ctrl.Phase() {
			case phaseIdle:
				if err := ctrl.Start(); err != nil {
					log.Errorf("start failed: %v", err)
				}
			case phaseRecording:
				// Stop blocks on the extraction call; toggles arriving
				// while Processing are dropped until the session is Idle.
				go ctrl.Stop()
			}

		case <-deviceCh:
			if ctrl.Phase() != phaseIdle {
				continue
			}
			handleDeviceSwitch(audioCtx, ctrl)
		}
	}
}

func handleDeviceSwitch(ctx audio.Context, ctrl *controller) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()

	if p != nil {
		p.ReleaseTerminal()
	}
	dev, err := audio.SelectDevice(ctx)
	if p != nil {
		p.RestoreTerminal()
	}

	if err != nil {
		log.Warnf("device selection failed: %v", err)
		return
	}
	if dev != nil {
		log.Info("device_switch: " + dev.Name)
		ctrl.SetDevice(dev)
		tuiSend(DeviceLineMsg{Text: deviceLineText(dev)})
	}
}
