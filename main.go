package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"frontdesk/audio"
	"frontdesk/chat"
	"frontdesk/config"
	"frontdesk/log"
	"frontdesk/playback"
	"frontdesk/shutdown"
	"frontdesk/voice"
)

var version = "dev"

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("panic: %v\n%s", r, debug.Stack())
			log.Close()
			panic(r)
		}
	}()
	run()
}

func run() {
	profileFlag := flag.String("profile", "frontdesk.yaml", "Business profile file")
	voiceFlag := flag.String("voice", voice.DefaultVoice, "Synthesized voice identity")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	setupFlag := flag.Bool("setup", false, "Select microphone device interactively")
	recordFlag := flag.String("record", "", "Record calls as FLAC into this directory")
	textFlag := flag.Bool("text", false, "Text chat mode (no audio)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("frontdesk %s\n", version)
		return
	}

	logDir, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving log path: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logDir)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	profile, err := config.Load(*profileFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	apiKey := os.Getenv("FRONTDESK_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: set FRONTDESK_API_KEY (or GEMINI_API_KEY)")
		os.Exit(1)
	}

	if *textFlag {
		runTextChat(apiKey, profile)
		return
	}

	audioCtx, err := audio.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: audio unavailable: %v\nUse -text for text chat.\n", err)
		os.Exit(1)
	}
	defer audioCtx.Close()

	deviceName := *deviceFlag
	var device *audio.DeviceInfo
	if *setupFlag || deviceName != "" {
		device, err = pickMicrophone(audioCtx, deviceName)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	output, err := playback.NewOutput()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: audio output unavailable: %v\n", err)
		os.Exit(1)
	}
	defer output.Close()

	service := voice.NewLive(apiKey)
	log.SessionStart(service.Name(), voice.DefaultModel)

	commands := make(chan uiCommand, 4)

	var sink EventSink = nopSink{}
	if *tuiFlag {
		sink = tuiSink{}
	}

	ctrl := NewController(CallConfig{
		Profile:   profile,
		Service:   service,
		Voice:     *voiceFlag,
		AudioCtx:  audioCtx,
		Device:    device,
		Output:    output,
		RecordDir: *recordFlag,
		Sink:      sink,
	})

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)

	calls := 0
	loop := func() {
		for {
			select {
			case cmd := <-commands:
				switch cmd {
				case cmdToggleCall:
					if ctrl.Connected() {
						ctrl.Stop()
					} else {
						calls++
						go ctrl.Start(context.Background())
					}
				case cmdQuit:
					ctrl.Stop()
					log.SessionEnd(calls)
					return
				}
			case <-sigChan:
				ctrl.Stop()
				log.SessionEnd(calls)
				return
			}
		}
	}

	if *tuiFlag {
		p := NewTUIProgram(commands)
		go func() {
			tuiSend(ModeLineMsg{Text: modeLineText(profile, *voiceFlag)})
			tuiSend(DeviceLineMsg{Text: deviceLineText(device)})
			loop()
			p.Quit()
		}()
		if _, err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Headless: answer immediately, hang up on signal.
	fmt.Printf("frontdesk %s — %s\n", version, profile.Name)
	calls++
	if err := ctrl.Start(context.Background()); err != nil {
		os.Exit(1)
	}
	<-sigChan
	ctrl.Stop()
	log.SessionEnd(calls)
}

func modeLineText(profile *config.BusinessProfile, voiceName string) string {
	grounding := "no web search"
	if profile.GroundingEnabled() {
		grounding = "web search"
	}
	return fmt.Sprintf("[%s | voice %s | %s]", profile.Trade, voiceName, grounding)
}

func deviceLineText(device *audio.DeviceInfo) string {
	if device == nil {
		return "mic: system default"
	}
	name := device.Name
	if audio.IsBluetooth(name) {
		name += " (bluetooth)"
	}
	return "mic: " + name
}

// runTextChat is the fallback for machines without working audio: the same
// business profile drives a line-oriented conversation on stdin.
func runTextChat(apiKey string, profile *config.BusinessProfile) {
	conv := chat.NewConversation(apiKey, profile.SystemInstruction(), profile.GroundingEnabled())

	fmt.Printf("frontdesk %s — %s (text mode, Ctrl+D to exit)\n\n", version, profile.Name)
	fmt.Printf("  %s\n\n", profile.Greeting())
	log.Transcript("assistant", profile.Greeting())

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		log.Transcript("user", text)

		start := time.Now()
		reply, err := conv.SendWithTimeout(text)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  error: %v\n", err)
			log.Errorf("chat send failed: %v", err)
			continue
		}
		log.Transcript("assistant", reply.Text)

		fmt.Printf("\n  %s\n", reply.Text)
		for _, c := range reply.Citations {
			fmt.Printf("    · %s\n", c.URL)
		}
		fmt.Printf("  (%.1fs)\n\n", time.Since(start).Seconds())
	}
	fmt.Println()
}
