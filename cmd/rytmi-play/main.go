//go:build cgo || darwin || windows || js

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rytmilabs/rytmi"
	"github.com/rytmilabs/rytmi/cmd"
	"github.com/rytmilabs/rytmi/engine"
	"github.com/rytmilabs/rytmi/fault"
	"github.com/rytmilabs/rytmi/gen"
	"github.com/rytmilabs/rytmi/oto"
	"github.com/rytmilabs/rytmi/rpc"
	"github.com/rytmilabs/rytmi/samples"
	"github.com/rytmilabs/rytmi/version"
)

func main() {
	stdout := flag.Bool("s", false, "Do not write files; write to standard output instead.")
	help := flag.Bool("h", false, "Show help.")
	directory := flag.String("o", "", "Directory where to output all files. The directory and its parents are created if needed. By default, everything is placed in the current working directory.")
	play := flag.Bool("p", false, "Play the input beats (default behaviour when no other output is defined).")
	live := flag.Bool("l", false, "Run the engine live instead of rendering offline: MIDI input, the level meter and the step clock work. Stop with ctrl-c.")
	generate := flag.Bool("g", false, "Treat the inputs as pattern requests (style/tempo/complexity/intensity) and generate the beats to play.")
	cycles := flag.Int("n", 4, "Number of times the step grid repeats in an offline render.")
	seed := flag.Uint64("seed", 1, "Seed for the probability draws of an offline render.")
	rawOut := flag.Bool("r", false, "Output the rendered beat as .raw file. By default, saves stereo float32 buffer to disk.")
	wavOut := flag.Bool("w", false, "Output the rendered beat as .wav file. By default, saves stereo float32 buffer to disk.")
	pcm := flag.Bool("c", false, "Convert audio to 16-bit signed PCM when outputting.")
	midiInput := flag.String("m", "", "Open the first MIDI input whose name starts with the given prefix (live mode).")
	anyMidi := flag.Bool("M", false, "Open the first MIDI input found (live mode).")
	clockTo := flag.String("a", "", "Send the step clock to a receiver at the given address (live mode).")
	versionFlag := flag.Bool("v", false, "Print version.")
	flag.Usage = printUsage
	flag.Parse()
	if *versionFlag {
		fmt.Println(version.VersionOrHash)
		os.Exit(0)
	}
	if (flag.NArg() == 0 && !*live) || *help {
		flag.Usage()
		os.Exit(0)
	}
	catalog, err := samples.NewCatalog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not load the preset catalog: %v\n", err)
		os.Exit(1)
	}
	faults := fault.NewHandler()
	loader := samples.NewLoader(catalog, faults)
	loadBeat := func(filename string) (rytmi.Beat, error) {
		inputBytes, err := os.ReadFile(filename)
		if err != nil {
			return rytmi.Beat{}, fmt.Errorf("could not read file %v: %v", filename, err)
		}
		if !*generate {
			return engine.ReadBeat(bytes.NewReader(inputBytes))
		}
		var req rytmi.PatternRequest
		if errJSON := json.Unmarshal(inputBytes, &req); errJSON != nil {
			if errYaml := yaml.Unmarshal(inputBytes, &req); errYaml != nil {
				return rytmi.Beat{}, fmt.Errorf("the request could not be parsed as .json (%v) or .yml (%v)", errJSON, errYaml)
			}
		}
		resp, err := gen.NewGenerator(catalog, faults).Generate(req)
		if err != nil {
			return rytmi.Beat{}, fmt.Errorf("could not generate a beat: %v", err)
		}
		fmt.Fprintf(os.Stderr, "%s\n", resp.Description)
		for _, variation := range resp.Variations {
			fmt.Fprintf(os.Stderr, "  try: %s\n", variation)
		}
		return rytmi.Beat{
			Tempo:      resp.Tempo,
			Quantize:   true,
			TotalSteps: rytmi.StepsPerBar,
			Tracks:     resp.Tracks,
			Master:     resp.Master,
		}, nil
	}
	if *live {
		var beat *rytmi.Beat
		if flag.NArg() > 0 {
			b, err := loadBeat(flag.Arg(0))
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", flag.Arg(0), err)
				os.Exit(1)
			}
			beat = &b
		}
		os.Exit(runLive(beat, loader, faults, *midiInput, *anyMidi, *clockTo))
	}
	if !*rawOut && !*wavOut {
		*play = true // if the user gives nothing to output, then the default behaviour is just to play the file
	}
	var audioContext rytmi.AudioContext
	var playWaiter rytmi.CloserWaiter
	if *play {
		var err error
		audioContext, err = oto.NewContext()
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not acquire oto AudioContext: %v\n", err)
			os.Exit(1)
		}
	}
	process := func(filename string) error {
		output := func(extension string, contents []byte) error {
			if *stdout {
				fmt.Print(contents)
				return nil
			}
			_, name := filepath.Split(filename)
			dir := *directory
			if dir == "" {
				var err error
				dir, err = os.Getwd()
				if err != nil {
					return fmt.Errorf("could not get working directory, specify the output directory explicitly: %v", err)
				}
			}
			name = strings.TrimSuffix(name, filepath.Ext(name)) + extension
			f := filepath.Join(dir, name)
			if err := os.MkdirAll(dir, os.ModePerm); err != nil {
				return fmt.Errorf("could not create output directory %v: %v", dir, err)
			}
			if err := os.WriteFile(f, contents, 0644); err != nil {
				return fmt.Errorf("could not write file %v: %v", f, err)
			}
			return nil
		}
		beat, err := loadBeat(filename)
		if err != nil {
			return err
		}
		buffer, err := engine.Bounce(beat, loader, faults, *cycles, *seed)
		if err != nil {
			return fmt.Errorf("engine.Bounce failed: %v", err)
		}
		if *play {
			playWaiter = audioContext.Play(buffer.Source())
		}
		if *rawOut {
			raw, err := buffer.Raw(*pcm)
			if err != nil {
				return fmt.Errorf("could not generate .raw file: %v", err)
			}
			if err := output(".raw", raw); err != nil {
				return fmt.Errorf("error outputting .raw file: %v", err)
			}
		}
		if *wavOut {
			wav, err := buffer.Wav(*pcm)
			if err != nil {
				return fmt.Errorf("could not generate .wav file: %v", err)
			}
			if err := output(".wav", wav); err != nil {
				return fmt.Errorf("error outputting .wav file: %v", err)
			}
		}
		if *play {
			playWaiter.Wait()
		}
		return nil
	}
	retval := 0
	for _, param := range flag.Args() {
		if info, err := os.Stat(param); err == nil && info.IsDir() {
			jsonfiles, err := filepath.Glob(filepath.Join(param, "*.json"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not glob the path %v for json files: %v\n", param, err)
				retval = 1
				continue
			}
			ymlfiles, err := filepath.Glob(filepath.Join(param, "*.yml"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "could not glob the path %v for yml files: %v\n", param, err)
				retval = 1
				continue
			}
			files := append(ymlfiles, jsonfiles...)
			for _, file := range files {
				if err := process(file); err != nil {
					fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", file, err)
					retval = 1
				}
			}
		} else {
			if err := process(param); err != nil {
				fmt.Fprintf(os.Stderr, "could not process file %v: %v\n", param, err)
				retval = 1
			}
		}
	}
	os.Exit(retval)
}

// runLive plays the engine in real time until interrupted: audio to the
// speakers, MIDI pads in, the peak meter once a bar, and optionally the step
// clock to a remote receiver.
func runLive(beat *rytmi.Beat, loader rytmi.SoundLoader, faults *fault.Handler, midiInput string, anyMidi bool, clockTo string) int {
	broker := engine.NewBroker()
	e := engine.NewEngine(broker, loader, faults)
	defer e.Close()
	if beat != nil {
		if err := e.InstallBeat(*beat); err != nil {
			fmt.Fprintf(os.Stderr, "could not install the beat: %v\n", err)
			return 1
		}
	}
	audioContext, err := oto.NewContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not acquire oto AudioContext: %v\n", err)
		return 1
	}
	defer audioContext.Close()
	playWaiter := audioContext.Play(e.Source())
	defer playWaiter.Close()

	midiContext := cmd.NewMidiContext(broker)
	defer midiContext.Close()
	if err := midiContext.TryToOpenBy(midiInput, anyMidi); err != nil {
		fmt.Fprintf(os.Stderr, "MIDI: %v\n", err)
	}

	var clock chan<- rpc.ClockFrame
	if clockTo != "" {
		clock, err = rpc.Sender(clockTo)
		if err != nil {
			fmt.Fprintf(os.Stderr, "could not connect the step clock: %v\n", err)
		}
	}

	sub, events := e.Subscribe(256)
	defer sub.Close()
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	e.Preload()
	e.Play()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return 0
			}
			switch ev.Kind {
			case engine.EventStep:
				if clock != nil {
					select {
					case clock <- rpc.ClockFrame{Step: ev.Step, Bar: ev.Bar, Pattern: ev.Pattern, Tempo: ev.Tempo}:
					default:
					}
				}
			case engine.EventBar:
				levels := e.Levels()
				fmt.Fprintf(os.Stderr, "\rbar %3d  L %s R %s ", ev.Bar+1, levelBar(levels[0]), levelBar(levels[1]))
			case engine.EventError:
				fmt.Fprintf(os.Stderr, "\n%s\n", ev.Err.Message)
			}
		case <-interrupt:
			fmt.Fprintln(os.Stderr)
			e.Stop()
			if clock != nil {
				close(clock)
			}
			return 0
		}
	}
}

// levelBar draws a ten segment peak meter.
func levelBar(v float32) string {
	n := int(v * 10)
	if n > 10 {
		n = 10
	}
	if n < 0 {
		n = 0
	}
	return strings.Repeat("#", n) + strings.Repeat("-", 10-n)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Rytmi command line utility for playing .yml/.json beat files.\nUsage: %s [flags] [path ...]\n", os.Args[0])
	flag.PrintDefaults()
}
