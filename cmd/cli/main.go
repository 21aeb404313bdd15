package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/himanishpuri/AutoPianist/pkg/logger"
	"github.com/himanishpuri/AutoPianist/pkg/pianist"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/hand"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/storage"
)

// Global flags
var (
	dbPath     string
	handPath   string
	bpm        float64
	ticks      uint
	logLevel   string
	showBanner bool
)

func init() {
	flag.StringVar(&dbPath, "db", getEnvOrDefault("PIANIST_DB_PATH", storage.DefaultDBFile), "Path to the SQLite database file")
	flag.StringVar(&handPath, "hand", os.Getenv("PIANIST_HAND_CONFIG"), "YAML hand configuration (default: one finger per key of an 88-key piano)")
	flag.Float64Var(&bpm, "bpm", 120, "Tempo used for MIDI export")
	flag.UintVar(&ticks, "ticks", 960, "MIDI ticks per quarter note")
	flag.StringVar(&logLevel, "log", getEnvOrDefault("PIANIST_LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	flag.BoolVar(&showBanner, "banner", true, "Print the banner")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadHand reads the global hand file, if any.
func loadHand() (hand.Config, error) {
	if handPath == "" {
		return hand.DefaultConfig(), nil
	}
	return hand.LoadConfig(handPath)
}

// createService creates a new pianist service with configured options
func createService() (pianist.Service, error) {
	cfg, err := loadHand()
	if err != nil {
		return nil, err
	}
	return pianist.NewService(
		pianist.WithDBPath(dbPath),
		pianist.WithHandConfig(cfg),
		pianist.WithTempo(bpm),
		pianist.WithTicksPerQuarter(uint16(ticks)),
		pianist.WithLogger(logger.GetLogger().WithComponent("cli")),
	)
}

func main() {
	flag.Usage = printUsage
	flag.Parse()
	logger.SetLevel(logger.ParseLevel(logLevel))
	log := logger.GetLogger()

	if showBanner {
		printBanner()
	}

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	command, rest := args[0], args[1:]
	log.Debugf("Executing command: %s", command)

	switch command {
	case "import":
		handleImport(rest)
	case "list":
		handleList()
	case "stats":
		handleStats(rest)
	case "schedule":
		handleSchedule(rest)
	case "placements":
		handlePlacements(rest)
	case "export":
		handleExport(rest)
	case "delete":
		handleDelete(rest)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
    _         _        ____  _             _     _
   / \  _   _| |_ ___ |  _ \(_) __ _ _ __ (_)___| |_
  / _ \| | | | __/ _ \| |_) | |/ _' | '_ \| / __| __|
 / ___ \ |_| | || (_) |  __/| | (_| | | | | \__ \ |_
/_/   \_\__,_|\__\___/|_|   |_|\__,_|_| |_|_|___/\__|

        Mechanical Piano Scheduling CLI
`
	fmt.Println(banner)
}

// fail prints a user-facing message, logs the error and exits.
func fail(msg string, err error) {
	fmt.Printf("❌ %s: %v\n", msg, err)
	logger.GetLogger().Errorf("%s: %v", msg, err)
	os.Exit(1)
}

// splitArgs separates the leading positional argument from the flags that follow.
func splitArgs(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

func mustService() pianist.Service {
	svc, err := createService()
	if err != nil {
		fail("Failed to create service", err)
	}
	return svc
}

func handleImport(args []string) {
	log := logger.GetLogger()

	path, _ := splitArgs(args)
	if path == "" {
		fmt.Println("Usage: autopianist import <song.yaml>")
		os.Exit(1)
	}

	svc := mustService()
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	res, err := svc.ImportSong(ctx, path)
	if err != nil {
		fail("Failed to import song", err)
	}

	fmt.Println("\n✅ Successfully imported song!")
	fmt.Printf("   ID:    %s\n", res.SongID)
	fmt.Printf("   Title: %s\n", res.Title)
	fmt.Printf("   Notes: %d\n", res.Notes)
	if len(res.Dropped) > 0 {
		fmt.Printf("\n⚠️  Dropped %d note(s):\n", len(res.Dropped))
		for _, d := range res.Dropped {
			fmt.Printf("   %s\n", d)
		}
	}
	log.Infof("Imported %s as %s", path, res.SongID)
}

func handleList() {
	svc := mustService()
	defer svc.Close()

	songs, err := svc.ListSongs()
	if err != nil {
		fail("Failed to list songs", err)
	}
	if len(songs) == 0 {
		fmt.Println("\n📭 No songs in database")
		return
	}

	fmt.Printf("\n📚 Found %d song(s):\n\n", len(songs))
	fmt.Println(songTable(songs))
}

func handleStats(args []string) {
	id, _ := splitArgs(args)
	if id == "" {
		fmt.Println("Usage: autopianist stats <song_id>")
		os.Exit(1)
	}

	svc := mustService()
	defer svc.Close()

	song, err := svc.GetSong(id)
	if err != nil {
		fail("Song not found", err)
	}
	st, err := svc.Stats(id)
	if err != nil {
		fail("Failed to analyse song", err)
	}

	fmt.Printf("\n🎼 %s\n\n", song.Title)
	fmt.Println(statsTable(*st))
}

// scheduleFlags are shared by schedule and export.
type scheduleFlags struct {
	mode    *string
	fingers *int
	rate    *float64
	clear   *float64
}

func addScheduleFlags(fs *flag.FlagSet) scheduleFlags {
	return scheduleFlags{
		mode:    fs.String("mode", "", "Override the hand mode: full, limited or sliding"),
		fingers: fs.Int("fingers", -1, "Override the number of sliding fingers (0 sizes from the song)"),
		rate:    fs.Float64("rate", -1, "Override the travel rate in keys per millisecond"),
		clear:   fs.Float64("clearance", -1, "Override the clearance between fingers"),
	}
}

func (f scheduleFlags) config() (hand.Config, error) {
	cfg, err := loadHand()
	if err != nil {
		return cfg, err
	}
	if *f.mode != "" {
		if cfg.Mode, err = hand.ParseMode(*f.mode); err != nil {
			return cfg, err
		}
	}
	if *f.fingers >= 0 {
		cfg.Fingers = *f.fingers
	}
	if *f.rate >= 0 {
		cfg.TravelRate = *f.rate
	}
	if *f.clear >= 0 {
		cfg.Clearance = *f.clear
	}
	return cfg, cfg.Validate()
}

// signalContext is canceled on Ctrl-C so long schedules return what they have.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func handleSchedule(args []string) {
	log := logger.GetLogger()

	id, flagArgs := splitArgs(args)
	scheduleCmd := flag.NewFlagSet("schedule", flag.ExitOnError)
	sf := addScheduleFlags(scheduleCmd)
	frames := scheduleCmd.Int("frames", 0, "Print the first N command frames")
	scheduleCmd.Parse(flagArgs)

	if id == "" {
		fmt.Println("Usage: autopianist schedule <song_id> [--mode m] [--fingers n] [--rate r] [--clearance c] [--frames n]")
		os.Exit(1)
	}
	cfg, err := sf.config()
	if err != nil {
		fail("Invalid hand configuration", err)
	}

	svc := mustService()
	defer svc.Close()

	ctx, cancel := signalContext()
	defer cancel()

	sched, err := svc.Schedule(ctx, id, &cfg)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("\n⏹  Scheduling interrupted")
		}
		fail("Failed to schedule song", err)
	}

	printSchedule(sched, *frames)
	log.Infof("Scheduled %s: %d played, %d failed", id, sched.Played(), len(sched.Performance.Failures))
}

func handlePlacements(args []string) {
	id, _ := splitArgs(args)
	if id == "" {
		fmt.Println("Usage: autopianist placements <song_id>")
		os.Exit(1)
	}

	svc := mustService()
	defer svc.Close()

	layout, err := svc.Placements(id)
	if err != nil {
		fail("Failed to read placements", err)
	}
	if len(layout.Fingers) == 0 {
		fmt.Println("\n📭 Song has not been scheduled yet")
		return
	}
	fmt.Printf("\n🖐  Latest %s layout (%d fingers):\n\n", layout.Mode, len(layout.Fingers))
	fmt.Println(layoutTable(*layout))
}

func handleExport(args []string) {
	log := logger.GetLogger()

	id, flagArgs := splitArgs(args)
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	sf := addScheduleFlags(exportCmd)
	out := exportCmd.String("o", "", "Output .mid file (default: <song_id>.mid)")
	exportCmd.Parse(flagArgs)

	if id == "" {
		fmt.Println("Usage: autopianist export <song_id> [-o out.mid] [--mode m] [--fingers n]")
		os.Exit(1)
	}
	if *out == "" {
		*out = id + ".mid"
	}
	cfg, err := sf.config()
	if err != nil {
		fail("Invalid hand configuration", err)
	}

	svc := mustService()
	defer svc.Close()

	f, err := os.Create(*out)
	if err != nil {
		fail("Failed to create output file", err)
	}
	defer f.Close()

	ctx, cancel := signalContext()
	defer cancel()

	sched, err := svc.ExportMIDI(ctx, id, &cfg, f)
	if err != nil {
		f.Close()
		os.Remove(*out)
		fail("Failed to export song", err)
	}

	fmt.Printf("\n✅ Wrote %s\n", *out)
	fmt.Printf("   Notes played: %d\n", sched.Played())
	if n := len(sched.Performance.Failures); n > 0 {
		fmt.Printf("   Notes missed: %d\n", n)
	}
	log.Infof("Exported %s to %s", id, *out)
}

func handleDelete(args []string) {
	log := logger.GetLogger()

	id, _ := splitArgs(args)
	if id == "" {
		fmt.Println("Usage: autopianist delete <song_id>")
		os.Exit(1)
	}

	svc := mustService()
	defer svc.Close()

	song, err := svc.GetSong(id)
	if err != nil {
		fail("Song not found", err)
	}
	if err := svc.DeleteSong(id); err != nil {
		fail("Failed to delete song", err)
	}

	fmt.Printf("\n✅ Successfully deleted song:\n")
	fmt.Printf("   ID:    %s\n", song.ID)
	fmt.Printf("   Title: %s\n", song.Title)
	log.Infof("Deleted song %s (%q)", song.ID, song.Title)
}

func printUsage() {
	fmt.Println("AutoPianist - Mechanical Piano Scheduling CLI")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  --db <path>        Path to SQLite database (env: PIANIST_DB_PATH, default: autopianist.sqlite3)")
	fmt.Println("  --hand <file>      YAML hand configuration (env: PIANIST_HAND_CONFIG)")
	fmt.Println("  --bpm <n>          Tempo for MIDI export (default: 120)")
	fmt.Println("  --ticks <n>        MIDI ticks per quarter note (default: 960)")
	fmt.Println("  --log <level>      Log level (env: PIANIST_LOG_LEVEL, default: info)")
	fmt.Println("\nUsage:")
	fmt.Println("  autopianist [global-options] import <song.yaml>")
	fmt.Println("  autopianist [global-options] list")
	fmt.Println("  autopianist [global-options] stats <song_id>")
	fmt.Println("  autopianist [global-options] schedule <song_id> [--mode m] [--fingers n] [--rate r] [--clearance c] [--frames n]")
	fmt.Println("  autopianist [global-options] placements <song_id>")
	fmt.Println("  autopianist [global-options] export <song_id> [-o out.mid] [--mode m] [--fingers n]")
	fmt.Println("  autopianist [global-options] delete <song_id>")
	fmt.Println("\nExamples:")
	fmt.Println("  # Import a song and see how many fingers it needs")
	fmt.Println("  autopianist import minuet.yaml")
	fmt.Println("  autopianist stats 1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	fmt.Println()
	fmt.Println("  # Plan with four sliding fingers and print the first frames")
	fmt.Println("  autopianist schedule 1b4e28ba-2fa1-11d2-883f-0016d3cca427 --mode sliding --fingers 4 --rate 0.05 --clearance 0.5 --frames 20")
}
