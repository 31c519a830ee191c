package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/probelab/sigmadaq"
	"github.com/probelab/sigmadaq/internal/capturedb"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

var githash = "githash not computed"
var gitdate = "git date not computed"
var buildDate = "build date not computed"

// makeFileExist checks that dir/filename exists, and creates the directory
// and file if it doesn't.
func makeFileExist(dir, filename string) (string, error) {
	// Replace 1 instance of "$HOME" in the path with the actual home directory.
	if strings.Contains(dir, "$HOME") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = strings.Replace(dir, "$HOME", home, 1)
	}

	// Create directory <path>, if needed
	if _, err := os.Stat(dir); err != nil {
		if !os.IsNotExist(err) {
			return "", err
		}
		err2 := os.MkdirAll(dir, 0775)
		if err2 != nil {
			return "", err2
		}
	}

	// Create an empty file path/filename, if it doesn't exist.
	fullname := path.Join(dir, filename)
	_, err := os.Stat(fullname)
	if os.IsNotExist(err) {
		f, err2 := os.OpenFile(fullname, os.O_WRONLY|os.O_CREATE, 0664)
		if err2 != nil {
			return "", err2
		}
		f.Close()
	}
	return fullname, nil
}

// setupViper sets up the viper configuration manager: says where to find config
// files and the filename and suffix. Sets some defaults.
func setupViper() error {
	viper.SetDefault("Verbose", false)

	HOME, err := os.UserHomeDir()
	if err != nil { // Handle errors reading the config file
		fmt.Printf("Error finding User Home Dir: %s\n", err)
	}
	dotSigmadaq := filepath.Join(HOME, ".sigmadaq")
	const filename string = "config"
	const suffix string = ".yaml"
	if _, err := makeFileExist(dotSigmadaq, filename+suffix); err != nil {
		return err
	}

	viper.SetConfigName(filename)
	viper.AddConfigPath(filepath.FromSlash("/etc/sigmadaq"))
	viper.AddConfigPath(dotSigmadaq)
	viper.AddConfigPath(".")
	err = viper.ReadInConfig() // Find and read the config file
	if err != nil {            // Handle errors reading the config file
		return fmt.Errorf("error reading config file: %s", err)
	}
	return nil
}

func startLogger(pfname string) *log.Logger {
	probFile, err := os.OpenFile(pfname, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		msg := fmt.Sprintf("Could not open log file '%s'", pfname)
		panic(msg)
	}
	probLogger := log.New(probFile, "", log.LstdFlags)
	probLogger.SetOutput(&lumberjack.Logger{
		Filename:   pfname,
		MaxSize:    10,   // megabytes after which new file is created
		MaxBackups: 4,    // number of backups
		MaxAge:     180,  // days
		Compress:   true, // whether to gzip the backups
	})
	return probLogger
}

func main() {
	buildDate = strings.Replace(buildDate, ".", " ", -1) // workaround for Make problems
	sigmadaq.Build.Date = buildDate
	sigmadaq.Build.Githash = githash
	sigmadaq.Build.Gitdate = gitdate
	sigmadaq.Build.Summary = fmt.Sprintf("SIGMADAQ version %s (git commit %s of %s)", sigmadaq.Build.Version, githash, gitdate)
	if host, err := os.Hostname(); err == nil {
		sigmadaq.Build.Host = host
	} else {
		sigmadaq.Build.Host = "host not detected"
	}

	printVersion := flag.Bool("version", false, "print version and quit")
	cpuprofile := flag.String("cpuprofile", "", "write CPU profile to given file")
	memprofile := flag.String("memprofile", "", "write memory profile to given file")
	nodb := flag.Bool("nodb", false, "do not journal captures to ClickHouse")
	pingdb := flag.Bool("pingdb", false, "check the ClickHouse server and quit")
	flag.Parse()
	quitImmediately := false

	if *printVersion {
		fmt.Printf("This is SIGMADAQ version %s\n", sigmadaq.Build.Version)
		fmt.Printf("Git commit hash: %s\n", githash)
		fmt.Printf("Build time: %s\n", buildDate)
		fmt.Printf("Built on go version %s\n", runtime.Version())
		fmt.Printf("Running on %d CPUs.\n", runtime.NumCPU())
		quitImmediately = true
	}
	if *pingdb {
		if err := capturedb.PingServer(); err != nil {
			fmt.Printf("Could not ping the ClickHouse server: %s\n", err)
		}
		quitImmediately = true
	}

	if quitImmediately {
		os.Exit(0)
	}

	banner := fmt.Sprintf("\nThis is SIGMADAQ version %s (git commit %s)\n", sigmadaq.Build.Version, githash)
	fmt.Print(banner)

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	// Start logging problems and updates to 2 log files.
	HOME, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}
	logdir := filepath.Join(HOME, ".sigmadaq", "logs")
	problemname, err := makeFileExist(logdir, "problems.log")
	if err != nil {
		panic(err)
	}
	logname, err := makeFileExist(logdir, "updates.log")
	if err != nil {
		panic(err)
	}
	sigmadaq.ProblemLogger = startLogger(problemname)
	sigmadaq.UpdateLogger = startLogger(logname)
	fmt.Printf("Logging problems       to %s\n", problemname)
	fmt.Printf("Logging client updates to %s\n\n", logname)
	sigmadaq.UpdateLogger.Printf("\n\n\n\n%s", banner)

	// Find config file, creating it if needed, and read it.
	if err := setupViper(); err != nil {
		panic(err)
	}

	abort := make(chan struct{})

	journal := capturedb.DummyJournal()
	if !*nodb {
		journal = capturedb.StartJournal(capturedb.NewActivityMessage(), abort)
		if !journal.IsConnected() {
			fmt.Println("No ClickHouse server reachable; captures will not be journaled.")
		}
	}

	// No USB stack here: the daemon drives the simulated analyzer. The
	// registry still vets its identity the way a bus walk would.
	registry := sigmadaq.NewRegistry()
	simID := sigmadaq.SimIdentity()
	id, err := registry.Identify(simID.VID, simID.PID, simID.Serial)
	if err != nil {
		panic(err)
	}
	loop := sigmadaq.NewPollLoop(0)
	dev := sigmadaq.NewSimDevice(0)
	src := sigmadaq.NewSigmaSource(id, dev, loop, dev)
	src.RestoreConfig()
	dev.SetRate(src.SampleRate())
	if err := src.SetJournal(journal); err != nil {
		panic(err)
	}

	updates := make(chan sigmadaq.StatusUpdate, 10)
	src.SetStatusSink(updates)

	var grp errgroup.Group
	grp.Go(func() error {
		return sigmadaq.RunStatusPublisher(updates, sigmadaq.Ports.Status, abort)
	})
	grp.Go(func() error {
		return sigmadaq.PublishBlocks(src.Blocks(), sigmadaq.Ports.Samples, abort)
	})
	go loop.Run()
	defer loop.Stop()

	if err := src.Arm(); err != nil {
		panic(err)
	}
	fmt.Printf("Capturing from %s at %d samples/sec.\n", id.Serial, src.SampleRate())
	fmt.Printf("Publishing status on port %d and samples on port %d.\n",
		sigmadaq.Ports.Status, sigmadaq.Ports.Samples)
	fmt.Println("Ctrl-C to stop.")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	fmt.Println("\nStopping capture.")
	if err := src.Stop(); err != nil {
		sigmadaq.ProblemLogger.Printf("stop failed: %v", err)
	}
	for i := 0; src.Running() && i < 100; i++ {
		time.Sleep(10 * time.Millisecond)
	}
	close(abort)
	if err := grp.Wait(); err != nil {
		sigmadaq.ProblemLogger.Printf("publisher exited: %v", err)
	}
	writeMemoryProfile(memprofile)
}

// writeMemoryProfile writes the memory use profile to the indicated file.
// If `memprofile` points to an empty string, do not write.
func writeMemoryProfile(memprofile *string) {
	if *memprofile == "" {
		return
	}

	f, err := os.Create(*memprofile)
	if err != nil {
		log.Fatal("could not create memory profile: ", err)
	}
	defer f.Close() // error handling omitted for example
	runtime.GC()    // get up-to-date statistics
	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Fatal("could not write memory profile: ", err)
	}
}
