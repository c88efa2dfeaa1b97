// Command mri-serve runs the debug monitor against platform/loopback,
// a non-hardware target, so a real GDB client can attach over TCP, a
// serial port, or a raw TTY without any physical board present.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	mri "github.com/ehrlich-b/go-mri"
	"github.com/ehrlich-b/go-mri/internal/logging"
	"github.com/ehrlich-b/go-mri/internal/platform"
	"github.com/ehrlich-b/go-mri/platform/loopback"
)

func main() {
	var (
		tcpAddr   = flag.String("tcp", "", "listen for one GDB client on this TCP address, e.g. :2331")
		serial    = flag.String("serial", "", "talk to GDB over this serial port, e.g. /dev/ttyUSB0")
		tty       = flag.String("tty", "", "talk to GDB over this raw tty device, e.g. /dev/ttyACM0")
		baud      = flag.Int("baud", 115200, "baud rate for -serial")
		memSize   = flag.Int("mem", 1<<20, "size in bytes of the loopback target's RAM")
		verbose   = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	comm, closeComm, err := dialComm(*tcpAddr, *serial, *tty, *baud)
	if err != nil {
		logger.Error("failed to open comm channel", "error", err)
		os.Exit(1)
	}
	defer closeComm()

	target := loopback.NewPlatform(*memSize, comm)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fmt.Printf("Send SIGUSR1 (kill -USR1 %d) to dump goroutine stacks\n", os.Getpid())
	stackDumpCh := make(chan os.Signal, 1)
	signal.Notify(stackDumpCh, syscall.SIGUSR1)
	go dumpStacksOnSignal(stackDumpCh, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	monitor := mri.New(target, mri.Options{
		Logger:  logger,
		Context: ctx,
	})

	logger.Info("loopback target ready", "mem_bytes", *memSize)
	if err := monitor.DebugException(ctx); err != nil {
		logger.Error("debug session ended", "error", err)
		os.Exit(1)
	}
	logger.Info("debug session complete")
}

// dumpStacksOnSignal writes every goroutine's stack to stderr and to a
// timestamped file on each received signal (normally SIGUSR1) — useful
// for diagnosing a session stuck in Packet.Get/Send on a wedged comm
// link, where the monitor itself gives no other sign of life.
func dumpStacksOnSignal(sigCh <-chan os.Signal, logger *logging.Logger) {
	for range sigCh {
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		fmt.Fprintf(os.Stderr, "\n=== GOROUTINE STACK DUMP ===\n%s=== END STACK DUMP ===\n\n", buf[:n])

		filename := fmt.Sprintf("mri-serve-stacks-%d.txt", time.Now().Unix())
		f, err := os.Create(filename)
		if err != nil {
			logger.Warn("failed to write stack dump to file", "error", err)
			continue
		}
		fmt.Fprintf(f, "Goroutine stack dump at %s\nProcess ID: %d\n\n", time.Now().Format(time.RFC3339), os.Getpid())
		f.Write(buf[:n])
		f.Close()
		logger.Info("stack trace written to file", "file", filename)
	}
}

func dialComm(tcpAddr, serialPort, ttyPath string, baud int) (platform.Comm, func(), error) {
	switch {
	case tcpAddr != "":
		c, err := loopback.ListenAndAcceptTCP(tcpAddr)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { c.Close() }, nil
	case serialPort != "":
		c, err := loopback.NewSerialComm(serialPort, baud)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { c.Close() }, nil
	case ttyPath != "":
		c, err := loopback.NewTTYComm(ttyPath)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { c.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("one of -tcp, -serial, or -tty is required")
	}
}
