// Command main is a profiling harness: it encodes and decodes a
// representative record in a loop while serving net/http/pprof, then
// writes a heap profile.
package main

import (
	"flag"
	"log/slog"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/rawbytedev/fieldwire"
	_ "github.com/rawbytedev/fieldwire/hooks"
)

type sample struct {
	Version uint8             `wire:"bits_start=0xf0"`
	Flags   uint8             `wire:"bits=0x0f"`
	Names   []string          `wire:"count=4"`
	Values  []int16           `wire:"byte_count=2"`
	Ratios  []float64         `wire:"byte_count=2"`
	Attrs   map[string]string `wire:"split='=',linend=';',byte_count=2"`
	Blob    []byte            `wire:"with=zstd,byte_count=4"`
}

func main() {
	var (
		addr     = flag.String("addr", "localhost:6060", "pprof listen address")
		out      = flag.String("memprofile", "mem.prof", "heap profile output")
		n        = flag.Int("n", 10000, "encode/decode iterations")
		borrow   = flag.Bool("borrow", false, "decode without copying")
		linger   = flag.Duration("linger", 0, "keep serving pprof after the run")
		logDebug = flag.Bool("v", false, "log codec debug records")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *logDebug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	go func() {
		logger.Error("pprof server stopped", "err", http.ListenAndServe(*addr, nil))
	}()

	f, err := os.Create(*out)
	if err != nil {
		logger.Error("create profile", "err", err)
		os.Exit(1)
	}
	defer f.Close()
	runtime.MemProfileRate = 1

	cd := fieldwire.New(fieldwire.Options{Logger: logger})
	z := sample{
		Version: 1,
		Flags:   2,
		Names:   []string{"azerty", "hello", "world", "random"},
		Values:  []int16{100, 250, 300},
		Ratios:  []float64{100.5, 165.63, 153.5},
		Attrs:   map[string]string{"host": "example", "mode": "bench"},
		Blob:    make([]byte, 4096),
	}
	decode := cd.Decode
	if *borrow {
		decode = cd.BorrowDecode
	}

	start := time.Now()
	var size int
	for i := 0; i < *n; i++ {
		data, err := cd.Encode(z)
		if err != nil {
			logger.Error("encode", "err", err)
			os.Exit(1)
		}
		size = len(data)
		var res sample
		if _, err := decode(data, &res); err != nil {
			logger.Error("decode", "err", err)
			os.Exit(1)
		}
	}
	logger.Info("run complete", "iterations", *n, "bytes", size, "elapsed", time.Since(start))

	if err := pprof.WriteHeapProfile(f); err != nil {
		logger.Error("write profile", "err", err)
		os.Exit(1)
	}
	if *linger > 0 {
		time.Sleep(*linger)
	}
}
