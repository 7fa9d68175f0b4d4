// Package main provides the entry point for the cortexd CLI tool.
package main

import (
	"bufio"
	"fmt"
	"log"
	"net/http"
	nethttppprof "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/cortex-recall/cmd/cortexd/commands"
	"github.com/Sumatoshi-tech/cortex-recall/pkg/version"
)

// Memory watchdog and pprof configuration constants.
const (
	// watchdogInterval is the polling interval for the memory watchdog.
	watchdogInterval = 2 * time.Second

	// megabyte is 1 MiB in bytes, used for unit conversions.
	megabyte = 1024 * 1024

	// rssThresholdMiB is the RSS threshold in MiB above which heap dumps are triggered.
	// cortex-recall's CGO surface (libgit2, tree-sitter grammars) makes this
	// worth watching on long-running reindex jobs the same way the teacher does.
	rssThresholdMiB = 4096

	// pprofReadHeaderTimeout is the read header timeout for the pprof HTTP server.
	pprofReadHeaderTimeout = 10 * time.Second
)

var (
	verbose bool
	quiet   bool
)

// readRSSMiB reads current RSS from /proc/self/statm.
func readRSSMiB() int64 {
	f, err := os.Open("/proc/self/statm")
	if err != nil {
		return 0
	}
	defer f.Close()

	var vsize, rss int64

	_, scanErr := fmt.Fscan(f, &vsize)
	if scanErr != nil {
		return 0
	}

	_, scanErr = fmt.Fscan(f, &rss)
	if scanErr != nil {
		return 0
	}

	return rss * int64(os.Getpagesize()) / megabyte
}

// readProcField reads a named field from /proc/self/status.
func readProcField(field string) string {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if after, ok := strings.CutPrefix(line, field); ok {
			return strings.TrimSpace(after)
		}
	}

	return ""
}

// readSmapsRollup reads /proc/self/smaps_rollup for memory region summary.
func readSmapsRollup() string {
	f, err := os.Open("/proc/self/smaps_rollup")
	if err != nil {
		return ""
	}
	defer f.Close()

	var sb strings.Builder

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		for _, prefix := range []string{
			"Rss:", "Pss:", "Anonymous:", "AnonHugePages:",
			"Shared_Clean:", "Shared_Dirty:",
			"Private_Clean:", "Private_Dirty:",
		} {
			if strings.HasPrefix(line, prefix) {
				sb.WriteString(line)
				sb.WriteByte(' ')
			}
		}
	}

	return sb.String()
}

// saveProcMaps copies /proc/self/maps to a file for offline analysis.
func saveProcMaps(path string) {
	src, err := os.Open("/proc/self/maps")
	if err != nil {
		return
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return
	}
	defer dst.Close()

	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		fmt.Fprintln(dst, scanner.Text())
	}
}

// handleRSSSpike dumps heap profile and /proc/self/maps when RSS exceeds threshold.
// Returns the updated dump count.
func handleRSSSpike(dumpCount int, rssMiB int64, dumpDir string) int {
	dumpCount++

	smaps := readSmapsRollup()
	log.Printf("SPIKE #%d: RSS=%d MiB smaps: %s", dumpCount, rssMiB, smaps)

	dumpHeapProfile(dumpDir, dumpCount, rssMiB)

	if dumpCount == 1 {
		saveProcMaps(fmt.Sprintf("%s/maps_spike_%dMiB.txt", dumpDir, rssMiB))
	}

	return dumpCount
}

// dumpHeapProfile writes a heap profile to the dump directory.
func dumpHeapProfile(dumpDir string, dumpCount int, rssMiB int64) {
	path := fmt.Sprintf("%s/heap_spike_%d_%dMiB.pb.gz", dumpDir, dumpCount, rssMiB)

	out, err := os.Create(path)
	if err != nil {
		return
	}
	defer out.Close()

	writeErr := pprof.Lookup("heap").WriteTo(out, 0)
	if writeErr != nil {
		log.Printf("heap profile write error: %v", writeErr)
	}
}

// startMemoryWatchdog logs RSS/GoHeap/GoSys/threads/goroutines every tick
// and dumps a heap profile + /proc/self/maps snapshot on threshold breach.
func startMemoryWatchdog(thresholdMiB int, dumpDir string) {
	go func() {
		dumpCount := 0
		tick := 0

		tickSeconds := int(watchdogInterval / time.Second)

		for {
			time.Sleep(watchdogInterval)

			tick++

			rssMiB := readRSSMiB()
			threads := readProcField("Threads:")

			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)

			goHeapMiB := ms.HeapInuse / megabyte
			goSysMiB := ms.Sys / megabyte
			nativeMiB := rssMiB - int64(goSysMiB)
			goroutines := runtime.NumGoroutine()

			log.Printf("MEM t=%d RSS=%d GoHeap=%d GoSys=%d Native=%d threads=%s goroutines=%d",
				tick*tickSeconds, rssMiB, goHeapMiB, goSysMiB, nativeMiB, threads, goroutines)

			if rssMiB > int64(thresholdMiB) && dumpCount < 5 {
				dumpCount = handleRSSSpike(dumpCount, rssMiB, dumpDir)
			}
		}
	}()

	saveProcMaps(fmt.Sprintf("%s/maps_baseline.txt", "/tmp"))
}

// ensureMallocTunables re-execs the process with glibc malloc env vars set
// before any allocation happens, so libgit2/tree-sitter's CGO allocations
// bypass arena fragmentation under concurrent reindex load.
func ensureMallocTunables() {
	if os.Getenv("MALLOC_ARENA_MAX") != "" {
		return
	}

	exe, err := os.Executable()
	if err != nil {
		return
	}

	os.Setenv("MALLOC_ARENA_MAX", "2")
	os.Setenv("MALLOC_MMAP_THRESHOLD_", "32768")
	os.Setenv("MALLOC_TRIM_THRESHOLD_", "16384")
	os.Setenv("MALLOC_MMAP_MAX_", "65536")

	execErr := syscall.Exec(exe, os.Args, os.Environ())
	if execErr != nil {
		log.Printf("re-exec failed: %v", execErr)
	}
}

func main() {
	ensureMallocTunables()

	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", nethttppprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", nethttppprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", nethttppprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", nethttppprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", nethttppprof.Trace)
		server := &http.Server{
			Addr:              "localhost:6060",
			Handler:           mux,
			ReadHeaderTimeout: pprofReadHeaderTimeout,
		}
		log.Println(server.ListenAndServe())
	}()

	startMemoryWatchdog(rssThresholdMiB, "/tmp")

	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "cortexd",
		Short: "cortex-recall - semantic code and commit-history retrieval",
		Long: `cortexd indexes a repository's code and git history for semantic
and commit-intent retrieval, and serves the result over MCP.

Commands:
  index     Reindex a repository's code chunks and commit history
  mcp       Start the MCP tool server for AI agent integration`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(commands.NewIndexCommand())
	rootCmd.AddCommand(commands.NewMCPCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "cortexd %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
