package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// defaultStats are the counters that should agree between two caches fed
// the same writes. Hit and connection counters depend on the reader.
const defaultStats = "curr_items,bytes,limit_maxbytes,evictions"

// Stats maps a stat name to its value
type Stats map[string]int64

var statRegex = regexp.MustCompile(`^STAT (\S+) (-?\d+)$`)

func main() {
	var refAddr = flag.String("ref", "", "Reference cache endpoint (host:port)")
	var sutAddr = flag.String("sut", "", "System under test cache endpoint (host:port)")
	var statsFlag = flag.String("stats", defaultStats, "Comma-separated list of stats to compare, or 'all'")
	var helpFlag = flag.Bool("help", false, "Show help message")

	flag.Parse()

	if *helpFlag || *refAddr == "" || *sutAddr == "" {
		fmt.Println("Cache Stats Comparison Tool")
		fmt.Println("===========================")
		fmt.Println("Usage: stats-diff --ref=host:port --sut=host:port [--stats=curr_items,bytes]")
		fmt.Println("")
		fmt.Println("Flags:")
		fmt.Println("  --ref     Reference endpoint (e.g., localhost:8080)")
		fmt.Println("  --sut     System under test endpoint (e.g., localhost:8081)")
		fmt.Println("  --stats   Stats to compare (default: " + defaultStats + ")")
		fmt.Println("  --help    Show this help message")
		os.Exit(0)
	}

	var filter map[string]bool
	if *statsFlag != "all" {
		filter = make(map[string]bool)
		for _, name := range strings.Split(*statsFlag, ",") {
			if name = strings.TrimSpace(name); name != "" {
				filter[name] = true
			}
		}
	}

	fmt.Printf("Comparing stats:\n")
	fmt.Printf("  Reference: %s\n", *refAddr)
	fmt.Printf("  System:    %s\n", *sutAddr)
	fmt.Println()

	refStats, err := fetchStats(*refAddr)
	if err != nil {
		log.Fatalf("Failed to get stats from reference %s: %v", *refAddr, err)
	}

	sutStats, err := fetchStats(*sutAddr)
	if err != nil {
		log.Fatalf("Failed to get stats from system %s: %v", *sutAddr, err)
	}

	if differences := compareStats(os.Stdout, refStats, sutStats, filter); differences > 0 {
		os.Exit(1)
	}
}

// fetchStats sends the stats command and reads lines up to END
func fetchStats(addr string) (Stats, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Write([]byte("stats\r\n")); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	return parseStats(bufio.NewReader(conn))
}

// parseStats reads STAT lines until END
func parseStats(r *bufio.Reader) (Stats, error) {
	stats := make(Stats)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "END" {
			return stats, nil
		}
		if strings.HasPrefix(line, "SERVER_ERROR") || strings.HasPrefix(line, "CLIENT_ERROR") {
			return nil, fmt.Errorf("server replied: %s", line)
		}

		matches := statRegex.FindStringSubmatch(line)
		if matches == nil {
			return nil, fmt.Errorf("unexpected line: %q", line)
		}
		value, _ := strconv.ParseInt(matches[2], 10, 64)
		stats[matches[1]] = value
	}
}

// compareStats prints a report and returns the number of differences
func compareStats(w io.Writer, ref, sut Stats, filter map[string]bool) int {
	names := make(map[string]bool)
	for name := range ref {
		if filter == nil || filter[name] {
			names[name] = true
		}
	}
	for name := range sut {
		if filter == nil || filter[name] {
			names[name] = true
		}
	}
	for name := range filter {
		names[name] = true
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	fmt.Fprintln(w, "Stats Comparison Results:")
	fmt.Fprintln(w, "=========================")

	differences := 0
	for _, name := range sorted {
		refValue, refExists := ref[name]
		sutValue, sutExists := sut[name]

		switch {
		case !refExists && !sutExists:
			fmt.Fprintf(w, "  ⚠️  %s: missing on both sides\n", name)
		case !refExists:
			fmt.Fprintf(w, "  ❌ %s: missing in REFERENCE, SYSTEM=%d\n", name, sutValue)
			differences++
		case !sutExists:
			fmt.Fprintf(w, "  ❌ %s: missing in SYSTEM, REFERENCE=%d\n", name, refValue)
			differences++
		case refValue != sutValue:
			fmt.Fprintf(w, "  ❌ %s differs: REF=%d, SUT=%d\n", name, refValue, sutValue)
			differences++
		default:
			fmt.Fprintf(w, "  ✅ %s: %d\n", name, refValue)
		}
	}

	fmt.Fprintln(w)
	if differences == 0 {
		fmt.Fprintln(w, "🎉 SUCCESS: No differences found!")
	} else {
		fmt.Fprintf(w, "❌ FAILURE: %d differences found\n", differences)
	}
	return differences
}
