// Command ctylookup resolves callsigns against a cty.plist prefix database.
// With arguments it resolves each one and exits; without, it reads callsigns
// interactively. A missing database file is downloaded first.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"wspranalytics/config"
	"wspranalytics/cty"
)

func lookupOne(db *cty.Database, call string) {
	call = strings.ToUpper(strings.TrimSpace(call))
	info, ok := db.LookupPortable(call)
	if !ok {
		fmt.Printf("%s -> no matching prefix\n", call)
		return
	}
	line := fmt.Sprintf("%s -> prefix=%s, country=%s", call, info.Prefix, info.Country)
	if info.CQZone > 0 || info.ITUZone > 0 {
		line += fmt.Sprintf(", CQ=%d, ITU=%d", info.CQZone, info.ITUZone)
	}
	if info.Latitude != 0 || info.Longitude != 0 {
		line += fmt.Sprintf(", lat=%.2f, lon=%.2f", info.Latitude, info.Longitude)
		if grid, ok := cty.Grid4FromLatLon(info.Latitude, info.Longitude); ok {
			line += ", grid=" + grid
		}
	}
	fmt.Println(line)
}

func main() {
	def := config.Default()
	dataPath := flag.String("data", def.CTY.Path, "path to cty.plist")
	url := flag.String("url", def.CTY.URL, "download URL used when the file is missing")
	showStats := flag.Bool("stats", false, "print lookup metrics before exiting")
	flag.Parse()

	timeout := time.Duration(def.CTY.TimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), timeout+30*time.Second)
	db, err := cty.Ensure(ctx, cty.FetchOptions{
		Path:      *dataPath,
		URL:       *url,
		Timeout:   timeout,
		UserAgent: def.Fetch.UserAgent,
	})
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading prefix database: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("loaded %d prefix entries from %s\n", db.Len(), *dataPath)

	if args := flag.Args(); len(args) > 0 {
		for _, call := range args {
			lookupOne(db, call)
		}
	} else {
		fmt.Println("enter callsigns (Ctrl+C to quit)")
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				break
			}
			call := strings.TrimSpace(scanner.Text())
			if call == "" {
				continue
			}
			lookupOne(db, call)
		}
		if err := scanner.Err(); err != nil {
			fmt.Fprintf(os.Stderr, "input error: %v\n", err)
		}
	}

	if *showStats {
		m := db.Metrics()
		fmt.Printf("lookups=%d resolved=%d unknown=%d cache_hits=%d cache_entries=%d\n",
			m.TotalLookups, m.Resolved, m.Unknown, m.CacheHits, m.CacheEntries)
	}
}
