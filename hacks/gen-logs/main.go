// Command gen-logs writes a directory of synthetic laser logs in the
// production format, for exercising the analyzer by hand.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"
)

const timestampLayout = "Mon, 02 Jan 2006 15:04:05"

var users = []struct {
	id   int
	name string
}{
	{7, "bob"},
	{42, "alice"},
	{103, "mallory"},
}

func main() {
	dir := flag.String("dir", "logs", "Output directory")
	files := flag.Int("files", 3, "Number of log files to write")
	sessions := flag.Int("sessions", 10, "Sessions per file")
	seed := flag.Int64("seed", 1, "RNG seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	if err := os.MkdirAll(*dir, 0o755); err != nil {
		log.Fatalf("create output dir: %v", err)
	}

	now := time.Now().UTC().Add(-30 * 24 * time.Hour).Truncate(time.Second)
	for i := range *files {
		path := filepath.Join(*dir, fmt.Sprintf("laser-%03d.log", i))
		f, err := os.Create(path)
		if err != nil {
			log.Fatalf("create %s: %v", path, err)
		}

		for range *sessions {
			u := users[rng.Intn(len(users))]
			now = now.Add(time.Duration(rng.Intn(3600)) * time.Second)
			line(f, now, "laser:mmp",
				fmt.Sprintf("Got MMP event: { userId: %d, username: '%s', cardId: %d }", u.id, u.name, rng.Intn(1<<16)))
			now = now.Add(time.Duration(1+rng.Intn(60)) * time.Second)
			line(f, now, "laser:control", "Laser started")
			now = now.Add(time.Duration(30+rng.Intn(1200)) * time.Second)
			line(f, now, "laser:control", "Laser shutdown")

			// Sprinkle in the noise the analyzer has to skip.
			if rng.Intn(4) == 0 {
				line(f, now, "laser:web", "New event from laser laserShutdown")
				fmt.Fprintln(f, "    at Object.<anonymous> (/app/index.js:5:3)")
			}
		}

		if err := f.Close(); err != nil {
			log.Fatalf("close %s: %v", path, err)
		}
		fmt.Printf("wrote %s\n", path)
	}
}

func line(f *os.File, ts time.Time, channel, message string) {
	fmt.Fprintf(f, "%s GMT %s %s\n", ts.Format(timestampLayout), channel, message)
}
