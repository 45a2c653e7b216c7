// Package migrations embeds the SQL schema migrations and validates them at
// startup. Embedding gives zero-config deployment: the migrator binary and the
// integration-test harness both read the same files, with no path assumptions.
package migrations

import (
	"crypto/sha256"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strconv"
)

//go:embed *.sql
var files embed.FS

// Migration filename standard: 001_name.up.sql / 001_name.down.sql.
var filenameRegex = regexp.MustCompile(`^(\d{3})_([a-zA-Z0-9_]+)\.(up|down)\.sql$`)

// Info is the parsed identity of one migration file.
type Info struct {
	Sequence  int
	Name      string
	Direction string // "up" or "down"
	Filename  string
	Checksum  string
}

// FS returns the embedded migration filesystem, for golang-migrate's iofs
// source driver.
func FS() embed.FS {
	return files
}

// List returns the embedded migration filenames that conform to the naming
// standard, sorted. Nonconforming names are an error rather than silently
// skipped, so a typo cannot drop a migration from the sequence.
func List() ([]string, error) {
	entries, err := fs.ReadDir(files, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	names := make([]string, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		if !filenameRegex.MatchString(entry.Name()) {
			return nil, fmt.Errorf("migration filename %q does not match NNN_name.(up|down).sql", entry.Name())
		}

		names = append(names, entry.Name())
	}

	sort.Strings(names)

	return names, nil
}

// Parse extracts sequence, name and direction from a migration filename and
// computes its content checksum.
func Parse(filename string) (*Info, error) {
	match := filenameRegex.FindStringSubmatch(filename)
	if match == nil {
		return nil, fmt.Errorf("invalid migration filename: %s", filename)
	}

	sequence, err := strconv.Atoi(match[1])
	if err != nil {
		return nil, fmt.Errorf("invalid sequence in %s: %w", filename, err)
	}

	content, err := files.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}

	return &Info{
		Sequence:  sequence,
		Name:      match[2],
		Direction: match[3],
		Filename:  filename,
		Checksum:  fmt.Sprintf("%x", sha256.Sum256(content)),
	}, nil
}

// Validate checks the embedded set before any state-changing operation:
// every up has a matching down, sequences start at 1 with no gaps, and no
// file is empty.
func Validate() error {
	names, err := List()
	if err != nil {
		return err
	}

	if len(names) == 0 {
		return fmt.Errorf("no embedded migrations found")
	}

	ups := make(map[int]*Info)
	downs := make(map[int]*Info)

	for _, name := range names {
		info, err := Parse(name)
		if err != nil {
			return err
		}

		content, err := files.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}

		if len(content) == 0 {
			return fmt.Errorf("migration %s is empty", name)
		}

		switch info.Direction {
		case "up":
			if prev, dup := ups[info.Sequence]; dup {
				return fmt.Errorf("duplicate sequence %03d: %s and %s", info.Sequence, prev.Filename, name)
			}

			ups[info.Sequence] = info
		case "down":
			if prev, dup := downs[info.Sequence]; dup {
				return fmt.Errorf("duplicate sequence %03d: %s and %s", info.Sequence, prev.Filename, name)
			}

			downs[info.Sequence] = info
		}
	}

	for seq, up := range ups {
		down, ok := downs[seq]
		if !ok {
			return fmt.Errorf("migration %s has no matching down migration", up.Filename)
		}

		if up.Name != down.Name {
			return fmt.Errorf("migration pair %03d has mismatched names: %s vs %s", seq, up.Name, down.Name)
		}
	}

	for seq := range downs {
		if _, ok := ups[seq]; !ok {
			return fmt.Errorf("migration %s has no matching up migration", downs[seq].Filename)
		}
	}

	for seq := 1; seq <= len(ups); seq++ {
		if _, ok := ups[seq]; !ok {
			return fmt.Errorf("migration sequence has a gap at %03d", seq)
		}
	}

	return nil
}

// MaxVersion returns the highest migration sequence embedded in this binary.
func MaxVersion() int {
	names, err := List()
	if err != nil {
		return 0
	}

	maxSeq := 0

	for _, name := range names {
		if info, err := Parse(name); err == nil && info.Sequence > maxSeq {
			maxSeq = info.Sequence
		}
	}

	return maxSeq
}
