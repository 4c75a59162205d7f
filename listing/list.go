// Package listing reads the labelled input lists consumed by the loader.
//
// Each line has the form "<source> <label>". The label is taken after the
// last space, so sources may themselves contain spaces.
package listing

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/poiesic/datumload/core"
)

const separator = " "

// ReadList reads and parses a list file.
func ReadList(path string) ([]core.Item, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	items, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return items, nil
}

// Parse reads every non-blank line of r as an Item.
func Parse(r io.Reader) ([]core.Item, error) {
	var items []core.Item
	var scanErr error
	for line := range lines(r, &scanErr) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		items = append(items, ParseLine(line))
	}
	return items, scanErr
}

// lines returns an iterator over the lines of r. Scanner errors are stored in errp.
func lines(r io.Reader, errp *error) iter.Seq[string] {
	return func(yield func(string) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			if !yield(strings.TrimRight(scanner.Text(), "\r")) {
				return
			}
		}
		*errp = scanner.Err()
	}
}

// ParseLine splits a line at its last space. A line without a space is all
// source with label 0. Labels parse like C atoi: a leading integer prefix,
// anything unparseable yields 0.
func ParseLine(line string) core.Item {
	pos := strings.LastIndex(line, separator)
	if pos < 0 {
		return core.Item{Source: line}
	}
	return core.Item{
		Source: line[:pos],
		Label:  parseLabel(line[pos+1:]),
	}
}

func parseLabel(s string) int {
	s = strings.TrimLeft(s, " \t")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// Shuffle permutes items in place using a PCG source seeded with seed.
func Shuffle(items []core.Item, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
}
