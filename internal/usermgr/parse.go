package usermgr

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hnrobert/authsep/internal/hostfs"
)

type parsedFile[T any] struct {
	items []*T
}

func (pf *parsedFile[T]) entries() []*T {
	return pf.items
}

// loadFile reads path and hands every non-comment line to parse. A nil entry
// from parse means the line is skipped.
func loadFile[T any](path string, parse func(parts []string) (*T, error)) (parsedFile[T], error) {
	var pf parsedFile[T]
	b, err := hostfs.ReadFile(path)
	if err != nil {
		return pf, err
	}
	lines, err := readLines(bytes.NewReader(b))
	if err != nil {
		return pf, err
	}
	for _, line := range lines {
		trim := strings.TrimSpace(line)
		if trim == "" || strings.HasPrefix(trim, "#") {
			continue
		}
		e, err := parse(parseColonLine(line))
		if err != nil {
			return pf, fmt.Errorf("%s: %w", path, err)
		}
		if e != nil {
			pf.items = append(pf.items, e)
		}
	}
	return pf, nil
}

func parseColonLine(line string) []string {
	// Keep trailing empty fields.
	return strings.Split(line, ":")
}

func readLines(r io.Reader) ([]string, error) {
	s := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	s.Buffer(buf, 1024*1024)
	var lines []string
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func atoi(field, ctx string) (int, error) {
	n, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("invalid int %q in %s: %w", field, ctx, err)
	}
	return n, nil
}
