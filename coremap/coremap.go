package coremap

import (
	"bufio"
	"fmt"
	"io"
	"sort"
)

// Unresolved is the character written for pages without a core.
const Unresolved = '/'

// A CoreMap holds, per set-index, the core of every page.
type CoreMap struct {
	npages     int
	setIndices []int
	rows       [][]int
}

// NewCoreMap creates an empty map over npages pages.
func NewCoreMap(npages int) *CoreMap {
	return &CoreMap{npages: npages}
}

// NumPages returns the number of pages per set-index.
func (m *CoreMap) NumPages() int {
	return m.npages
}

// SetIndices returns the set-indices in the map, in order of addition.
func (m *CoreMap) SetIndices() []int {
	return append([]int(nil), m.setIndices...)
}

// Add appends the row of set-index si. Entries below zero are unresolved.
func (m *CoreMap) Add(si int, pages []int) {
	if len(pages) != m.npages {
		panic(fmt.Sprintf("row of %d pages in a map of %d pages",
			len(pages), m.npages))
	}

	m.setIndices = append(m.setIndices, si)
	m.rows = append(m.rows, append([]int(nil), pages...))
}

// Row returns the cores of set-index si, or nil if it is not mapped.
func (m *CoreMap) Row(si int) []int {
	for i, s := range m.setIndices {
		if s == si {
			return m.rows[i]
		}
	}

	return nil
}

// Core returns the core of page at set-index si, or -1.
func (m *CoreMap) Core(si, page int) int {
	row := m.Row(si)
	if row == nil || page < 0 || page >= len(row) {
		return -1
	}

	return row[page]
}

// WriteTo writes one line per set-index, with one character per page: the
// digit '0' plus the core, or Unresolved.
func (m *CoreMap) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	total := int64(0)

	for _, row := range m.rows {
		n, err := bw.WriteString(formatRow(row) + "\n")
		total += int64(n)

		if err != nil {
			return total, err
		}
	}

	return total, bw.Flush()
}

// ReadCoreMap parses a map written by WriteTo. Line i holds set-index i.
func ReadCoreMap(r io.Reader) (*CoreMap, error) {
	var m *CoreMap

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	for si := 0; scanner.Scan(); si++ {
		line := scanner.Bytes()
		if m == nil {
			m = NewCoreMap(len(line))
		}

		if len(line) != m.npages {
			return nil, fmt.Errorf("line %d has %d pages, expected %d",
				si+1, len(line), m.npages)
		}

		row, err := ParseRow(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", si+1, err)
		}

		m.Add(si, row)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if m == nil {
		return NewCoreMap(0), nil
	}

	return m, nil
}

// ParseRow converts one line of a map into cores, -1 for Unresolved.
func ParseRow(line []byte) ([]int, error) {
	row := make([]int, len(line))

	for page, c := range line {
		if c < Unresolved {
			return nil, fmt.Errorf("invalid character %q at page %d", c, page)
		}

		row[page] = int(c) - '0'
	}

	return row, nil
}

// Stats counts the pages of a map.
type Stats struct {
	SetIndices int
	Pages      int
	Unresolved int

	// PerCore maps cores to their number of pages.
	PerCore map[int]int
}

// Cores returns the cores with pages, ascending.
func (s Stats) Cores() []int {
	cores := make([]int, 0, len(s.PerCore))
	for c := range s.PerCore {
		cores = append(cores, c)
	}

	sort.Ints(cores)

	return cores
}

// Stats counts pages per core over the whole map.
func (m *CoreMap) Stats() Stats {
	return countRows(m.rows)
}

// RowStats counts pages per core at set-index si.
func (m *CoreMap) RowStats(si int) Stats {
	row := m.Row(si)
	if row == nil {
		return countRows(nil)
	}

	return countRows([][]int{row})
}

func countRows(rows [][]int) Stats {
	s := Stats{
		SetIndices: len(rows),
		PerCore:    make(map[int]int),
	}

	for _, row := range rows {
		for _, core := range row {
			s.Pages++

			if core < 0 {
				s.Unresolved++
				continue
			}

			s.PerCore[core]++
		}
	}

	return s
}
