package mesh

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ScanReport is the JSON form of one scanner's report
type ScanReport struct {
	ID     int     `json:"id"`
	Points []Point `json:"points"`
}

// ToReport converts a scan to its JSON form
func ToReport(s Scan) ScanReport {
	return ScanReport{ID: s.ID, Points: s.Points()}
}

// ParseScanFile reads and parses a scan report file (text or JSON)
func ParseScanFile(path string) ([]Scan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}
	return ParseScans(data)
}

// ParseScans detects the report format and parses it. Input starting with
// '[' or '{' is JSON, anything else is the text block format.
func ParseScans(data []byte) ([]Scan, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return ParseScanJSON(trimmed)
	}
	return ParseScanReport(bytes.NewReader(data))
}

// ParseScanJSON parses either a JSON array of ScanReport or a single ScanReport
func ParseScanJSON(data []byte) ([]Scan, error) {
	var reports []ScanReport
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var single ScanReport
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, fmt.Errorf("%w: parsing JSON: %v", ErrMalformedInput, err)
		}
		reports = []ScanReport{single}
	} else if err := json.Unmarshal(trimmed, &reports); err != nil {
		return nil, fmt.Errorf("%w: parsing JSON: %v", ErrMalformedInput, err)
	}

	if len(reports) == 0 {
		return nil, fmt.Errorf("%w: no scanners found", ErrMalformedInput)
	}

	seen := make(map[int]bool, len(reports))
	scans := make([]Scan, 0, len(reports))
	for _, r := range reports {
		if r.ID < 0 {
			return nil, fmt.Errorf("%w: negative scanner id %d", ErrMalformedInput, r.ID)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("%w: duplicate scanner id %d", ErrMalformedInput, r.ID)
		}
		seen[r.ID] = true
		scans = append(scans, NewScan(r.ID, r.Points))
	}
	return scans, nil
}

// ParseScanReport parses the text block format:
//
//	--- scanner 0 ---
//	404,-588,-901
//	528,-643,409
//
//	--- scanner 1 ---
//	...
func ParseScanReport(r io.Reader) ([]Scan, error) {
	var (
		scans   []Scan
		seen    = make(map[int]bool)
		current []Point
		id      = -1
		lineNo  int
	)

	flush := func() {
		if id >= 0 {
			scans = append(scans, NewScan(id, current))
		}
		current = nil
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "---") {
			next, err := parseScannerHeader(line)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedInput, lineNo, err)
			}
			if seen[next] {
				return nil, fmt.Errorf("%w: line %d: duplicate scanner id %d", ErrMalformedInput, lineNo, next)
			}
			flush()
			seen[next] = true
			id = next
			continue
		}

		if id < 0 {
			return nil, fmt.Errorf("%w: line %d: beacon before first scanner header", ErrMalformedInput, lineNo)
		}
		p, err := parsePointLine(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedInput, lineNo, err)
		}
		current = append(current, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading scan report: %w", err)
	}
	flush()

	if len(scans) == 0 {
		return nil, fmt.Errorf("%w: no scanners found", ErrMalformedInput)
	}
	return scans, nil
}

// parseScannerHeader extracts N from "--- scanner N ---"
func parseScannerHeader(line string) (int, error) {
	fields := strings.Fields(strings.Trim(line, "- "))
	if len(fields) != 2 || fields[0] != "scanner" {
		return 0, fmt.Errorf("invalid scanner header %q", line)
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid scanner id in %q", line)
	}
	return id, nil
}

// parsePointLine parses "x,y,z"
func parsePointLine(line string) (Point, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return Point{}, fmt.Errorf("expected 3 coordinates, got %d in %q", len(parts), line)
	}
	var coords [3]int
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return Point{}, fmt.Errorf("invalid coordinate %q", part)
		}
		coords[i] = v
	}
	return Point{X: coords[0], Y: coords[1], Z: coords[2]}, nil
}

// DecodeScanPayload decodes a single scanner report received for scannerID.
// Accepted forms: a JSON ScanReport, a JSON array of points, or text lines
// with an optional "--- scanner N ---" header. The id in the payload, if any,
// must agree with scannerID.
func DecodeScanPayload(scannerID int, payload []byte) (Scan, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return Scan{}, fmt.Errorf("%w: empty payload", ErrMalformedInput)
	}

	switch trimmed[0] {
	case '{':
		var report struct {
			ID     *int    `json:"id"`
			Points []Point `json:"points"`
		}
		if err := json.Unmarshal(trimmed, &report); err != nil {
			return Scan{}, fmt.Errorf("%w: parsing JSON: %v", ErrMalformedInput, err)
		}
		if report.ID != nil && *report.ID != scannerID {
			return Scan{}, fmt.Errorf("%w: payload id %d does not match scanner %d", ErrMalformedInput, *report.ID, scannerID)
		}
		return NewScan(scannerID, report.Points), nil
	case '[':
		var points []Point
		if err := json.Unmarshal(trimmed, &points); err != nil {
			return Scan{}, fmt.Errorf("%w: parsing JSON: %v", ErrMalformedInput, err)
		}
		return NewScan(scannerID, points), nil
	}

	text := string(trimmed)
	if !strings.HasPrefix(text, "---") {
		text = fmt.Sprintf("--- scanner %d ---\n%s", scannerID, text)
	}
	scans, err := ParseScanReport(strings.NewReader(text))
	if err != nil {
		return Scan{}, err
	}
	if len(scans) != 1 || scans[0].ID != scannerID {
		return Scan{}, fmt.Errorf("%w: payload does not describe exactly scanner %d", ErrMalformedInput, scannerID)
	}
	return scans[0], nil
}

// WriteScanReport writes scans in the text block format, ordered by id
func WriteScanReport(w io.Writer, scans []Scan) error {
	for i, s := range SortScans(scans) {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "--- scanner %d ---\n", s.ID); err != nil {
			return err
		}
		for _, p := range s.points {
			if _, err := fmt.Fprintf(w, "%d,%d,%d\n", p.X, p.Y, p.Z); err != nil {
				return err
			}
		}
	}
	return nil
}
