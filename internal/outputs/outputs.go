package outputs

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrNoOutputFile is returned by ParseOutputFile when the engine has not
// produced a main output yet.
var ErrNoOutputFile = errors.New("no main output file")

// completionMarker is printed at the very end of a successful run.
const completionMarker = "Calculation completed."

// Summary holds the numbers extracted from a main output.
type Summary struct {
	// Etotal is the total energy in Hartree. Valid only when EtotalFound.
	Etotal      float64
	EtotalFound bool

	// Dimensions echoed in the output's variable sections.
	Nkpt  int
	Natom int
	Nband int
	Ecut  float64

	// Overall timings from the closing line, in seconds.
	CPUTimeSec  float64
	WallTimeSec float64

	// Completed reports whether the run printed its completion marker.
	Completed bool
}

// echoedVars are the variable names picked out of the echo sections. With
// several datasets the engine suffixes names with the dataset index, so
// matching strips trailing digits.
var echoedVars = map[string]bool{
	"etotal": true,
	"natom":  true,
	"nband":  true,
	"nkpt":   true,
	"ecut":   true,
}

// ParseOutput scans a main output stream. The variable echo sections appear
// before and after the computation; later values overwrite earlier ones, so
// with several datasets the last echo wins. When no etotal echo exists the
// energy falls back to the last "Etotal=" line of the free-energy block.
func ParseOutput(r io.Reader) (*Summary, error) {
	s := &Summary{}
	var fallbackEtotal float64
	fallbackFound := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if strings.Contains(trimmed, completionMarker) {
			s.Completed = true
			continue
		}

		if strings.HasPrefix(trimmed, ">") {
			if v, ok := parseEtotalLine(trimmed); ok {
				fallbackEtotal = v
				fallbackFound = true
			}
			continue
		}

		if strings.HasPrefix(trimmed, "+Overall time") {
			parseTimings(trimmed, s)
			continue
		}

		parseEchoLine(trimmed, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan main output: %w", err)
	}

	if !s.EtotalFound && fallbackFound {
		s.Etotal = fallbackEtotal
		s.EtotalFound = true
	}
	return s, nil
}

// ParseOutputFile parses the main output at path. A missing file returns
// ErrNoOutputFile so callers can treat "not started yet" specially.
func ParseOutputFile(path string) (*Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoOutputFile, path)
		}
		return nil, fmt.Errorf("failed to open main output: %w", err)
	}
	defer f.Close()

	return ParseOutput(f)
}

// parseEchoLine matches "name value" rows of the variable echo sections.
func parseEchoLine(trimmed string, s *Summary) {
	fields := strings.Fields(trimmed)
	if len(fields) < 2 {
		return
	}

	name := strings.TrimRight(fields[0], "0123456789")
	if !echoedVars[name] {
		return
	}

	value, err := parseFortranFloat(fields[1])
	if err != nil {
		return
	}

	switch name {
	case "etotal":
		s.Etotal = value
		s.EtotalFound = true
	case "natom":
		s.Natom = int(value)
	case "nband":
		s.Nband = int(value)
	case "nkpt":
		s.Nkpt = int(value)
	case "ecut":
		s.Ecut = value
	}
}

// parseEtotalLine matches the ">>>>>>>>> Etotal= -8.86E+00" closing row of
// the free-energy components block.
func parseEtotalLine(trimmed string) (float64, bool) {
	rest := strings.TrimLeft(trimmed, "> ")
	if !strings.HasPrefix(rest, "Etotal=") {
		return 0, false
	}
	v, err := parseFortranFloat(strings.TrimSpace(strings.TrimPrefix(rest, "Etotal=")))
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseTimings matches "+Overall time at end (sec) : cpu= 11.9 wall= 12.0".
// The number may share its token with the key or follow as the next field.
func parseTimings(trimmed string, s *Summary) {
	fields := strings.Fields(trimmed)
	for i := 0; i < len(fields); i++ {
		var target *float64
		var inline string
		switch {
		case strings.HasPrefix(fields[i], "cpu="):
			target = &s.CPUTimeSec
			inline = strings.TrimPrefix(fields[i], "cpu=")
		case strings.HasPrefix(fields[i], "wall="):
			target = &s.WallTimeSec
			inline = strings.TrimPrefix(fields[i], "wall=")
		default:
			continue
		}

		if inline == "" {
			if i+1 >= len(fields) {
				continue
			}
			inline = fields[i+1]
		}
		if v, err := parseFortranFloat(inline); err == nil {
			*target = v
		}
	}
}

// parseFortranFloat parses a float that may carry a Fortran D exponent.
func parseFortranFloat(s string) (float64, error) {
	s = strings.ReplaceAll(s, "D", "E")
	s = strings.ReplaceAll(s, "d", "e")
	return strconv.ParseFloat(s, 64)
}
