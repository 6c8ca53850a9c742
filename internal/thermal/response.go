package thermal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/banshee-data/thermalsim/internal/fsutil"
)

// LoadResponse reads a sensor response curve. A .json file holds a flat
// array of numbers; any other file holds one number per line, with blank
// lines and '#' comments ignored. The curve is validated when passed to
// NewModel.
func LoadResponse(fsys fsutil.FileSystem, path string) ([]float64, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read response file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		var values []float64
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("failed to parse response JSON: %w", err)
		}
		return values, nil
	}

	var values []float64
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = strings.TrimSpace(text[:i])
		}
		if text == "" {
			continue
		}
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("response line %d: %w", line, err)
		}
		values = append(values, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan response file: %w", err)
	}
	return values, nil
}
