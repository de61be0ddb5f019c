package recorder

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/seatsense/seat-monitor/pkg/types"
)

// ErrStop can be returned from a ReadFrames callback to end reading early without error.
var ErrStop = errors.New("stop reading")

const maxLineSize = 4 << 20

// ReadFrames decodes one frame per line from r and hands each to fn. Blank lines are skipped.
func ReadFrames(r io.Reader, fn func(types.Frame) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var frame types.Frame
		if err := json.Unmarshal([]byte(text), &frame); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(frame); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
	return scanner.Err()
}

// ReadFile is ReadFrames over the file at path.
func ReadFile(path string, fn func(types.Frame) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return ReadFrames(f, fn)
}
