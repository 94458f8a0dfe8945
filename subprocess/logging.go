package subprocess

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/relayforge/mediaforge/log"
)

func streamOutput(src io.Reader, out io.Writer) {
	s := bufio.NewReader(src)
	for {
		var line []byte
		line, err := s.ReadSlice('\n')
		if err == io.EOF && len(line) == 0 {
			break
		}
		if err == io.EOF {
			log.LogNoRequestID("subprocess: stderr stream ended without a trailing newline", "line", string(line))
			return
		}
		if err != nil {
			log.LogNoRequestID("subprocess: error reading stderr", "err", err)
			return
		}
		if _, err := out.Write(line); err != nil {
			log.LogNoRequestID("subprocess: error writing stderr passthrough", "err", err)
			return
		}
	}
}

// LogStderr starts a goroutine that passes a child's stderr through to our
// own stderr. Stdout is never passed through this way: it carries the
// protocol frames the driver parses directly (spec §4.3).
func LogStderr(cmd *exec.Cmd) error {
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("subprocess: opening stderr pipe: %w", err)
	}
	go streamOutput(stderrPipe, os.Stderr)
	return nil
}
