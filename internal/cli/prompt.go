package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// stdinReader is shared so buffered input is not lost between prompts.
var stdinReader *bufio.Reader

func reader(in io.Reader) *bufio.Reader {
	if f, ok := in.(*os.File); ok && f == os.Stdin {
		if stdinReader == nil {
			stdinReader = bufio.NewReader(os.Stdin)
		}
		return stdinReader
	}
	if br, ok := in.(*bufio.Reader); ok {
		return br
	}
	return bufio.NewReader(in)
}

// input returns the command's stdin, buffered once so consecutive
// prompts do not lose read-ahead.
func input(cmd *cobra.Command) io.Reader {
	in := cmd.InOrStdin()
	if _, ok := in.(*os.File); ok {
		return in
	}
	return bufio.NewReader(in)
}

// promptLine prints label and reads one trimmed line.
func promptLine(in io.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := reader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// confirm asks a yes/no question. Anything but y/yes is a no.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	answer, err := promptLine(in, out, question+" [y/N]: ")
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// readPassword reads a secret without echo when in is a terminal, and
// a plain line otherwise (pipes, tests).
func readPassword(in io.Reader, out io.Writer, label string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(out, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	return promptLine(in, out, label)
}

// terminalWidth returns the width of out, or 0 when it is not a terminal.
func terminalWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w
}
