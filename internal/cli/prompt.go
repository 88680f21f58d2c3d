package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"oligo-export/internal/primers"
)

// ErrEmptyPassword is returned when no password was entered
var ErrEmptyPassword = errors.New("password cannot be empty")

// Prompter asks the user for portal credentials
type Prompter struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader
}

// NewPrompter creates a prompter reading from in and writing prompts to out
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:     in,
		out:    out,
		reader: bufio.NewReader(in),
	}
}

// Credentials prompts for whatever is missing. The password is read without
// echo when in is a terminal.
func (p *Prompter) Credentials(username string) (primers.Credentials, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		fmt.Fprint(p.out, "Username: ")
		line, err := p.readLine()
		if err != nil {
			return primers.Credentials{}, fmt.Errorf("failed to read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return primers.Credentials{}, errors.New("username cannot be empty")
	}

	fmt.Fprint(p.out, "Password: ")
	password, err := p.readPassword()
	fmt.Fprintln(p.out)
	if err != nil {
		return primers.Credentials{}, fmt.Errorf("failed to read password: %w", err)
	}
	if password == "" {
		return primers.Credentials{}, ErrEmptyPassword
	}

	return primers.Credentials{Username: username, Password: password}, nil
}

func (p *Prompter) readPassword() (string, error) {
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	line, err := p.readLine()
	if err != nil {
		return "", err
	}
	return line, nil
}

func (p *Prompter) readLine() (string, error) {
	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
