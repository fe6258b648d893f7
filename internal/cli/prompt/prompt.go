// Package prompt reads interactive input from the terminal
package prompt

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// ErrNonInteractive is returned when stdin is not a terminal
var ErrNonInteractive = errors.New("not running in an interactive terminal")

var validate = validator.New()

// Terminal prompts on the controlling terminal
type Terminal struct{}

// Interactive reports whether stdin is a terminal (not piped)
func (Terminal) Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Text asks for a single line. check may be nil.
func (t Terminal) Text(label string, check func(string) error) (string, error) {
	if !t.Interactive() {
		return "", ErrNonInteractive
	}

	p := promptui.Prompt{
		Label:    label,
		Validate: check,
	}

	value, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("%s prompt cancelled: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(value), nil
}

// Password reads a secret without echoing it
func (t Terminal) Password(label string) (string, error) {
	if !t.Interactive() {
		return "", ErrNonInteractive
	}

	fmt.Fprintf(os.Stderr, "%s: ", label)
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // New line after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

// Choose shows a selection list and returns the chosen index
func (t Terminal) Choose(label string, items []string) (int, error) {
	if !t.Interactive() {
		return 0, ErrNonInteractive
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ . | cyan }}",
		Inactive: "  {{ . }}",
		Selected: "{{ . | green }}",
	}

	sel := promptui.Select{
		Label:     label,
		Items:     items,
		Templates: templates,
		Size:      10,
	}

	index, _, err := sel.Run()
	if err != nil {
		return 0, fmt.Errorf("selection cancelled: %w", err)
	}
	return index, nil
}

// ValidateEmail checks that s looks like an email address
func ValidateEmail(s string) error {
	if err := validate.Var(strings.TrimSpace(s), "required,email"); err != nil {
		return errors.New("enter a valid email address")
	}
	return nil
}

// ValidateNotEmpty rejects blank input
func ValidateNotEmpty(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("value is required")
	}
	return nil
}
