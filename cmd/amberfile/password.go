package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
)

// promptPassword interactively reads a password from the terminal,
// asking twice and requiring the two entries to match when confirm is
// true (new passwords), or once otherwise (unlocking an existing
// ring/file).
func promptPassword(title string, confirm bool) ([]byte, error) {
	var pass, again string

	fields := []huh.Field{
		huh.NewInput().
			Title(title).
			Password(true).
			Value(&pass),
	}
	if confirm {
		fields = append(fields, huh.NewInput().
			Title("Confirm password").
			Password(true).
			Value(&again))
	}

	form := huh.NewForm(huh.NewGroup(fields...))
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("reading password: %w", err)
	}
	if confirm && pass != again {
		return nil, fmt.Errorf("passwords did not match")
	}
	if pass == "" {
		return nil, fmt.Errorf("empty password")
	}
	return []byte(pass), nil
}
