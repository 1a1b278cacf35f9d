// Package prompt asks for confirmation before destructive ftlsim commands.
package prompt

import (
	"errors"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the prompt is interrupted with Ctrl+C.
var ErrAborted = errors.New("aborted")

func confirmLabel(label string, defaultYes bool) string {
	if defaultYes {
		return label + " [Y/n]"
	}
	return label + " [y/N]"
}

// Confirm asks a yes/no question. An empty answer selects the default.
func Confirm(label string, defaultYes bool) (bool, error) {
	p := promptui.Prompt{
		Label:     confirmLabel(label, defaultYes),
		IsConfirm: true,
	}
	answer, err := p.Run()
	switch {
	case errors.Is(err, promptui.ErrInterrupt):
		return false, ErrAborted
	case errors.Is(err, promptui.ErrAbort):
		// promptui reports any answer other than y as an abort.
		return false, nil
	case err != nil && answer == "":
		return defaultYes, nil
	case err != nil:
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// ConfirmWithForce skips the question when force is set, as with
// "snapshot delete --force".
func ConfirmWithForce(label string, force bool) (bool, error) {
	if force {
		return true, nil
	}
	return Confirm(label, false)
}
