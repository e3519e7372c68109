// Package cli holds terminal helpers shared by oscctl commands.
package cli

import (
	"errors"
	"io"

	"github.com/manifoldco/promptui"
)

// Confirm asks a yes/no question. It returns true without prompting when
// assumeYes is set, and false when the user declines.
func Confirm(label string, assumeYes bool, in io.ReadCloser, out io.WriteCloser) (bool, error) {
	if assumeYes {
		return true, nil
	}

	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
		Stdin:     in,
		Stdout:    out,
	}

	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}
