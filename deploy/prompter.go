package deploy

import (
	"errors"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/rs/zerolog"
)

const (
	choiceContinue = "Continue"
	choiceAbort    = "Abort"
)

// Prompter asks the operator to confirm a checkpoint.
type Prompter interface {
	Confirm(message string, files []string) (bool, error)
}

// Replaced in tests.
var promptUISelectRunner = func(prompt promptui.Select) (int, string, error) {
	return prompt.Run()
}

type terminalPrompter struct{}

// NewTerminalPrompter returns a Prompter that asks on the terminal.
func NewTerminalPrompter() Prompter {
	return &terminalPrompter{}
}

func (*terminalPrompter) Confirm(message string, files []string) (bool, error) {
	label := message
	if len(files) > 0 {
		label += "\n  " + strings.Join(files, "\n  ") + "\n"
	}
	prompt := promptui.Select{
		Label: label,
		Items: []string{choiceContinue, choiceAbort},
	}

	_, choice, err := promptUISelectRunner(prompt)
	if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) || errors.Is(err, promptui.ErrAbort) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return choice == choiceContinue, nil
}

type autoPrompter struct {
	log zerolog.Logger
}

// NewAutoPrompter returns a Prompter that confirms every checkpoint.
func NewAutoPrompter(logger zerolog.Logger) Prompter {
	return &autoPrompter{log: logger}
}

func (a *autoPrompter) Confirm(message string, files []string) (bool, error) {
	a.log.Warn().Strs("files", files).Msgf("checkpoint auto-confirmed: %s", message)
	return true, nil
}
