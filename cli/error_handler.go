package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/watchpost/errors"
)

// ErrorHandler turns station errors into operator-facing hints.
type ErrorHandler struct {
	Verbose bool
	Out     io.Writer
}

// NewErrorHandler creates an error handler writing to stderr.
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{Verbose: verbose, Out: os.Stderr}
}

// Handle prints err with a hint for its code and returns it unchanged.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	t := DefaultTheme
	fmt.Fprintf(h.Out, "%s %s\n", t.Error.Bold(true).Render("Error:"), err.Error())

	if hint := hintFor(err); hint != "" {
		fmt.Fprintln(h.Out, t.Muted.Render(hint))
	}

	if h.Verbose {
		if stationErr, ok := err.(*errors.StationError); ok {
			fmt.Fprintf(h.Out, "\nError details:\n%s\n", stationErr.ToJSON())
		}
	}
	return err
}

func hintFor(err error) string {
	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		return "Create watchpost.yml or pass --config."
	case errors.ErrCodeConfigInvalid:
		return "Check watchpost.yml against 'watchpost schema'."
	case errors.ErrCodeTransportFailure:
		return "Check backend.interpreter and backend.script_dir in watchpost.yml."
	case errors.ErrCodeCommandTimeout:
		return "The backend did not answer in time. Raise backend.command_timeout if it is slow."
	case errors.ErrCodeMalformedResponse:
		return "The backend printed something other than a JSON reply."
	case errors.ErrCodeWorkerCrashed, errors.ErrCodeWorkerNotRunning:
		return "Inspect the worker output with 'watchpost logs'."
	}
	return ""
}
