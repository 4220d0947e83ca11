package utils

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/meysamhadeli/docai/constants/lipgloss"
)

// ConfirmPrompt asks a yes/no question and reports whether the answer was yes.
// End of input and cancellation both count as no.
func ConfirmPrompt(ctx context.Context, reader *bufio.Reader, out io.Writer, message string) (bool, error) {
	answerChan := make(chan string, 1)
	errChan := make(chan error, 1)

	fmt.Fprint(out, lipgloss.BlueSky.Render(message+" (y/N): "))

	go func() {
		answer, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			errChan <- fmt.Errorf("error reading input: %w", err)
			return
		}
		answerChan <- answer
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(out)
		return false, ctx.Err()
	case err := <-errChan:
		return false, err
	case answer := <-answerChan:
		return isYes(answer), nil
	}
}

func isYes(answer string) bool {
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
