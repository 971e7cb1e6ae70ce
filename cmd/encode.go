package cmd

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ColonelBlimp/morsekey/internal/cw"
)

var encodeCmd = &cobra.Command{
	Use:   "encode [text...]",
	Short: "Convert text to Morse code",
	Long: `Converts the arguments, or each line read from stdin when there are none,
to Morse code. Characters without a code are dropped.`,
	Example: `  morsekey encode SOS
  echo "hello world" | morsekey encode`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger(cmd)
		if len(args) > 0 {
			return encodeLine(cmd.OutOrStdout(), strings.Join(args, " "), log)
		}
		return encodeLines(cmd.InOrStdin(), cmd.OutOrStdout(), log)
	},
}

func init() {
	rootCmd.AddCommand(encodeCmd)
}

// encodeLines writes the Morse code of every line read from r.
func encodeLines(r io.Reader, w io.Writer, log *slog.Logger) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := encodeLine(w, scanner.Text(), log); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	return nil
}

func encodeLine(w io.Writer, text string, log *slog.Logger) error {
	var dropped []string
	for _, r := range text {
		if !cw.IsEncodable(r) {
			dropped = append(dropped, string(r))
		}
	}
	if len(dropped) > 0 {
		log.Warn("characters without a code were dropped", "chars", strings.Join(dropped, ""))
	}
	_, err := fmt.Fprintln(w, cw.Encode(text))
	return err
}
