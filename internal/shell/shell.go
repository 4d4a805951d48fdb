package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/joseph-ayodele/vision-ocr/internal/repository"
)

const (
	Prompt       = "Do you want to fetch OCR data from the database? (yes/no) "
	FetchedMsg   = "OCR data fetched from the database:"
	NoFetchMsg   = "No data fetched. Exiting..."
	fetchErrText = "Error fetching data: %v\n"
)

// Shell asks the operator once whether to dump the ocr_data table.
type Shell struct {
	Rows   repository.TextRowRepository
	In     io.Reader
	Out    io.Writer
	Logger *slog.Logger
}

func NewShell(rows repository.TextRowRepository, in io.Reader, out io.Writer, logger *slog.Logger) *Shell {
	if logger == nil {
		logger = slog.Default()
	}
	return &Shell{Rows: rows, In: in, Out: out, Logger: logger}
}

// PromptAndMaybeDump prints the prompt, reads one answer and, on "yes"
// (case-insensitive, surrounding whitespace ignored), prints every row.
// Any other answer, including end of input, reads nothing.
func (s *Shell) PromptAndMaybeDump(ctx context.Context) (err error) {
	w := bufio.NewWriter(s.Out)
	defer func() {
		if ferr := w.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("flush console: %w", ferr)
		}
	}()

	if _, err := io.WriteString(w, Prompt); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush console: %w", err)
	}

	answer, rerr := bufio.NewReader(s.In).ReadString('\n')
	if rerr != nil && !errors.Is(rerr, io.EOF) {
		s.Logger.Error("shell.read_answer_failed", "error", rerr)
		return fmt.Errorf("read answer: %w", rerr)
	}

	if !strings.EqualFold(strings.TrimSpace(answer), "yes") {
		s.Logger.Debug("shell.declined", "answer", strings.TrimSpace(answer))
		_, err = fmt.Fprintln(w, NoFetchMsg)
		return err
	}

	rows, err := s.Rows.FetchAll(ctx)
	if err != nil {
		s.Logger.Error("shell.fetch_failed", "error", err)
		fmt.Fprintf(w, fetchErrText, err)
		return err
	}
	s.Logger.Info("shell.fetched", "rows", len(rows))

	fmt.Fprintln(w, FetchedMsg)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTEXT")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\n", r.ID, r.Text)
	}
	return tw.Flush()
}
